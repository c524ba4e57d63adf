package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuth = "at0123456789abcdef0123456789abcdef"

func TestParseUplinkSimplePush(t *testing.T) {
	frame, err := ParseUplink([]byte("PUSH|" + testAuth + "|sensor_01|[temperature:=32.5#C;humidity:=65]"))
	require.NoError(t, err)
	assert.Equal(t, Push, frame.Method)
	require.NotNil(t, frame.Push)
	require.NotNil(t, frame.Push.Structured)
	vars := frame.Push.Structured.Variables
	require.Len(t, vars, 2)
	assert.Equal(t, "temperature", vars[0].Name)
	assert.Equal(t, OpNumber, vars[0].Value.Op)
	assert.Equal(t, "32.5", vars[0].Value.Number)
	assert.True(t, vars[0].HasUnit)
	assert.Equal(t, "C", vars[0].Unit)
	assert.Equal(t, "65", vars[1].Value.Number)
	assert.False(t, vars[1].HasUnit)
}

func TestUplinkRoundTripAllSuffixes(t *testing.T) {
	input := "PUSH|" + testAuth + "|dev|[temp:=32#C@1694567890000^batch{source=dht22}]"
	frame, err := ParseUplink([]byte(input))
	require.NoError(t, err)
	out, err := BuildUplink(frame)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestBodyModifiersAcceptBothOrderings(t *testing.T) {
	canonical, err := ParseUplink([]byte("PUSH|" + testAuth + "|dev|^batch@1694567890000[temp:=32]"))
	require.NoError(t, err)
	require.NotNil(t, canonical.Push.Structured)
	assert.Equal(t, "batch", canonical.Push.Structured.Group)
	assert.Equal(t, "1694567890000", canonical.Push.Structured.Timestamp)

	reversed, err := ParseUplink([]byte("PUSH|" + testAuth + "|dev|@1694567890000^batch[temp:=32]"))
	require.NoError(t, err)
	require.NotNil(t, reversed.Push.Structured)
	assert.Equal(t, "batch", reversed.Push.Structured.Group)
	assert.Equal(t, "1694567890000", reversed.Push.Structured.Timestamp)
}

func TestParseUplinkPassthroughHex(t *testing.T) {
	frame, err := ParseUplink([]byte("PUSH|" + testAuth + "|dev|>xDEADBEEF01020304"))
	require.NoError(t, err)
	require.NotNil(t, frame.Push.Passthrough)
	assert.Equal(t, Hex, frame.Push.Passthrough.Encoding)
	assert.Equal(t, "DEADBEEF01020304", frame.Push.Passthrough.Data)

	_, err = ParseUplink([]byte("PUSH|" + testAuth + "|dev|>xABC"))
	require.Error(t, err)
}

func TestSeqBoundary(t *testing.T) {
	ok := []string{"!0", "!4294967295"}
	for _, s := range ok {
		_, err := ParseUplink([]byte("PING|" + s + "|" + testAuth + "|dev"))
		assert.NoError(t, err, s)
	}
	bad := []string{"!4294967296", "!01", "!-1", "!"}
	for _, s := range bad {
		_, err := ParseUplink([]byte("PING|" + s + "|" + testAuth + "|dev"))
		assert.Error(t, err, s)
	}
}

func TestNumberBoundary(t *testing.T) {
	accept := []string{"0", "-0", "0.5", "-15.3", "999999999999"}
	for _, n := range accept {
		assert.True(t, isValidNumber(n), n)
	}
	reject := []string{"01", "-01", "--5", ".5", "5.", "abc", ""}
	for _, n := range reject {
		assert.False(t, isValidNumber(n), n)
	}
}

func TestLocationBoundary(t *testing.T) {
	frame, err := ParseUplink([]byte("PUSH|" + testAuth + "|dev|[pos@=1.0,2.0]"))
	require.NoError(t, err)
	assert.Equal(t, OpLocation, frame.Push.Structured.Variables[0].Value.Op)

	_, err = ParseUplink([]byte("PUSH|" + testAuth + "|dev|[pos@=1.0,2.0,3.0]"))
	require.NoError(t, err)

	_, err = ParseUplink([]byte("PUSH|" + testAuth + "|dev|[pos@=1.0,2.0,3.0,4.0]"))
	assert.Error(t, err)
	_, err = ParseUplink([]byte("PUSH|" + testAuth + "|dev|[pos@=1.0]"))
	assert.Error(t, err)
	_, err = ParseUplink([]byte("PUSH|" + testAuth + "|dev|[pos@=1.0,]"))
	assert.Error(t, err)
	_, err = ParseUplink([]byte("PUSH|" + testAuth + "|dev|[pos@=1.0,2.0#m]"))
	assert.Error(t, err)
}

func TestAuthBoundary(t *testing.T) {
	assert.True(t, isValidAuth(testAuth))
	assert.True(t, isValidAuth("atABCDEF0123456789ABCDEF0123456789"))
	assert.False(t, isValidAuth("at012"))
	assert.False(t, isValidAuth("xt0123456789abcdef0123456789abcdef"))
}

func TestRejections(t *testing.T) {
	cases := []string{
		"PUSH|" + testAuth + "|dev|>x",              // empty passthrough
		"PUSH|" + testAuth + "|dev|>xABC",            // odd-length hex
		"PUSH|" + testAuth + "|dev|[]",               // empty variable block
		"PUSH|" + testAuth + "|dev|[x=hello{}]",      // empty metadata brace
		"PUSH|" + testAuth + "|dev|[x=]",             // empty string value
		"PING|" + testAuth + "|dev|somebody",         // body must be absent
	}
	for _, c := range cases {
		_, err := ParseUplink([]byte(c))
		assert.Error(t, err, c)
	}
}

func TestPullParsesVarnames(t *testing.T) {
	frame, err := ParseUplink([]byte("PULL|" + testAuth + "|dev|[temperature;humidity]"))
	require.NoError(t, err)
	require.NotNil(t, frame.Pull)
	assert.Equal(t, []string{"temperature", "humidity"}, frame.Pull.Variables)
}
