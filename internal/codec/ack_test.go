package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckRoundTripOkCount(t *testing.T) {
	input := "ACK|!7|OK|3"
	frame, err := ParseAck([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, StatusOk, frame.Status)
	assert.True(t, frame.Detail.HasCount)
	assert.Equal(t, uint32(3), frame.Detail.Count)

	out, err := BuildAck(frame)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestAckOkVariablesBracket(t *testing.T) {
	frame, err := ParseAck([]byte("ACK|OK|[temperature;humidity]"))
	require.NoError(t, err)
	assert.Equal(t, "[temperature;humidity]", frame.Detail.Variables)
}

func TestAckErrKnownAndUnknownCode(t *testing.T) {
	frame, err := ParseAck([]byte("ACK|ERR|rate_limited"))
	require.NoError(t, err)
	assert.Equal(t, ErrRateLimited, frame.Detail.Code)

	frame, err = ParseAck([]byte("ACK|ERR|something_new"))
	require.NoError(t, err)
	assert.Equal(t, ErrUnknown, frame.Detail.Code)
	assert.Equal(t, "something_new", frame.Detail.Text)
}

func TestAckPongAndCmdRaw(t *testing.T) {
	frame, err := ParseAck([]byte("ACK|PONG"))
	require.NoError(t, err)
	assert.Equal(t, StatusPong, frame.Status)
	assert.False(t, frame.HasDetail)

	frame, err = ParseAck([]byte("ACK|CMD|reboot"))
	require.NoError(t, err)
	assert.Equal(t, "reboot", frame.Detail.Raw)
}

func TestAckRejectsBadLiteral(t *testing.T) {
	_, err := ParseAck([]byte("NACK|OK"))
	assert.Error(t, err)
}
