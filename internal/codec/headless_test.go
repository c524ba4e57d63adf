package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlessUplinkRoundTrip(t *testing.T) {
	input := "sensor-01|[temp:=32]"
	hf, err := ParseHeadlessUplink(Push, []byte(input), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "sensor-01", hf.Serial)
	require.NotNil(t, hf.Push)

	out, err := BuildHeadlessUplink(hf)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestHeadlessPingHasNoBody(t *testing.T) {
	hf, err := ParseHeadlessUplink(Ping, []byte("sensor-01"), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "sensor-01", hf.Serial)

	out, err := BuildHeadlessUplink(hf)
	require.NoError(t, err)
	assert.Equal(t, "sensor-01", out)
}

func TestHeadlessAckRoundTrip(t *testing.T) {
	input := "OK|3"
	hf, err := ParseHeadlessAck([]byte(input), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, StatusOk, hf.Status)
	assert.True(t, hf.Detail.HasCount)

	out, err := BuildHeadlessAck(hf)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}
