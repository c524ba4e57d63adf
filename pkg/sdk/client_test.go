package sdk

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagotip/tagotip/internal/codec"
)

// fakeGateway records the last request's Content-Type and body and
// always replies with a fixed ack, standing in for a real gateway so
// the client can be tested without one.
func fakeGateway(t *testing.T, contentType *string, body *[]byte, ack *codec.AckFrame) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*contentType = r.Header.Get("Content-Type")
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*body = b

		text, err := codec.BuildAck(ack)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text)
	}))
}

func TestClientPushSendsTextWithTextContentType(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := fakeGateway(t, &gotContentType, &gotBody, &codec.AckFrame{Status: codec.StatusOk})
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL, Serial: "sensor-01", Token: "at0123456789abcdef0123456789abcdef"})
	result, err := c.Push(t.Context(), []Reading{{Name: "temp", Value: codec.Value{Op: codec.OpNumber, Number: "32"}}})
	require.NoError(t, err)

	assert.True(t, result.Ok())
	assert.Equal(t, "text/plain; charset=utf-8", gotContentType)
	assert.True(t, len(gotBody) > 0 && gotBody[0] == 'P')
}

func TestClientPushEnvelopeSendsOctetStreamContentType(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := fakeGateway(t, &gotContentType, &gotBody, &codec.AckFrame{Status: codec.StatusOk})
	defer srv.Close()

	c := NewClient(Config{
		GatewayURL:  srv.URL,
		Serial:      "sensor-01",
		Token:       "at0123456789abcdef0123456789abcdef",
		UseEnvelope: true,
	})
	result, err := c.Ping(t.Context())
	require.NoError(t, err)

	assert.True(t, result.Ok())
	assert.Equal(t, "application/octet-stream", gotContentType)
	assert.Equal(t, 21, len(gotBody[:21])) // header present; full length checked by envelope package tests
}

func TestClientDecodesErrorAck(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := fakeGateway(t, &gotContentType, &gotBody, &codec.AckFrame{
		Status:    codec.StatusErr,
		HasDetail: true,
		Detail:    codec.AckDetail{Code: codec.ErrRateLimited},
	})
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL, Serial: "sensor-01", Token: "at0123456789abcdef0123456789abcdef"})
	result, err := c.Pull(t.Context(), []string{"temp"})
	require.NoError(t, err)

	assert.False(t, result.Ok())
	require.True(t, result.HasDetail)
	assert.Equal(t, codec.ErrRateLimited, result.Detail.Code)
}
