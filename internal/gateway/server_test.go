package gateway

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagotip/tagotip/internal/codec"
	"github.com/tagotip/tagotip/internal/config"
	"github.com/tagotip/tagotip/internal/events"
	"github.com/tagotip/tagotip/internal/middleware"
)

// newTestServer returns a server with no device store, matching the
// "devices may be nil" carve-out NewServer documents for tests that only
// exercise the plaintext-frame path. Built once and shared: NewMetrics
// registers against the global Prometheus registry, and promauto panics
// on a second registration of the same metric name.
var (
	testServer     *Server
	testServerOnce sync.Once
)

func newTestServer() *Server {
	testServerOnce.Do(func() {
		cfg := &config.Config{}
		cfg.Server.Port = "0"
		cfg.Limits = config.LimitsConfig{
			MaxVariables: 16,
			MaxMetaPairs: 8,
			MaxTotalMeta: 32,
			MaxFrameSize: 16384,
		}
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{MaxCallsPerMinute: 1000, BurstSize: 1000})
		bus := events.NewEventBus()
		testServer = NewServer(cfg, nil, limiter, bus, nil)
	})
	return testServer
}

func TestHandleHealthz(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest("GET", "/v1/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHandleUplinkAcceptsValidTextPush(t *testing.T) {
	srv := newTestServer()

	frame := &codec.UplinkFrame{
		Method: codec.Push,
		Auth:   "at0123456789abcdef0123456789abcdef",
		Serial: "sensor-01",
		Push: &codec.PushBody{Structured: &codec.StructuredBody{
			Variables: []codec.Variable{{Name: "temp", Value: codec.Value{Op: codec.OpNumber, Number: "32.5"}, Unit: "C", HasUnit: true}},
		}},
	}
	text, err := codec.BuildUplink(frame)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/v1/uplink", strings.NewReader(text))
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	ack, err := codec.ParseAck(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, codec.StatusOk, ack.Status)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-Id"))
}

// TestHandleUplinkTextContentTypeOverridesEnvelopeGuess locks in the fix
// for a real misrouting bug: "PUSH|..." starts with 0x50, which is not
// the literal 'A' (0x41) spec §4.6 reserves for ACK replies, so
// envelope.IsEnvelope alone would misroute it to the envelope path.
// Content-Type: text/plain must take precedence.
func TestHandleUplinkTextContentTypeOverridesEnvelopeGuess(t *testing.T) {
	srv := newTestServer()

	frame := &codec.UplinkFrame{Method: codec.Ping, Auth: "at0123456789abcdef0123456789abcdef", Serial: "sensor-01"}
	text, err := codec.BuildUplink(frame)
	require.NoError(t, err)
	require.Equal(t, byte('P'), text[0])

	req := httptest.NewRequest("POST", "/v1/uplink", strings.NewReader(text))
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	ack, err := codec.ParseAck(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, codec.StatusOk, ack.Status)
}

func TestHandleUplinkRejectsGarbage(t *testing.T) {
	srv := newTestServer()

	// Leading 'A' (0x41) keeps envelope.IsEnvelope routing this to the
	// text-frame path rather than the envelope path, per spec §4.6.
	req := httptest.NewRequest("POST", "/v1/uplink", strings.NewReader("A not a valid frame"))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	ack, err := codec.ParseAck(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, codec.StatusErr, ack.Status)
	assert.True(t, ack.HasDetail)
}

func TestHandleUplinkTooLargeRejected(t *testing.T) {
	srv := newTestServer()

	big := strings.Repeat("a", maxBodyBytes+1)
	req := httptest.NewRequest("POST", "/v1/uplink", strings.NewReader(big))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, 413, w.Code)
}

func TestHandleEnvelopeWithoutDeviceStoreReturnsServerError(t *testing.T) {
	srv := newTestServer()

	envelope := make([]byte, 21+16)
	req := httptest.NewRequest("POST", "/v1/uplink", strings.NewReader(string(envelope)))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	ack, err := codec.ParseAck(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, codec.StatusErr, ack.Status)
	assert.Equal(t, codec.ErrServerError, ack.Detail.Code)
}

func TestHandleStats(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest("GET", "/v1/stats", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limiter")
}
