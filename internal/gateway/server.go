// Package gateway implements the HTTP device-intake surface: accepting
// both TagoTiP/S binary envelopes and plaintext TagoTiP frames on one
// endpoint, authenticating and decrypting envelopes, dispatching to the
// in-process event bus and live WebSocket stream, and returning an ack.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tagotip/tagotip/internal/codec"
	"github.com/tagotip/tagotip/internal/config"
	"github.com/tagotip/tagotip/internal/envelope"
	"github.com/tagotip/tagotip/internal/events"
	"github.com/tagotip/tagotip/internal/grammar"
	"github.com/tagotip/tagotip/internal/identity"
	"github.com/tagotip/tagotip/internal/middleware"
	"github.com/tagotip/tagotip/internal/replay"
	"github.com/tagotip/tagotip/internal/websocket"
)

// Server is the TagoTiP gateway's HTTP surface: a single uplink intake
// endpoint plus health and diagnostic endpoints, wired to the codec,
// identity, envelope, and replay layers.
type Server struct {
	cfg       *config.Config
	devices   *replay.Store
	limiter   *middleware.RateLimiter
	bus       *events.EventBus
	stream    *websocket.FrameStreamer
	metrics   *Metrics
	telemetry *TelemetrySink
	peers     *PeerForwarder
	peerURLs  []string
}

// NewServer wires a gateway server from its dependencies. devices may be
// nil only in tests that exercise text-frame parsing without envelope
// authentication.
func NewServer(cfg *config.Config, devices *replay.Store, limiter *middleware.RateLimiter, bus *events.EventBus, stream *websocket.FrameStreamer) *Server {
	return &Server{
		cfg:     cfg,
		devices: devices,
		limiter: limiter,
		bus:     bus,
		stream:  stream,
		metrics: NewMetrics(),
	}
}

// SetTelemetry attaches a Postgres sink that every accepted Push frame's
// variables are persisted to. Optional; nil disables persistence.
func (s *Server) SetTelemetry(sink *TelemetrySink) {
	s.telemetry = sink
}

// SetFederation attaches a mTLS peer forwarder and the peer gateway URLs
// every accepted frame is fanned out to. Optional; unrelated to the
// core's per-device auth_hash/device_hash identity model.
func (s *Server) SetFederation(forwarder *PeerForwarder, peerURLs []string) {
	s.peers = forwarder
	s.peerURLs = peerURLs
}

// Router builds the gateway's HTTP mux.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(correlationIDMiddleware)

	r.HandleFunc("/v1/uplink", s.handleUplink).Methods(http.MethodPost)
	r.HandleFunc("/v1/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/v1/stats", s.handleStats).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if s.stream != nil {
		r.HandleFunc("/v1/stream", s.stream.HandleWebSocket)
	}

	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	if s.limiter != nil {
		stats["rate_limiter"] = s.limiter.Stats()
	}
	if s.stream != nil {
		stats["websocket"] = s.stream.GetStatistics()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

type correlationIDKey struct{}

// correlationIDMiddleware attaches a google/uuid correlation ID to every
// request's context and response, the way the teacher's surviving
// uuid-keyed session tracking tags a unit of work across log lines.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-Id", id)
		ctx := context.WithValue(r.Context(), correlationIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

const maxBodyBytes = 16384

// handleUplink is the gateway's single intake endpoint. Content-Type is
// the primary signal for which decode path a request takes: a device's
// plaintext method tokens (PUSH, PULL, PING) are not confined to the
// byte range spec §4.6's envelope.IsEnvelope disambiguator guarantees
// for ACK replies, so a literal "text/*" declares plaintext outright.
// Everything else falls back to envelope.IsEnvelope, which still
// correctly separates a sealed envelope from a plaintext ACK echo.
func (s *Server) handleUplink(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		s.metrics.FramesRejected.WithLabelValues("too_large").Inc()
		http.Error(w, "frame too large", http.StatusRequestEntityTooLarge)
		return
	}

	if looksLikeEnvelope(r.Header.Get("Content-Type"), body) {
		s.handleEnvelope(w, r.Context(), body)
		return
	}
	s.handleTextFrame(w, r.Context(), body)
}

func looksLikeEnvelope(contentType string, body []byte) bool {
	if strings.HasPrefix(contentType, "text/") {
		return false
	}
	return envelope.IsEnvelope(body)
}

// handleEnvelope authenticates and decrypts a TagoTiP/S binary envelope,
// then interprets its recovered headless frame.
func (s *Server) handleEnvelope(w http.ResponseWriter, ctx context.Context, data []byte) {
	header, err := envelope.ParseEnvelopeHeader(data)
	if err != nil {
		s.reject(ctx, "", "envelope_header", err)
		s.writeTextAck(w, nil, codec.StatusErr, codec.ErrInvalidPayload)
		return
	}

	if s.devices == nil {
		s.reject(ctx, "", "no_device_store", errors.New("gateway: no device store configured"))
		s.writeTextAck(w, nil, codec.StatusErr, codec.ErrServerError)
		return
	}

	rec, err := s.devices.LookupByDeviceHash(ctx, header.DeviceHash)
	if err != nil {
		s.reject(ctx, "", "unknown_device", err)
		s.writeTextAck(w, nil, codec.StatusErr, codec.ErrDeviceNotFound)
		return
	}

	if !s.limiter.Allow(rec.Serial) {
		s.reject(ctx, rec.Serial, "rate_limited", nil)
		s.writeTextAck(w, nil, codec.StatusErr, codec.ErrRateLimited)
		return
	}

	wantAuth := identity.DeriveAuthHash(rec.Token)
	if wantAuth != header.AuthHash {
		s.reject(ctx, rec.Serial, "auth_mismatch", nil)
		s.writeTextAck(w, nil, codec.StatusErr, codec.ErrAuthFailed)
		return
	}

	key := identity.DeriveKey(rec.Token, rec.Serial, header.Suite().KeySize())
	defer identity.Wipe(key)

	openStart := time.Now()
	opened, err := envelope.Open(data, key)
	s.metrics.EnvelopeOpenSeconds.Observe(time.Since(openStart).Seconds())
	if err != nil {
		s.reject(ctx, rec.Serial, "decrypt_failed", err)
		s.writeTextAck(w, nil, codec.StatusErr, codec.ErrAuthFailed)
		return
	}

	if err := s.devices.AcceptCounter(ctx, rec.Serial, opened.Header.Counter); err != nil {
		s.reject(ctx, rec.Serial, "replayed_counter", err)
		s.writeTextAck(w, nil, codec.StatusErr, codec.ErrInvalidSeq)
		return
	}

	limits := s.cfg.Limits.ToCodecLimits()
	switch opened.Header.Method() {
	case envelope.MethodPush, envelope.MethodPull, envelope.MethodPing:
		method := translateMethod(opened.Header.Method())
		hf, err := codec.ParseHeadlessUplink(method, opened.Plaintext, limits)
		if err != nil {
			s.reject(ctx, rec.Serial, "headless_uplink_parse", err)
			s.writeTextAck(w, nil, codec.StatusErr, codec.ErrInvalidPayload)
			return
		}
		s.emitUplink(ctx, rec.Serial, method, opened.Header.Counter, hf.Push, data, true)
		s.writeTextAck(w, nil, codec.StatusOk, 0)

	case envelope.MethodAck:
		hf, err := codec.ParseHeadlessAck(opened.Plaintext, limits)
		if err != nil {
			s.reject(ctx, rec.Serial, "headless_ack_parse", err)
			s.writeTextAck(w, nil, codec.StatusErr, codec.ErrInvalidPayload)
			return
		}
		s.emitAckEcho(rec.Serial, hf)
		s.writeTextAck(w, nil, codec.StatusOk, 0)
	}
}

// handleTextFrame parses a plaintext wire-form uplink frame and replies
// with a plaintext ack.
func (s *Server) handleTextFrame(w http.ResponseWriter, ctx context.Context, data []byte) {
	limits := s.cfg.Limits.ToCodecLimits()
	frame, err := codec.ParseUplinkWithLimits(data, limits)
	if err != nil {
		code := codec.ErrInvalidPayload
		var pe *grammar.ParseError
		if errors.As(err, &pe) {
			s.metrics.ParseErrors.WithLabelValues(pe.Kind.String()).Inc()
			if pe.Kind == grammar.InvalidMethod {
				code = codec.ErrInvalidMethod
			}
		}
		s.reject(ctx, "", "text_frame_parse", err)
		s.writeTextAck(w, nil, codec.StatusErr, code)
		return
	}

	if s.limiter != nil && !s.limiter.Allow(frame.Serial) {
		s.reject(ctx, frame.Serial, "rate_limited", nil)
		s.writeTextAck(w, &frame.Seq, codec.StatusErr, codec.ErrRateLimited)
		return
	}

	s.emitUplink(ctx, frame.Serial, frame.Method, 0, frame.Push, data, false)

	var seq *uint32
	if frame.HasSeq {
		seq = &frame.Seq
	}
	s.writeTextAck(w, seq, codec.StatusOk, 0)
}

// emitUplink republishes a decoded uplink to every collaborator spec §6
// leaves to the caller: metrics, the event bus, the live WebSocket
// stream, durable telemetry, and any federated peer gateways.
func (s *Server) emitUplink(ctx context.Context, serial string, method codec.Method, counter uint32, push *codec.PushBody, raw []byte, isEnvelope bool) {
	s.metrics.FramesAccepted.WithLabelValues(method.String()).Inc()
	if s.bus != nil {
		s.bus.Emit("tagotip.uplink", "gateway", serial, map[string]interface{}{
			"method":         method.String(),
			"counter":        counter,
			"correlation_id": correlationID(ctx),
		})
	}
	if s.stream != nil {
		s.stream.StreamUplink(serial, method.String(), uint64(counter), counter != 0)
	}
	if method == codec.Push {
		s.recordTelemetry(serial, push)
	}
	s.forwardToPeers(ctx, raw, isEnvelope)
}

// forwardToPeers best-effort relays the raw accepted frame to every
// federated peer gateway, never blocking the device's ack on the outcome.
func (s *Server) forwardToPeers(ctx context.Context, raw []byte, isEnvelope bool) {
	if s.peers == nil || len(s.peerURLs) == 0 {
		return
	}
	for _, peerURL := range s.peerURLs {
		peerURL := peerURL
		go func() {
			fctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := s.peers.Forward(fctx, peerURL, raw, isEnvelope); err != nil {
				slog.Warn("peer forward failed", "peer", peerURL, "correlation_id", correlationID(ctx), "error", err)
			}
		}()
	}
}

func (s *Server) emitAckEcho(serial string, hf *codec.HeadlessFrame) {
	s.metrics.FramesAccepted.WithLabelValues("ACK").Inc()
	if s.bus != nil {
		s.bus.Emit("tagotip.ack", "gateway", serial, map[string]interface{}{
			"status": hf.Status.String(),
		})
	}
	if s.stream != nil {
		s.stream.StreamAck(serial, hf.Status.String())
	}
}

func (s *Server) reject(ctx context.Context, serial, reason string, err error) {
	s.metrics.FramesRejected.WithLabelValues(reason).Inc()
	if err != nil {
		slog.Warn("uplink rejected", "serial", serial, "reason", reason, "correlation_id", correlationID(ctx), "error", err)
	} else {
		slog.Warn("uplink rejected", "serial", serial, "reason", reason, "correlation_id", correlationID(ctx))
	}
	if s.stream != nil {
		s.stream.StreamRejected(serial, reason)
	}
}

// writeTextAck replies with a plaintext AckFrame regardless of whether
// the uplink that prompted it arrived as text or as a sealed envelope.
// Replying in plaintext, rather than sealing a matching Ack envelope,
// sidesteps an open question the spec leaves to callers: a sealed reply
// would need its own counter sequence to avoid nonce reuse with the
// uplink direction, and spec §6 does not mandate one.
func (s *Server) writeTextAck(w http.ResponseWriter, seq *uint32, status codec.AckStatus, code codec.ErrCode) {
	frame := &codec.AckFrame{Status: status}
	if seq != nil {
		frame.Seq = *seq
		frame.HasSeq = true
	}
	if status == codec.StatusErr {
		frame.HasDetail = true
		frame.Detail = codec.AckDetail{Code: code}
	}
	text, err := codec.BuildAck(frame)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if status == codec.StatusErr {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	fmt.Fprint(w, text)
}

func translateMethod(m envelope.EnvelopeMethod) codec.Method {
	switch m {
	case envelope.MethodPush:
		return codec.Push
	case envelope.MethodPull:
		return codec.Pull
	default:
		return codec.Ping
	}
}

// Metrics holds the gateway's Prometheus instrumentation, grounded on the
// teacher's escrow/metrics.go promauto pattern.
type Metrics struct {
	FramesAccepted      *prometheus.CounterVec
	FramesRejected      *prometheus.CounterVec
	ParseErrors         *prometheus.CounterVec
	EnvelopeOpenSeconds prometheus.Histogram
}

// NewMetrics creates and registers the gateway's Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagotip_frames_accepted_total",
				Help: "Total number of uplink/ack frames accepted by the gateway",
			},
			[]string{"method"},
		),
		FramesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagotip_frames_rejected_total",
				Help: "Total number of frames rejected by the gateway, by reason",
			},
			[]string{"reason"},
		),
		ParseErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagotip_parse_errors_total",
				Help: "Total number of text-frame parse errors, by grammar.ErrKind",
			},
			[]string{"kind"},
		),
		EnvelopeOpenSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tagotip_envelope_open_seconds",
				Help:    "Time spent authenticating and decrypting a TagoTiP/S envelope",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}
