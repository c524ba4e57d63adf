// Command tagotip-gateway runs the TagoTiP device-intake HTTP gateway:
// it accepts plaintext wire frames and sealed TagoTiP/S envelopes on one
// endpoint, authenticates and decrypts, applies the replay and
// rate-limit policies spec §6 leaves to callers, and republishes
// decoded traffic on an event bus and a live WebSocket stream.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tagotip/tagotip/internal/config"
	"github.com/tagotip/tagotip/internal/events"
	"github.com/tagotip/tagotip/internal/gateway"
	"github.com/tagotip/tagotip/internal/identity"
	"github.com/tagotip/tagotip/internal/middleware"
	"github.com/tagotip/tagotip/internal/replay"
	"github.com/tagotip/tagotip/internal/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}

	cfg := config.Get()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis ping failed, device registry and replay guard will error until it recovers", "addr", cfg.Redis.Addr, "error", err)
	}
	pingCancel()

	devices := replay.NewStore(rdb, "tagotip:", 0)
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{})
	bus := events.NewEventBus()

	stream := websocket.NewFrameStreamer()
	go stream.Run()

	srv := gateway.NewServer(cfg, devices, limiter, bus, stream)

	if cfg.Database.DSN != "" {
		sink, err := gateway.NewTelemetrySink(cfg.Database.DSN)
		if err != nil {
			slog.Warn("telemetry sink unavailable, readings will not be persisted", "error", err)
		} else {
			defer sink.Close()
			schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := sink.EnsureSchema(schemaCtx); err != nil {
				slog.Warn("telemetry schema setup failed", "error", err)
			}
			schemaCancel()
			srv.SetTelemetry(sink)
			slog.Info("telemetry sink wired", "dsn_configured", true)
		}
	}

	if socket := os.Getenv("SPIFFE_ENDPOINT_SOCKET"); socket != "" {
		verifier, err := identity.NewSPIFFEVerifier(socket)
		if err != nil {
			slog.Warn("SPIFFE verifier not available, federation links run without mTLS", "error", err)
		} else {
			defer verifier.Close()

			if trustDomain, gatewayID := os.Getenv("SPIFFE_TRUST_DOMAIN"), os.Getenv("TAGOTIP_GATEWAY_ID"); trustDomain != "" && gatewayID != "" {
				expected := identity.GenerateSPIFFEID(trustDomain, gatewayID)
				if _, err := verifier.VerifySVID(expected); err != nil {
					slog.Warn("gateway SVID does not match expected identity", "expected", expected, "error", err)
				}
			}

			forwarder, err := gateway.NewPeerForwarder(verifier)
			if err != nil {
				slog.Warn("peer forwarder setup failed", "error", err)
			} else {
				peerURLs := splitNonEmpty(os.Getenv("TAGOTIP_PEER_URLS"))
				srv.SetFederation(forwarder, peerURLs)
				slog.Info("SPIFFE-authenticated federation wired", "peers", len(peerURLs))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.GetPort()
	slog.Info("tagotip-gateway starting", "addr", addr, "env", cfg.Server.Env)

	if err := srv.Start(ctx, addr); err != nil {
		log.Fatalf("gateway server failed: %v", err)
	}

	slog.Info("tagotip-gateway stopped")
}

// splitNonEmpty splits a comma-separated list, dropping empty entries.
func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
