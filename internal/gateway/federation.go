package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/tagotip/tagotip/internal/identity"
)

// PeerForwarder relays accepted frames to federated gateway instances
// over mutual TLS, authenticated by SPIFFE SVIDs rather than the core's
// per-device auth_hash/device_hash scheme. This secures gateway-to-gateway
// links only; it has no bearing on device identity or the AEAD envelope.
type PeerForwarder struct {
	client *http.Client
}

// NewPeerForwarder builds a forwarder from an already-connected SPIFFE
// verifier's mTLS configuration.
func NewPeerForwarder(verifier *identity.SPIFFEVerifier) (*PeerForwarder, error) {
	tlsConf, err := verifier.GetTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("gateway: peer mTLS config: %w", err)
	}
	return &PeerForwarder{
		client: &http.Client{Transport: &http.Transport{TLSClientConfig: tlsConf}},
	}, nil
}

// Forward relays a raw uplink body (envelope or plaintext frame) to a
// peer gateway's intake endpoint, letting a federated deployment share
// decoded traffic across instances that serve the same device pool.
// isEnvelope must reflect how this gateway itself decoded body, so the
// peer's own Content-Type-based dispatch (see looksLikeEnvelope) routes
// it the same way rather than re-guessing from the raw bytes.
func (f *PeerForwarder) Forward(ctx context.Context, peerURL string, body []byte, isEnvelope bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peerURL+"/v1/uplink", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: build peer request: %w", err)
	}
	if isEnvelope {
		req.Header.Set("Content-Type", "application/octet-stream")
	} else {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: peer forward: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway: peer forward: status %d", resp.StatusCode)
	}
	return nil
}
