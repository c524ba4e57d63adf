// SPIFFE/SPIRE workload identity for gateway-to-gateway federation links
// (internal/gateway.PeerForwarder). This is a second, optional identity
// layer on top of the core's per-device auth_hash/device_hash scheme: it
// authenticates which gateway instance is talking to which, not which
// device sent a frame.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
)

// SPIFFEVerifier holds this gateway instance's X.509 SVID source, fetched
// from a local SPIRE agent over a Unix domain socket.
type SPIFFEVerifier struct {
	source *workloadapi.X509Source
	ctx    context.Context
}

// NewSPIFFEVerifier connects to the SPIRE agent listening on socketPath.
func NewSPIFFEVerifier(socketPath string) (*SPIFFEVerifier, error) {
	// Timeout bounds startup: a gateway shouldn't hang waiting on a SPIRE
	// agent that may not be deployed in every environment.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	source, err := workloadapi.NewX509Source(
		ctx,
		workloadapi.WithClientOptions(workloadapi.WithAddr(socketPath)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SPIRE: %w", err)
	}

	slog.Info("connected to SPIRE agent", "socket_path", socketPath)
	return &SPIFFEVerifier{
		source: source,
		ctx:    context.Background(),
	}, nil
}

// VerifySVID confirms this gateway's own SVID matches the SPIFFE ID it
// expects to be running as, and returns a hash identifying the
// certificate. A gateway operator calls this once at startup as a
// self-check: a mismatch means the SPIRE agent issued an identity for a
// different workload than the one this process believes it is.
func (sv *SPIFFEVerifier) VerifySVID(spiffeID string) (uint64, error) {
	id, err := spiffeid.FromString(spiffeID)
	if err != nil {
		return 0, fmt.Errorf("invalid SPIFFE ID: %w", err)
	}

	svid, err := sv.source.GetX509SVID()
	if err != nil {
		return 0, fmt.Errorf("failed to get SVID: %w", err)
	}

	if svid.ID.String() != id.String() {
		return 0, fmt.Errorf("SPIFFE ID mismatch: expected %s, got %s", id, svid.ID)
	}

	hash := sv.calculateSVIDHash(svid.Certificates[0].Raw)
	slog.Info("verified gateway SPIFFE ID", "spiffe_id", spiffeID, "cert_hash", hash)
	return hash, nil
}

// calculateSVIDHash reduces an SVID certificate to a 64-bit hash for
// compact logging and comparison.
func (sv *SPIFFEVerifier) calculateSVIDHash(certDER []byte) uint64 {
	hash := sha256.Sum256(certDER)

	var result uint64
	for i := 0; i < 8; i++ {
		result = (result << 8) | uint64(hash[i])
	}

	return result
}

// GetTLSConfig returns a mutual-TLS config authenticated by this
// gateway's SVID, for use as an http.Transport.TLSClientConfig when
// forwarding accepted frames to a federated peer.
func (sv *SPIFFEVerifier) GetTLSConfig() (*tls.Config, error) {
	tlsConf := tlsconfig.MTLSClientConfig(sv.source, sv.source, tlsconfig.AuthorizeAny())
	return tlsConf, nil
}

// Close releases the workload API connection.
func (sv *SPIFFEVerifier) Close() error {
	return sv.source.Close()
}

// GenerateSPIFFEID builds the SPIFFE ID a gateway instance should be
// running as, e.g. GenerateSPIFFEID("tagotip.example.com", "gateway-us-east-1")
// returns "spiffe://tagotip.example.com/gateway/gateway-us-east-1".
func GenerateSPIFFEID(trustDomain, gatewayID string) string {
	return fmt.Sprintf("spiffe://%s/gateway/%s", trustDomain, gatewayID)
}
