// Package sdk is the device-side TagoTiP client: build and send an
// uplink, either as a plaintext wire frame or as a sealed TagoTiP/S
// envelope, and decode the gateway's ack reply.
//
// Quick start:
//
//	client := sdk.NewClient(sdk.Config{
//	    GatewayURL: "https://gateway.example.com",
//	    Serial:     "sensor-01",
//	    Token:      "ate2bd319014b24e0a8aca9f00aea4c0d0",
//	})
//
//	result, err := client.Push(ctx, []sdk.Reading{
//	    {Name: "temp", Value: codec.Value{Op: codec.OpNumber, Number: "32"}},
//	})
package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tagotip/tagotip/internal/aead"
	"github.com/tagotip/tagotip/internal/codec"
	"github.com/tagotip/tagotip/internal/envelope"
	"github.com/tagotip/tagotip/internal/identity"
)

// Config holds the device client's configuration.
type Config struct {
	// GatewayURL is the gateway's base URL, e.g. "https://gateway.example.com".
	GatewayURL string

	// Serial identifies this device on the wire.
	Serial string

	// Token is the device's long-lived auth token, carried with its "at"
	// prefix (spec §5).
	Token string

	// UseEnvelope seals every uplink as a TagoTiP/S binary envelope
	// instead of sending a plaintext wire frame.
	UseEnvelope bool

	// Suite selects the cipher suite for envelope mode. Zero value
	// (AES128CCM) is the spec's mandatory suite.
	Suite aead.Suite

	// Timeout bounds each HTTP round trip. Defaults to 10s.
	Timeout time.Duration
}

// Client is a TagoTiP device client.
type Client struct {
	config     Config
	httpClient *http.Client
	counter    uint32 // envelope mode only; monotonically increasing
}

// NewClient creates a device client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Push sends a structured Push uplink with the given readings.
func (c *Client) Push(ctx context.Context, readings []Reading) (*AckResult, error) {
	return c.PushGrouped(ctx, "", false, "", false, readings)
}

// PushGrouped sends a structured Push uplink with body-level group and
// timestamp modifiers applied.
func (c *Client) PushGrouped(ctx context.Context, group string, hasGroup bool, timestamp string, hasTS bool, readings []Reading) (*AckResult, error) {
	sb := &codec.StructuredBody{
		Group:     group,
		HasGroup:  hasGroup,
		Timestamp: timestamp,
		HasTS:     hasTS,
		Variables: toVariables(readings),
	}

	if c.config.UseEnvelope {
		hf := &codec.HeadlessFrame{IsUplink: true, Method: codec.Push, Serial: c.config.Serial, Push: &codec.PushBody{Structured: sb}}
		text, err := codec.BuildHeadlessUplink(hf)
		if err != nil {
			return nil, fmt.Errorf("sdk: build headless uplink: %w", err)
		}
		return c.sendEnvelope(ctx, envelope.MethodPush, []byte(text))
	}

	frame := &codec.UplinkFrame{Method: codec.Push, Auth: c.config.Token, Serial: c.config.Serial, Push: &codec.PushBody{Structured: sb}}
	text, err := codec.BuildUplink(frame)
	if err != nil {
		return nil, fmt.Errorf("sdk: build uplink: %w", err)
	}
	return c.sendText(ctx, text)
}

// Pull requests the current values of the named variables.
func (c *Client) Pull(ctx context.Context, names []string) (*AckResult, error) {
	if c.config.UseEnvelope {
		hf := &codec.HeadlessFrame{IsUplink: true, Method: codec.Pull, Serial: c.config.Serial, Pull: &codec.PullBody{Variables: names}}
		text, err := codec.BuildHeadlessUplink(hf)
		if err != nil {
			return nil, fmt.Errorf("sdk: build headless pull: %w", err)
		}
		return c.sendEnvelope(ctx, envelope.MethodPull, []byte(text))
	}

	frame := &codec.UplinkFrame{Method: codec.Pull, Auth: c.config.Token, Serial: c.config.Serial, Pull: &codec.PullBody{Variables: names}}
	text, err := codec.BuildUplink(frame)
	if err != nil {
		return nil, fmt.Errorf("sdk: build pull: %w", err)
	}
	return c.sendText(ctx, text)
}

// Ping sends a liveness check.
func (c *Client) Ping(ctx context.Context) (*AckResult, error) {
	if c.config.UseEnvelope {
		hf := &codec.HeadlessFrame{IsUplink: true, Method: codec.Ping, Serial: c.config.Serial}
		text, err := codec.BuildHeadlessUplink(hf)
		if err != nil {
			return nil, fmt.Errorf("sdk: build headless ping: %w", err)
		}
		return c.sendEnvelope(ctx, envelope.MethodPing, []byte(text))
	}

	frame := &codec.UplinkFrame{Method: codec.Ping, Auth: c.config.Token, Serial: c.config.Serial}
	text, err := codec.BuildUplink(frame)
	if err != nil {
		return nil, fmt.Errorf("sdk: build ping: %w", err)
	}
	return c.sendText(ctx, text)
}

func toVariables(readings []Reading) []codec.Variable {
	vars := make([]codec.Variable, len(readings))
	for i, r := range readings {
		vars[i] = codec.Variable{
			Name:     r.Name,
			Value:    r.Value,
			Unit:     r.Unit,
			HasUnit:  r.HasUnit,
			Group:    r.Group,
			HasGroup: r.HasGroup,
		}
	}
	return vars
}

// sendEnvelope derives the device's key and identity hashes, seals a
// TagoTiP/S envelope around inner, and POSTs it.
func (c *Client) sendEnvelope(ctx context.Context, method envelope.EnvelopeMethod, inner []byte) (*AckResult, error) {
	suite := c.config.Suite
	if !suite.Valid() {
		suite = aead.AES128CCM
	}

	authHash := identity.DeriveAuthHash(c.config.Token)
	deviceHash := identity.DeriveDeviceHash(c.config.Serial)
	key := identity.DeriveKey(c.config.Token, c.config.Serial, suite.KeySize())
	defer identity.Wipe(key)

	counter := atomic.AddUint32(&c.counter, 1)
	sealed, err := envelope.Seal(suite, method, inner, counter, authHash, deviceHash, key)
	if err != nil {
		return nil, fmt.Errorf("sdk: seal envelope: %w", err)
	}

	return c.postAndDecode(ctx, sealed, "application/octet-stream")
}

func (c *Client) sendText(ctx context.Context, text string) (*AckResult, error) {
	return c.postAndDecode(ctx, []byte(text), "text/plain; charset=utf-8")
}

// postAndDecode POSTs body with the given Content-Type and decodes the
// gateway's plaintext ack reply. The Content-Type matters beyond HTTP
// bookkeeping: it is the gateway's primary signal for routing a request
// to the text-frame or envelope decode path, since the plaintext
// method tokens PUSH/PULL/PING are not confined to the byte range the
// spec's ACK-reply disambiguator (§4.6) guarantees.
func (c *Client) postAndDecode(ctx context.Context, body []byte, contentType string) (*AckResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GatewayURL+"/v1/uplink", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sdk: gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sdk: read response: %w", err)
	}

	ack, err := codec.ParseAck(respBody)
	if err != nil {
		return nil, fmt.Errorf("sdk: parse ack: %w", err)
	}

	return &AckResult{
		Status:    ack.Status,
		HasDetail: ack.HasDetail,
		Detail:    ack.Detail,
		HasSeq:    ack.HasSeq,
		Seq:       ack.Seq,
	}, nil
}
