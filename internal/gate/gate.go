// Package gate authenticates device deliveries before any business logic
// runs: identity, shared secret, request freshness and nonce uniqueness.
package gate

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"attendance-sync/internal/nonce"
	"attendance-sync/internal/storage"
)

var (
	// ErrMissingCredentials: no device serial or no secret presented.
	ErrMissingCredentials = errors.New("missing device credentials")
	// ErrExpired: request timestamp outside the freshness window.
	ErrExpired = errors.New("request expired")
	// ErrInvalidTimestamp: a timestamp header was presented but could not
	// be parsed. Rejected rather than waved through.
	ErrInvalidTimestamp = errors.New("invalid request timestamp")
	// ErrUnauthorized covers unknown device, disabled device and secret
	// mismatch alike, so responses leak no enumeration data.
	ErrUnauthorized = errors.New("unauthorized device")
)

// Credentials are the device-presented request headers. Nonce and
// Timestamp are optional; their absence weakens the replay guarantee but
// is accepted.
type Credentials struct {
	Serial    string
	Secret    string
	Nonce     string
	Timestamp string // ISO 8601
}

type DeviceResolver interface {
	GetDeviceBySerial(ctx context.Context, serial string) (*storage.Device, error)
}

type AuditWriter interface {
	CreateAuditLog(ctx context.Context, entry storage.AuditLog) error
}

type Gate struct {
	devices DeviceResolver
	audits  AuditWriter
	nonces  nonce.Store

	window time.Duration
	now    func() time.Time

	logger *slog.Logger
}

func New(devices DeviceResolver, audits AuditWriter, nonces nonce.Store, window time.Duration) *Gate {
	return &Gate{
		devices: devices,
		audits:  audits,
		nonces:  nonces,
		window:  window,
		now:     time.Now,
		logger:  slog.With("component", "gate"),
	}
}

// WithClock replaces the gate's clock. Test hook.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Authenticate validates a delivery and returns the resolved device.
//
// Rejections are side-effect-free except for the audit record on a
// secret mismatch; the nonce is durably recorded only after
// authentication succeeds, so earlier rejections leave no state behind.
// A concurrent duplicate racing on the same nonce is caught by the nonce
// store's uniqueness guarantee, not by the earlier lookup.
func (g *Gate) Authenticate(ctx context.Context, creds Credentials) (*storage.Device, error) {
	if creds.Serial == "" || creds.Secret == "" {
		return nil, ErrMissingCredentials
	}

	if creds.Timestamp != "" {
		requestTime, err := time.Parse(time.RFC3339, creds.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, creds.Timestamp)
		}
		// Strictly-greater comparison: a skew of exactly the window is
		// still fresh.
		if age := g.now().Sub(requestTime); age > g.window || age < -g.window {
			return nil, ErrExpired
		}
	}

	if creds.Nonce != "" {
		seen, err := g.nonces.Seen(ctx, creds.Serial, creds.Nonce)
		if err != nil {
			return nil, fmt.Errorf("nonce lookup: %w", err)
		}
		if seen {
			return nil, &nonce.ReplayError{DeviceID: creds.Serial, Nonce: creds.Nonce}
		}
	}

	device, err := g.devices.GetDeviceBySerial(ctx, creds.Serial)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	if !device.IsEnabled {
		return nil, ErrUnauthorized
	}

	if device.SecretKey == nil || subtle.ConstantTimeCompare([]byte(*device.SecretKey), []byte(creds.Secret)) != 1 {
		detail := fmt.Sprintf("presented serial %q", creds.Serial)
		if err := g.audits.CreateAuditLog(ctx, storage.AuditLog{
			Action:      "webhook_auth_failed",
			TargetTable: "devices",
			TargetID:    &device.ID,
			Detail:      &detail,
		}); err != nil {
			g.logger.Error("Failed to record auth failure", "device_id", device.ID, "error", err)
		}
		return nil, ErrUnauthorized
	}

	if creds.Nonce != "" {
		if err := g.nonces.Record(ctx, creds.Serial, creds.Nonce); err != nil {
			return nil, err
		}
	}

	return device, nil
}
