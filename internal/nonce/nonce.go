// Package nonce provides the replay-protection store for webhook
// deliveries. A nonce is write-once: its existence is itself the dedup
// signal. The core never updates or deletes nonces; retention is an
// external concern.
package nonce

import (
	"context"
	"fmt"
)

// ReplayError reports a nonce that has already been recorded for a
// device. Distinct from a generic auth error so monitoring can tell
// replay attempts from configuration mistakes.
type ReplayError struct {
	DeviceID string
	Nonce    string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("nonce already used for device %s: %s", e.DeviceID, e.Nonce)
}

type Store interface {
	// Seen reports whether the nonce was already recorded for the device.
	// A read, not a claim: the decisive dedup check is Record.
	Seen(ctx context.Context, deviceID, nonce string) (bool, error)

	// Record durably claims the nonce for the device. Returns
	// *ReplayError if the nonce exists; under concurrency the backing
	// store's uniqueness guarantee resolves the race, not a prior read.
	Record(ctx context.Context, deviceID, nonce string) error
}
