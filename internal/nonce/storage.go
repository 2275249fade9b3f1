package nonce

import (
	"context"
	"errors"
	"log/slog"

	"attendance-sync/internal/storage"
)

// ---------------------------------------------------------------------------
// SQL implementation
// ---------------------------------------------------------------------------

// SQLStore persists nonces through the storage provider. The
// (device, nonce) primary key makes Record race-safe across processes.
type SQLStore struct {
	storage storage.Provider
	logger  *slog.Logger
}

func NewSQLStore(provider storage.Provider) *SQLStore {
	return &SQLStore{
		storage: provider,
		logger:  slog.With("component", "nonce"),
	}
}

func (s *SQLStore) Seen(ctx context.Context, deviceID, n string) (bool, error) {
	return s.storage.ExistsNonce(ctx, deviceID, n)
}

func (s *SQLStore) Record(ctx context.Context, deviceID, n string) error {
	err := s.storage.CreateNonce(ctx, deviceID, n)
	if errors.Is(err, storage.ErrDuplicateNonce) {
		return &ReplayError{DeviceID: deviceID, Nonce: n}
	}
	return err
}
