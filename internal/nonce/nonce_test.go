package nonce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRecordOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seen, err := store.Seen(ctx, "ZK-100", "n-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Record(ctx, "ZK-100", "n-1"))

	seen, err = store.Seen(ctx, "ZK-100", "n-1")
	require.NoError(t, err)
	assert.True(t, seen)

	err = store.Record(ctx, "ZK-100", "n-1")
	var replayErr *ReplayError
	require.ErrorAs(t, err, &replayErr)
	assert.Equal(t, "ZK-100", replayErr.DeviceID)
	assert.Equal(t, "n-1", replayErr.Nonce)
}

func TestMemoryStoreScopedPerDevice(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "ZK-100", "n-1"))
	require.NoError(t, store.Record(ctx, "ZK-200", "n-1"))

	err := store.Record(ctx, "ZK-100", "n-1")
	assert.Error(t, err)
}

func TestReplayErrorMessage(t *testing.T) {
	err := error(&ReplayError{DeviceID: "ZK-100", Nonce: "n-1"})
	assert.Contains(t, err.Error(), "ZK-100")
	assert.Contains(t, err.Error(), "n-1")
	assert.False(t, errors.Is(err, context.Canceled))
}
