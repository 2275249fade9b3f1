package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"attendance-sync/internal/adapter"
	"attendance-sync/internal/gate"
	"attendance-sync/internal/reconcile"
	"attendance-sync/internal/storage"
)

// LedgerStore is the slice of storage the webhook path writes to.
type LedgerStore interface {
	CreateSyncAttempt(ctx context.Context, attempt storage.SyncAttempt) error
	FinalizeSyncAttempt(ctx context.Context, attemptID string, status storage.SyncStatus, recordsSynced int, errMessage *string) error
	UpdateDeviceSyncState(ctx context.Context, deviceID string, online bool, lastSync *time.Time) error
}

// WebhookDeps are the collaborators of the webhook endpoint, constructed
// once and passed in explicitly so tests can substitute any of them.
type WebhookDeps struct {
	Gate     *gate.Gate
	Registry *adapter.Registry
	Engine   *reconcile.Engine
	Ledger   LedgerStore
}

type webhookResponse struct {
	Success       bool     `json:"success"`
	RecordsSynced int      `json:"records_synced"`
	Errors        []string `json:"errors,omitempty"`
}

// WebhookApi mounts the device push-ingestion endpoint.
//
// Flow: security gate → parse body (batch or single event) → normalize
// via the device's vendor adapter → open a pending sync attempt →
// reconcile every event → finalize the attempt → stamp device state.
// Synchronous request/response; the device is the retrying party, this
// handler never retries internally.
func WebhookApi(r *gin.RouterGroup, deps WebhookDeps) {
	r.POST("/webhook", func(c *gin.Context) {
		ctx := c.Request.Context()

		creds := gate.Credentials{
			Serial:    c.GetHeader("X-Device-ID"),
			Secret:    c.GetHeader("X-Device-Secret"),
			Nonce:     c.GetHeader("X-Nonce"),
			Timestamp: c.GetHeader("X-Timestamp"),
		}

		device, err := deps.Gate.Authenticate(ctx, creds)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidBody, err))
			return
		}
		rawRecords, err := decodeBody(body)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		events, normErrs := deps.Registry.Normalize(device.Company, rawRecords)

		attempt := storage.SyncAttempt{
			ID:        uuid.NewString(),
			DeviceID:  device.ID,
			Kind:      storage.SyncKindWebhook,
			Status:    storage.SyncStatusPending,
			StartedAt: time.Now().UTC(),
		}
		if err := deps.Ledger.CreateSyncAttempt(ctx, attempt); err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrInternalServer, err))
			return
		}

		result := deps.Engine.Apply(ctx, device, events)
		for _, normErr := range normErrs {
			result.Errors = append(result.Errors, normErr.Error())
		}

		// Any per-event error marks the whole attempt failed even with
		// partial success; records_synced still reports the partial count.
		status := storage.SyncStatusSuccess
		if len(result.Errors) > 0 {
			status = storage.SyncStatusFailed
		}
		if err := deps.Ledger.FinalizeSyncAttempt(ctx, attempt.ID, status, result.Synced, result.ErrorText()); err != nil {
			slog.Error("Failed to finalize webhook sync attempt",
				"attempt_id", attempt.ID, "error", err)
		}

		syncedAt := time.Now().UTC()
		if err := deps.Ledger.UpdateDeviceSyncState(ctx, device.ID, true, &syncedAt); err != nil {
			slog.Error("Failed to update device sync state",
				"device_id", device.ID, "error", err)
		}

		c.JSON(http.StatusOK, webhookResponse{
			Success:       true,
			RecordsSynced: result.Synced,
			Errors:        result.Errors,
		})
	})
}

// decodeBody accepts either `{"logs": [...]}` or a single flat event
// object.
func decodeBody(body []byte) ([]map[string]any, error) {
	var batch struct {
		Logs []map[string]any `json:"logs"`
	}
	if err := json.Unmarshal(body, &batch); err == nil && batch.Logs != nil {
		return batch.Logs, nil
	}

	var single map[string]any
	if err := json.Unmarshal(body, &single); err == nil && len(single) > 0 {
		return []map[string]any{single}, nil
	}

	return nil, ErrInvalidBody
}
