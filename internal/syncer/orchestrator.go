// Package syncer drives pull-based polling of biometric devices. Each
// cycle walks every enabled pull-mode device, fetches its logs with a
// bounded retry budget and feeds them through the same normalization and
// reconciliation path the webhook uses.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"attendance-sync/internal/adapter"
	"attendance-sync/internal/reconcile"
	"attendance-sync/internal/storage"
)

type LogFetcher interface {
	FetchLogs(ctx context.Context, device *storage.Device) ([]map[string]any, error)
}

type Store interface {
	ListPullDevices(ctx context.Context) ([]storage.Device, error)
	CreateSyncAttempt(ctx context.Context, attempt storage.SyncAttempt) error
	FinalizeSyncAttempt(ctx context.Context, attemptID string, status storage.SyncStatus, recordsSynced int, errMessage *string) error
	UpdateDeviceSyncState(ctx context.Context, deviceID string, online bool, lastSync *time.Time) error
}

type Orchestrator struct {
	store    Store
	registry *adapter.Registry
	engine   *reconcile.Engine
	fetcher  LogFetcher

	retries int
	backoff time.Duration

	// sleep and now are injectable so tests run without wall-clock waits.
	sleep func(time.Duration)
	now   func() time.Time

	logger *slog.Logger
}

func NewOrchestrator(store Store, registry *adapter.Registry, engine *reconcile.Engine, fetcher LogFetcher, retries int, backoff time.Duration) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		engine:   engine,
		fetcher:  fetcher,
		retries:  retries,
		backoff:  backoff,
		sleep:    time.Sleep,
		now:      time.Now,
		logger:   slog.With("component", "syncer"),
	}
}

// WithSleep replaces the inter-attempt delay. Test hook.
func (o *Orchestrator) WithSleep(sleep func(time.Duration)) *Orchestrator {
	o.sleep = sleep
	return o
}

// WithClock replaces the orchestrator's clock. Test hook.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// DeviceResult is one device's outcome within a cycle.
type DeviceResult struct {
	DeviceID   string             `json:"device_id"`
	DeviceName string             `json:"device"`
	Status     storage.SyncStatus `json:"status"`
	Records    int                `json:"records,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// RunCycle polls every enabled pull-mode device once. Devices are
// processed sequentially and independently: one device exhausting its
// retry budget never aborts the rest of the pass.
func (o *Orchestrator) RunCycle(ctx context.Context) ([]DeviceResult, error) {
	devices, err := o.store.ListPullDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pull devices: %w", err)
	}
	if len(devices) == 0 {
		o.logger.Info("No pull devices enabled")
		return nil, nil
	}

	results := make([]DeviceResult, 0, len(devices))
	for i := range devices {
		results = append(results, o.syncDevice(ctx, &devices[i]))
	}
	return results, nil
}

func (o *Orchestrator) syncDevice(ctx context.Context, device *storage.Device) DeviceResult {
	attempt := storage.SyncAttempt{
		ID:        uuid.NewString(),
		DeviceID:  device.ID,
		Kind:      storage.SyncKindScheduled,
		Status:    storage.SyncStatusPending,
		StartedAt: o.now().UTC(),
	}
	if err := o.store.CreateSyncAttempt(ctx, attempt); err != nil {
		o.logger.Error("Failed to open sync attempt",
			"device_serial", device.Serial, "error", err)
		return DeviceResult{
			DeviceID: device.ID, DeviceName: device.Name,
			Status: storage.SyncStatusFailed, Error: err.Error(),
		}
	}

	var lastErr string
	for attemptNo := 1; attemptNo <= o.retries; attemptNo++ {
		if attemptNo > 1 {
			o.sleep(o.backoff)
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err().Error()
			break
		}

		records, err := o.fetcher.FetchLogs(ctx, device)
		if err != nil {
			lastErr = err.Error()
			o.logger.Warn("Device pull failed",
				"device_serial", device.Serial, "attempt", attemptNo, "error", err)
			continue
		}

		events, normErrs := o.registry.Normalize(device.Company, records)
		result := o.engine.Apply(ctx, device, events)
		for _, normErr := range normErrs {
			result.Errors = append(result.Errors, normErr.Error())
		}

		// Transport succeeded, so the attempt is a success; per-event
		// errors are preserved in the ledger rather than dropped.
		if err := o.store.FinalizeSyncAttempt(ctx, attempt.ID, storage.SyncStatusSuccess, result.Synced, result.ErrorText()); err != nil {
			o.logger.Error("Failed to finalize sync attempt",
				"attempt_id", attempt.ID, "error", err)
		}
		syncedAt := o.now().UTC()
		if err := o.store.UpdateDeviceSyncState(ctx, device.ID, true, &syncedAt); err != nil {
			o.logger.Error("Failed to update device sync state",
				"device_id", device.ID, "error", err)
		}

		o.logger.Info("Device sync succeeded",
			"device_serial", device.Serial, "records", result.Synced,
			"event_errors", len(result.Errors))
		return DeviceResult{
			DeviceID: device.ID, DeviceName: device.Name,
			Status: storage.SyncStatusSuccess, Records: result.Synced,
		}
	}

	// Retry budget exhausted: the attempt fails and the device is marked
	// offline. Enabled/config state is never touched here.
	if err := o.store.FinalizeSyncAttempt(ctx, attempt.ID, storage.SyncStatusFailed, 0, &lastErr); err != nil {
		o.logger.Error("Failed to finalize sync attempt",
			"attempt_id", attempt.ID, "error", err)
	}
	if err := o.store.UpdateDeviceSyncState(ctx, device.ID, false, nil); err != nil {
		o.logger.Error("Failed to update device sync state",
			"device_id", device.ID, "error", err)
	}

	o.logger.Warn("Device sync failed, retry budget exhausted",
		"device_serial", device.Serial, "error", lastErr)
	return DeviceResult{
		DeviceID: device.ID, DeviceName: device.Name,
		Status: storage.SyncStatusFailed, Error: lastErr,
	}
}
