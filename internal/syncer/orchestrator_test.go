package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-sync/internal/adapter"
	"attendance-sync/internal/reconcile"
	"attendance-sync/internal/storage"
)

type deviceState struct {
	online   bool
	lastSync *time.Time
}

type fakeStore struct {
	devices []storage.Device

	attempts      map[string]*storage.SyncAttempt
	finalizeCalls map[string]int
	states        map[string]deviceState
}

func newFakeStore(devices ...storage.Device) *fakeStore {
	return &fakeStore{
		devices:       devices,
		attempts:      make(map[string]*storage.SyncAttempt),
		finalizeCalls: make(map[string]int),
		states:        make(map[string]deviceState),
	}
}

func (f *fakeStore) ListPullDevices(ctx context.Context) ([]storage.Device, error) {
	return f.devices, nil
}

func (f *fakeStore) CreateSyncAttempt(ctx context.Context, attempt storage.SyncAttempt) error {
	a := attempt
	f.attempts[attempt.ID] = &a
	return nil
}

func (f *fakeStore) FinalizeSyncAttempt(ctx context.Context, attemptID string, status storage.SyncStatus, recordsSynced int, errMessage *string) error {
	f.finalizeCalls[attemptID]++
	attempt, ok := f.attempts[attemptID]
	if !ok {
		return storage.ErrNotFound
	}
	if attempt.Status != storage.SyncStatusPending {
		return storage.ErrAttemptFinalized
	}
	attempt.Status = status
	attempt.RecordsSynced = recordsSynced
	attempt.ErrorMessage = errMessage
	return nil
}

func (f *fakeStore) UpdateDeviceSyncState(ctx context.Context, deviceID string, online bool, lastSync *time.Time) error {
	f.states[deviceID] = deviceState{online: online, lastSync: lastSync}
	return nil
}

func (f *fakeStore) singleAttempt(t *testing.T) *storage.SyncAttempt {
	t.Helper()
	require.Len(t, f.attempts, 1)
	for _, attempt := range f.attempts {
		return attempt
	}
	return nil
}

// scriptedFetcher replays a fixed sequence of outcomes per device serial.
type scriptedFetcher struct {
	script map[string][]fetchOutcome
	calls  map[string]int
}

type fetchOutcome struct {
	records []map[string]any
	err     error
}

func (s *scriptedFetcher) FetchLogs(ctx context.Context, device *storage.Device) ([]map[string]any, error) {
	outcomes := s.script[device.Serial]
	call := s.calls[device.Serial]
	s.calls[device.Serial]++
	if call >= len(outcomes) {
		return nil, errors.New("unscripted call")
	}
	return outcomes[call].records, outcomes[call].err
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		script: make(map[string][]fetchOutcome),
		calls:  make(map[string]int),
	}
}

type fakeStudents map[string]*storage.Student

func (f fakeStudents) GetStudentByBiometricID(ctx context.Context, biometricID string) (*storage.Student, error) {
	if student, ok := f[biometricID]; ok {
		return student, nil
	}
	return nil, storage.ErrNotFound
}

type countingAttendance struct{ merges int }

func (c *countingAttendance) UpsertAttendance(ctx context.Context, merge storage.AttendanceMerge) error {
	c.merges++
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func pullDevice(serial string) storage.Device {
	return storage.Device{
		ID:          "id-" + serial,
		Serial:      serial,
		Name:        serial,
		Company:     "generic",
		Integration: storage.IntegrationAPIPull,
		IPAddress:   strPtr("10.0.0.5"),
		Port:        intPtr(8081),
		IsEnabled:   true,
	}
}

func goodRecords() []map[string]any {
	return []map[string]any{
		{"user_id": "1001", "timestamp": "2026-02-12T08:30:00Z", "type": "check-in"},
		{"user_id": "1002", "timestamp": "2026-02-12T08:31:00Z", "type": "check-in"},
	}
}

func newTestOrchestrator(store Store, fetcher LogFetcher) (*Orchestrator, *[]time.Duration) {
	students := fakeStudents{
		"1001": {ID: "stu-1", BiometricID: strPtr("1001")},
		"1002": {ID: "stu-2", BiometricID: strPtr("1002")},
	}
	engine := reconcile.NewEngine(students, &countingAttendance{})

	var sleeps []time.Duration
	o := NewOrchestrator(store, adapter.NewRegistry(), engine, fetcher, 3, 2*time.Second).
		WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) })
	return o, &sleeps
}

func TestRetryThenSuccess(t *testing.T) {
	store := newFakeStore(pullDevice("DEV-1"))
	fetcher := newScriptedFetcher()
	fetcher.script["DEV-1"] = []fetchOutcome{
		{err: errors.New("device returned 500")},
		{err: errors.New("device unreachable")},
		{records: goodRecords()},
	}

	o, sleeps := newTestOrchestrator(store, fetcher)
	results, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, storage.SyncStatusSuccess, results[0].Status)
	assert.Equal(t, 2, results[0].Records)

	attempt := store.singleAttempt(t)
	assert.Equal(t, storage.SyncStatusSuccess, attempt.Status)
	assert.Equal(t, 2, attempt.RecordsSynced)
	assert.Nil(t, attempt.ErrorMessage)
	assert.Equal(t, 1, store.finalizeCalls[attempt.ID])

	// One backoff wait before each retry, none before the first attempt.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *sleeps)

	state := store.states["id-DEV-1"]
	assert.True(t, state.online)
	assert.NotNil(t, state.lastSync)
}

func TestRetryBudgetExhausted(t *testing.T) {
	store := newFakeStore(pullDevice("DEV-1"))
	fetcher := newScriptedFetcher()
	fetcher.script["DEV-1"] = []fetchOutcome{
		{err: errors.New("device returned 500")},
		{err: errors.New("device returned 502")},
		{err: errors.New("device unreachable: timeout")},
	}

	o, _ := newTestOrchestrator(store, fetcher)
	results, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, storage.SyncStatusFailed, results[0].Status)
	assert.Equal(t, 3, fetcher.calls["DEV-1"])

	attempt := store.singleAttempt(t)
	assert.Equal(t, storage.SyncStatusFailed, attempt.Status)
	require.NotNil(t, attempt.ErrorMessage)
	assert.Contains(t, *attempt.ErrorMessage, "unreachable")
	assert.Equal(t, 1, store.finalizeCalls[attempt.ID])

	// Device goes offline; last-sync is left untouched.
	state := store.states["id-DEV-1"]
	assert.False(t, state.online)
	assert.Nil(t, state.lastSync)
}

func TestDeviceFailureDoesNotBlockOthers(t *testing.T) {
	store := newFakeStore(pullDevice("DEV-1"), pullDevice("DEV-2"))
	fetcher := newScriptedFetcher()
	fetcher.script["DEV-1"] = []fetchOutcome{
		{err: errors.New("down")}, {err: errors.New("down")}, {err: errors.New("down")},
	}
	fetcher.script["DEV-2"] = []fetchOutcome{
		{records: goodRecords()},
	}

	o, _ := newTestOrchestrator(store, fetcher)
	results, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, storage.SyncStatusFailed, results[0].Status)
	assert.Equal(t, storage.SyncStatusSuccess, results[1].Status)
	assert.Equal(t, 2, results[1].Records)
}

func TestPerEventErrorsKeptOnSuccessfulPull(t *testing.T) {
	store := newFakeStore(pullDevice("DEV-1"))
	fetcher := newScriptedFetcher()
	fetcher.script["DEV-1"] = []fetchOutcome{
		{records: []map[string]any{
			{"user_id": "1001", "timestamp": "2026-02-12T08:30:00Z", "type": "check-in"},
			{"user_id": "9999", "timestamp": "2026-02-12T08:31:00Z", "type": "check-in"},
		}},
	}

	o, _ := newTestOrchestrator(store, fetcher)
	results, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	// Transport succeeded, so the attempt is a success; the unmatched
	// student is preserved in the ledger's error text.
	assert.Equal(t, storage.SyncStatusSuccess, results[0].Status)
	assert.Equal(t, 1, results[0].Records)

	attempt := store.singleAttempt(t)
	assert.Equal(t, storage.SyncStatusSuccess, attempt.Status)
	assert.Equal(t, 1, attempt.RecordsSynced)
	require.NotNil(t, attempt.ErrorMessage)
	assert.Contains(t, *attempt.ErrorMessage, "9999")
}

func TestNoPullDevices(t *testing.T) {
	store := newFakeStore()
	o, _ := newTestOrchestrator(store, newScriptedFetcher())

	results, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
