package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"attendance-sync/internal/config"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateNonce is returned when a nonce insert hits the
	// (device, nonce) uniqueness constraint. The constraint, not a prior
	// read, is what decides a race between concurrent deliveries.
	ErrDuplicateNonce = errors.New("duplicate nonce")
	// ErrAttemptFinalized is returned when finalizing a sync attempt that
	// already left the pending state.
	ErrAttemptFinalized = errors.New("sync attempt already finalized")
)

type Provider interface {
	Close() error

	// Device methods
	CreateDevice(ctx context.Context, device Device) error
	GetDeviceBySerial(ctx context.Context, serial string) (*Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
	ListPullDevices(ctx context.Context) ([]Device, error)
	SetDeviceEnabled(ctx context.Context, deviceID string, enabled bool) error
	// UpdateDeviceSyncState mutates connectivity state only; lastSync may
	// be nil to leave the timestamp untouched (offline transitions).
	UpdateDeviceSyncState(ctx context.Context, deviceID string, online bool, lastSync *time.Time) error

	// Student methods
	CreateStudent(ctx context.Context, student Student) error
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudentByBiometricID(ctx context.Context, biometricID string) (*Student, error)

	// Attendance: single atomic conditional write keyed on
	// (student_id, attendance_date).
	UpsertAttendance(ctx context.Context, merge AttendanceMerge) error
	GetAttendance(ctx context.Context, studentID, date string) (*AttendanceRecord, error)

	// Sync ledger
	CreateSyncAttempt(ctx context.Context, attempt SyncAttempt) error
	FinalizeSyncAttempt(ctx context.Context, attemptID string, status SyncStatus, recordsSynced int, errMessage *string) error
	ListSyncAttempts(ctx context.Context, limit int) ([]SyncAttempt, error)

	// Replay nonces: write-once, never updated or deleted by the core.
	// Keyed by the device-presented serial.
	CreateNonce(ctx context.Context, deviceSerial, nonce string) error
	ExistsNonce(ctx context.Context, deviceSerial, nonce string) (bool, error)

	// Audit log
	CreateAuditLog(ctx context.Context, entry AuditLog) error
}

func NewProvider(config *config.Storage) Provider {
	switch {
	case config.SQLite != nil:
		provider := NewSQLiteProvider(config)
		if provider == nil {
			return nil
		}
		if err := provider.runMigrations("sqlite3"); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			return nil
		}
		return provider

	default:
		slog.Error("Unsupported storage configuration", "config", config)
	}

	return nil
}
