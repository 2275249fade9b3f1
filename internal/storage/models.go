package storage

import "time"

type IntegrationType string

const (
	IntegrationWebhook       IntegrationType = "webhook"
	IntegrationAPIPull       IntegrationType = "api_pull"
	IntegrationSDKMiddleware IntegrationType = "sdk_middleware"
	IntegrationCSVUpload     IntegrationType = "csv_upload"
)

type Device struct {
	ID          string          `db:"id"`
	Serial      string          `db:"device_serial"`
	Name        string          `db:"device_name"`
	Company     string          `db:"company"`
	Integration IntegrationType `db:"integration"`
	IPAddress   *string         `db:"ip_address"`
	Port        *int            `db:"port"`
	SecretKey   *string         `db:"secret_key"`
	IsEnabled   bool            `db:"is_enabled"`
	IsOnline    bool            `db:"is_online"`
	LastSyncAt  *time.Time      `db:"last_sync_at"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type Student struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	FullName    string    `db:"full_name"`
	BiometricID *string   `db:"biometric_id"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// AttendanceRecord is the daily attendance row, unique per (student, date).
type AttendanceRecord struct {
	ID        string     `db:"id"`
	StudentID string     `db:"student_id"`
	Date      string     `db:"attendance_date"` // YYYY-MM-DD, UTC
	CheckIn   *time.Time `db:"check_in"`
	CheckOut  *time.Time `db:"check_out"`
	Status    string     `db:"status"`
	DeviceID  *string    `db:"device_id"` // nil for manual entries
	IsManual  bool       `db:"is_manual"`
	IsDeleted bool       `db:"is_deleted"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// AttendanceMerge describes a single-field merge into the daily record.
// Exactly one of CheckIn/CheckOut is set.
type AttendanceMerge struct {
	StudentID string
	DeviceID  string
	Date      string
	CheckIn   *time.Time
	CheckOut  *time.Time
}

type SyncKind string

const (
	SyncKindWebhook   SyncKind = "webhook"
	SyncKindScheduled SyncKind = "scheduled_pull"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncAttempt is one row of the sync ledger. Finalized exactly once.
type SyncAttempt struct {
	ID            string     `db:"id"`
	DeviceID      string     `db:"device_id"`
	Kind          SyncKind   `db:"sync_type"`
	Status        SyncStatus `db:"status"`
	RecordsSynced int        `db:"records_synced"`
	ErrorMessage  *string    `db:"error_message"`
	StartedAt     time.Time  `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
}

type AuditLog struct {
	ID          string    `db:"id"`
	Action      string    `db:"action"`
	TargetTable string    `db:"target_table"`
	TargetID    *string   `db:"target_id"`
	Detail      *string   `db:"detail"`
	CreatedAt   time.Time `db:"created_at"`
}
