package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"attendance-sync/internal/config"
)

type SQLProvider struct {
	db *sqlx.DB

	config *config.Storage

	// isUniqueViolation reports whether err is a uniqueness-constraint
	// violation in the underlying driver's terms.
	isUniqueViolation func(err error) bool

	logger *slog.Logger
}

func NewSQLProvider(config *config.Storage, driverName string, dataSource string) *SQLProvider {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		slog.Error("Failed to open database", "driver", driverName, "error", err)
		return nil
	}

	logger := slog.With("component", "storage")

	return &SQLProvider{
		db:                db,
		config:            config,
		isUniqueViolation: func(error) bool { return false },
		logger:            logger,
	}
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Devices
// ---------------------------------------------------------------------------

func (p *SQLProvider) CreateDevice(ctx context.Context, device Device) error {
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO devices (id, device_serial, device_name, company, integration,
			ip_address, port, secret_key, is_enabled, is_online, last_sync_at,
			created_at, updated_at)
		VALUES (:id, :device_serial, :device_name, :company, :integration,
			:ip_address, :port, :secret_key, :is_enabled, :is_online, :last_sync_at,
			:created_at, :updated_at)`, device)
	return err
}

func (p *SQLProvider) GetDeviceBySerial(ctx context.Context, serial string) (*Device, error) {
	var device Device
	err := p.db.GetContext(ctx, &device,
		`SELECT * FROM devices WHERE device_serial = ?`, serial)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &device, nil
}

func (p *SQLProvider) ListDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	err := p.db.SelectContext(ctx, &devices,
		`SELECT * FROM devices ORDER BY device_name`)
	return devices, err
}

func (p *SQLProvider) ListPullDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	err := p.db.SelectContext(ctx, &devices,
		`SELECT * FROM devices WHERE integration = ? AND is_enabled = 1 ORDER BY device_name`,
		IntegrationAPIPull)
	return devices, err
}

func (p *SQLProvider) SetDeviceEnabled(ctx context.Context, deviceID string, enabled bool) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE devices SET is_enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), deviceID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (p *SQLProvider) UpdateDeviceSyncState(ctx context.Context, deviceID string, online bool, lastSync *time.Time) error {
	var res sql.Result
	var err error
	if lastSync != nil {
		res, err = p.db.ExecContext(ctx,
			`UPDATE devices SET is_online = ?, last_sync_at = ?, updated_at = ? WHERE id = ?`,
			online, lastSync.UTC(), time.Now().UTC(), deviceID)
	} else {
		res, err = p.db.ExecContext(ctx,
			`UPDATE devices SET is_online = ?, updated_at = ? WHERE id = ?`,
			online, time.Now().UTC(), deviceID)
	}
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// ---------------------------------------------------------------------------
// Students
// ---------------------------------------------------------------------------

func (p *SQLProvider) CreateStudent(ctx context.Context, student Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO students (id, student_id, full_name, biometric_id, is_active,
			created_at, updated_at)
		VALUES (:id, :student_id, :full_name, :biometric_id, :is_active,
			:created_at, :updated_at)`, student)
	return err
}

func (p *SQLProvider) ListStudents(ctx context.Context) ([]Student, error) {
	var students []Student
	err := p.db.SelectContext(ctx, &students,
		`SELECT * FROM students ORDER BY full_name`)
	return students, err
}

func (p *SQLProvider) GetStudentByBiometricID(ctx context.Context, biometricID string) (*Student, error) {
	var student Student
	err := p.db.GetContext(ctx, &student,
		`SELECT * FROM students WHERE biometric_id = ? AND is_active = 1`, biometricID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &student, nil
}

// ---------------------------------------------------------------------------
// Attendance
// ---------------------------------------------------------------------------

// UpsertAttendance merges one event field into the daily attendance row.
// The ON CONFLICT clause on the (student_id, attendance_date) uniqueness
// constraint makes the merge a single atomic conditional write, so
// concurrent deliveries for the same key converge to one row.
func (p *SQLProvider) UpsertAttendance(ctx context.Context, merge AttendanceMerge) error {
	now := time.Now().UTC()

	var err error
	switch {
	case merge.CheckIn != nil:
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO attendance (id, student_id, attendance_date, check_in,
				status, device_id, is_manual, is_deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'present', ?, 0, 0, ?, ?)
			ON CONFLICT (student_id, attendance_date) DO UPDATE SET
				check_in = excluded.check_in,
				status = 'present',
				device_id = excluded.device_id,
				updated_at = excluded.updated_at`,
			uuid.NewString(), merge.StudentID, merge.Date, merge.CheckIn.UTC(),
			merge.DeviceID, now, now)
	case merge.CheckOut != nil:
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO attendance (id, student_id, attendance_date, check_out,
				status, device_id, is_manual, is_deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'present', ?, 0, 0, ?, ?)
			ON CONFLICT (student_id, attendance_date) DO UPDATE SET
				check_out = excluded.check_out,
				status = 'present',
				device_id = excluded.device_id,
				updated_at = excluded.updated_at`,
			uuid.NewString(), merge.StudentID, merge.Date, merge.CheckOut.UTC(),
			merge.DeviceID, now, now)
	default:
		err = errors.New("attendance merge has neither check-in nor check-out")
	}
	return err
}

func (p *SQLProvider) GetAttendance(ctx context.Context, studentID, date string) (*AttendanceRecord, error) {
	var record AttendanceRecord
	err := p.db.GetContext(ctx, &record,
		`SELECT * FROM attendance WHERE student_id = ? AND attendance_date = ?`,
		studentID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &record, nil
}

// ---------------------------------------------------------------------------
// Sync ledger
// ---------------------------------------------------------------------------

func (p *SQLProvider) CreateSyncAttempt(ctx context.Context, attempt SyncAttempt) error {
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO sync_attempts (id, device_id, sync_type, status,
			records_synced, error_message, started_at, completed_at)
		VALUES (:id, :device_id, :sync_type, :status,
			:records_synced, :error_message, :started_at, :completed_at)`, attempt)
	return err
}

// FinalizeSyncAttempt moves an attempt out of the pending state. The
// WHERE-status guard makes the terminal transition happen exactly once.
func (p *SQLProvider) FinalizeSyncAttempt(ctx context.Context, attemptID string, status SyncStatus, recordsSynced int, errMessage *string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sync_attempts
		SET status = ?, records_synced = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		status, recordsSynced, errMessage, time.Now().UTC(), attemptID, SyncStatusPending)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAttemptFinalized
	}
	return nil
}

func (p *SQLProvider) ListSyncAttempts(ctx context.Context, limit int) ([]SyncAttempt, error) {
	var attempts []SyncAttempt
	err := p.db.SelectContext(ctx, &attempts,
		`SELECT * FROM sync_attempts ORDER BY started_at DESC LIMIT ?`, limit)
	return attempts, err
}

// ---------------------------------------------------------------------------
// Replay nonces
// ---------------------------------------------------------------------------

// Nonces are keyed by the device-presented serial, not the device row id:
// the replay check runs before the device is resolved.

func (p *SQLProvider) CreateNonce(ctx context.Context, deviceSerial, nonce string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_nonces (nonce, device_serial, created_at) VALUES (?, ?, ?)`,
		nonce, deviceSerial, time.Now().UTC())
	if err != nil && p.isUniqueViolation(err) {
		return ErrDuplicateNonce
	}
	return err
}

func (p *SQLProvider) ExistsNonce(ctx context.Context, deviceSerial, nonce string) (bool, error) {
	var count int
	err := p.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM webhook_nonces WHERE device_serial = ? AND nonce = ?`,
		deviceSerial, nonce)
	return count > 0, err
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

func (p *SQLProvider) CreateAuditLog(ctx context.Context, entry AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, action, target_table, target_id, detail, created_at)
		VALUES (:id, :action, :target_table, :target_id, :detail, :created_at)`, entry)
	return err
}

func requireRowAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
