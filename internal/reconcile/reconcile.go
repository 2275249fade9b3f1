// Package reconcile merges canonical attendance events into the single
// daily attendance record per (student, date).
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"attendance-sync/internal/adapter"
	"attendance-sync/internal/storage"
)

type StudentResolver interface {
	GetStudentByBiometricID(ctx context.Context, biometricID string) (*storage.Student, error)
}

type AttendanceWriter interface {
	UpsertAttendance(ctx context.Context, merge storage.AttendanceMerge) error
}

type Engine struct {
	students   StudentResolver
	attendance AttendanceWriter
	logger     *slog.Logger
}

func NewEngine(students StudentResolver, attendance AttendanceWriter) *Engine {
	return &Engine{
		students:   students,
		attendance: attendance,
		logger:     slog.With("component", "reconcile"),
	}
}

// Result accumulates per-event outcomes of one delivery.
type Result struct {
	Synced int
	Errors []string
}

// ErrorText joins the accumulated errors for the sync ledger, nil when
// the delivery was clean.
func (r Result) ErrorText() *string {
	if len(r.Errors) == 0 {
		return nil
	}
	joined := strings.Join(r.Errors, "; ")
	return &joined
}

// Apply merges every event of a delivery. A single failed event never
// aborts the batch; failures are accumulated and the rest proceed.
func (e *Engine) Apply(ctx context.Context, device *storage.Device, events []adapter.Event) Result {
	var result Result

	for _, event := range events {
		if err := e.applyOne(ctx, device, event); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Synced++
	}

	return result
}

func (e *Engine) applyOne(ctx context.Context, device *storage.Device, event adapter.Event) error {
	student, err := e.students.GetStudentByBiometricID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("student not found for biometric ID: %s", event.UserID)
		}
		return fmt.Errorf("student lookup for %s: %v", event.UserID, err)
	}

	if event.DirectionGuessed {
		e.logger.Warn("Event carried no direction signal, assuming check-in",
			"device_id", device.ID, "biometric_id", event.UserID,
			"timestamp", event.Timestamp)
	}

	// Attendance date is the UTC calendar date of the event.
	ts := event.Timestamp.UTC()
	merge := storage.AttendanceMerge{
		StudentID: student.ID,
		DeviceID:  device.ID,
		Date:      ts.Format("2006-01-02"),
	}
	switch event.Direction {
	case adapter.CheckOut:
		merge.CheckOut = &ts
	default:
		merge.CheckIn = &ts
	}

	if err := e.attendance.UpsertAttendance(ctx, merge); err != nil {
		return fmt.Errorf("failed for %s: %v", event.UserID, err)
	}
	return nil
}
