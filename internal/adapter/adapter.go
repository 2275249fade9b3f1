// Package adapter normalizes vendor-specific biometric device payloads
// into canonical attendance events.
//
// Vendors rename payload fields across firmware revisions, so every
// logical attribute is looked up through an ordered alias list; the first
// alias present in a record wins. That priority order is part of each
// adapter's contract.
package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Direction string

const (
	CheckIn  Direction = "check-in"
	CheckOut Direction = "check-out"
)

// Event is the canonical attendance event every adapter produces. It is
// ephemeral: consumed immediately by reconciliation, never persisted.
type Event struct {
	// UserID is the vendor-supplied biometric identifier of the subject.
	UserID string
	// DeviceID is the identifier the device reports for itself. May be
	// empty; the authenticated device record is authoritative.
	DeviceID string
	// Timestamp is the absolute instant of the scan.
	Timestamp time.Time
	Direction Direction
	// DirectionGuessed marks events whose payload carried no direction
	// signal at all and where check-in was assumed.
	DirectionGuessed bool
}

// Adapter transforms raw payload records of one vendor family. Direction
// classification is vendor-specific: a numeric status code, a string enum,
// or an event-type threshold.
type Adapter struct {
	name string

	userAliases   []string
	deviceAliases []string
	timeAliases   []string

	// direction classifies one record. guessed is true when the record
	// carried no direction signal and the result is a default.
	direction func(record map[string]any) (dir Direction, guessed bool)
}

func (a *Adapter) Name() string { return a.name }

// Normalize converts raw records into canonical events. A record that
// cannot be normalized is skipped and reported in the returned error
// list; a malformed record never aborts the rest of the batch.
func (a *Adapter) Normalize(records []map[string]any) ([]Event, []error) {
	events := make([]Event, 0, len(records))
	var errs []error

	for i, record := range records {
		userID, ok := firstString(record, a.userAliases)
		if !ok {
			errs = append(errs, fmt.Errorf("record %d: no user identifier (looked for %s)",
				i, strings.Join(a.userAliases, ", ")))
			continue
		}

		raw, ok := firstString(record, a.timeAliases)
		if !ok {
			errs = append(errs, fmt.Errorf("record %d: no timestamp (looked for %s)",
				i, strings.Join(a.timeAliases, ", ")))
			continue
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}

		// Self-reported device id is informational only.
		deviceID, _ := firstString(record, a.deviceAliases)

		dir, guessed := a.direction(record)

		events = append(events, Event{
			UserID:           userID,
			DeviceID:         deviceID,
			Timestamp:        ts,
			Direction:        dir,
			DirectionGuessed: guessed,
		})
	}

	return events, errs
}

// firstString returns the first alias present in the record, coerced to a
// string. Numeric identifiers arrive as JSON numbers and are rendered
// without an exponent or trailing zeros.
func firstString(record map[string]any, aliases []string) (string, bool) {
	for _, alias := range aliases {
		value, ok := record[alias]
		if !ok || value == nil {
			continue
		}
		s := coerceString(value)
		if s != "" {
			return s, true
		}
	}
	return "", false
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// coerceNumber parses a numeric field that may arrive as a JSON number or
// a numeric string.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}

	// Some firmwares send unix epoch seconds.
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
