package adapter

// Built-in vendor adapters. Alias lists are ordered by priority: the
// first present field wins, so newer firmware field names go first.

func zktecoAdapter() *Adapter {
	return &Adapter{
		name:          "zkteco",
		userAliases:   []string{"pin", "user_id", "PIN"},
		deviceAliases: []string{"sn", "serial_number", "SN"},
		timeAliases:   []string{"timestamp", "time", "Timestamp"},
		direction: func(record map[string]any) (Direction, bool) {
			// Numeric status code: 0 is check-in, anything else check-out.
			// A missing status counts as 0, matching device defaults.
			status := 0.0
			for _, alias := range []string{"status", "Status"} {
				if value, ok := record[alias]; ok && value != nil {
					if n, ok := coerceNumber(value); ok {
						status = n
					}
					break
				}
			}
			if status == 0 {
				return CheckIn, false
			}
			return CheckOut, false
		},
	}
}

func hikvisionAdapter() *Adapter {
	return &Adapter{
		name:          "hikvision",
		userAliases:   []string{"employeeNoString", "employeeNo"},
		deviceAliases: []string{"deviceName", "ipAddress"},
		timeAliases:   []string{"dateTime", "time"},
		direction: func(record map[string]any) (Direction, bool) {
			// String enum: "entry" is check-in, every other event type
			// (exit, tailgating, ...) is treated as check-out.
			eventType, _ := firstString(record, []string{"eventType"})
			if eventType == "entry" {
				return CheckIn, false
			}
			return CheckOut, false
		},
	}
}

func supremaAdapter() *Adapter {
	return &Adapter{
		name:          "suprema",
		userAliases:   []string{"user_id"},
		deviceAliases: []string{"device_id"},
		timeAliases:   []string{"datetime"},
		direction: func(record map[string]any) (Direction, bool) {
			// Event-type threshold: codes at or below 20 are entry events.
			if value, ok := record["event_type"]; ok && value != nil {
				if n, ok := coerceNumber(value); ok && n <= 20 {
					return CheckIn, false
				}
			}
			return CheckOut, false
		},
	}
}

func genericAdapter() *Adapter {
	return &Adapter{
		name:          "generic",
		userAliases:   []string{"userId", "user_id", "biometric_id"},
		deviceAliases: []string{"deviceId", "device_id"},
		timeAliases:   []string{"timestamp", "time", "datetime"},
		direction: func(record map[string]any) (Direction, bool) {
			kind, ok := firstString(record, []string{"type", "event_type"})
			if !ok {
				// No direction signal at all. Check-in is assumed and the
				// event is flagged so downstream can tell it was a guess.
				return CheckIn, true
			}
			if kind == string(CheckOut) {
				return CheckOut, false
			}
			return CheckIn, false
		},
	}
}

// Registry maps a device vendor tag to its adapter. It is constructed
// once and passed into handlers explicitly so tests can substitute
// adapters; there is no process-wide mutable registry.
type Registry struct {
	adapters map[string]*Adapter
	fallback *Adapter
}

// NewRegistry returns a registry with all built-in vendor adapters.
// Vendors without a dedicated payload shape share the generic adapter.
func NewRegistry() *Registry {
	generic := genericAdapter()
	return &Registry{
		adapters: map[string]*Adapter{
			"zkteco":    zktecoAdapter(),
			"hikvision": hikvisionAdapter(),
			"suprema":   supremaAdapter(),
			"anviz":     generic,
			"essl":      generic,
			"generic":   generic,
		},
		fallback: generic,
	}
}

// Register adds or replaces the adapter for a vendor tag.
func (r *Registry) Register(vendor string, a *Adapter) {
	r.adapters[vendor] = a
}

// Get resolves a vendor tag, falling back to the generic adapter for
// unknown vendors.
func (r *Registry) Get(vendor string) *Adapter {
	if a, ok := r.adapters[vendor]; ok {
		return a
	}
	return r.fallback
}

// Normalize resolves the adapter for vendor and runs it over the records.
func (r *Registry) Normalize(vendor string, records []map[string]any) ([]Event, []error) {
	return r.Get(vendor).Normalize(records)
}
