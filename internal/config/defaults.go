package config

var defaults = map[string]any{
	"log_level": "info",

	"listen_addr": ":8080",

	// Security gate: accepted clock skew for the X-Timestamp header.
	"freshness_window_minutes": 5,

	// Pull orchestrator budget per device per cycle.
	"sync.retries":         3,
	"sync.backoff_seconds": 2,
	"sync.timeout_seconds": 10,

	"storage.sqlite.path": "./data/attendance.db",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
