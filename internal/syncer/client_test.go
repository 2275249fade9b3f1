package syncer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-sync/internal/storage"
)

// deviceFor points a pull device at the test server's host and port.
func deviceFor(t *testing.T, server *httptest.Server) storage.Device {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	host := u.Hostname()
	secret := "device-secret"
	return storage.Device{
		ID:          "dev-1",
		Serial:      "DEV-1",
		Name:        "Main Gate",
		Company:     "zkteco",
		Integration: storage.IntegrationAPIPull,
		IPAddress:   &host,
		Port:        &port,
		SecretKey:   &secret,
		IsEnabled:   true,
	}
}

func TestFetchLogsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/attendance/logs", r.URL.Path)
		assert.Equal(t, "device-secret", r.Header.Get("X-Device-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"logs": [{"pin": "1001", "timestamp": "2026-02-12T08:30:00Z"}]}`))
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	device := deviceFor(t, server)

	records, err := client.FetchLogs(context.Background(), &device)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1001", records[0]["pin"])
}

func TestFetchLogsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"pin": "1001"}, {"pin": "1002"}]`))
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	device := deviceFor(t, server)

	records, err := client.FetchLogs(context.Background(), &device)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFetchLogsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	device := deviceFor(t, server)

	_, err := client.FetchLogs(context.Background(), &device)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFetchLogsBadShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"not a log payload"`))
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	device := deviceFor(t, server)

	_, err := client.FetchLogs(context.Background(), &device)
	require.Error(t, err)
}

func TestFetchLogsNoAddress(t *testing.T) {
	client := NewClient(2 * time.Second)
	device := storage.Device{Serial: "DEV-1", Integration: storage.IntegrationAPIPull}

	_, err := client.FetchLogs(context.Background(), &device)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no network address")
}
