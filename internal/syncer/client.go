package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"attendance-sync/internal/storage"
)

const defaultDevicePort = 80

// Client pulls raw attendance logs from a device's local HTTP API.
// It performs a single bounded request per call; the orchestrator owns
// the retry loop.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(timeout time.Duration) *Client {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   client,
		logger: slog.With("component", "pull-client"),
	}
}

// FetchLogs requests the device's attendance log endpoint and returns the
// raw records for the device's adapter to interpret. Accepts both the
// enveloped `{"logs": [...]}` shape and a bare array.
func (c *Client) FetchLogs(ctx context.Context, device *storage.Device) ([]map[string]any, error) {
	if device.IPAddress == nil || *device.IPAddress == "" {
		return nil, fmt.Errorf("device %s has no network address", device.Serial)
	}
	port := defaultDevicePort
	if device.Port != nil {
		port = *device.Port
	}
	url := fmt.Sprintf("http://%s:%d/api/attendance/logs", *device.IPAddress, port)

	secret := ""
	if device.SecretKey != nil {
		secret = *device.SecretKey
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Device-Key", secret).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("device unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("device returned %d", resp.StatusCode())
	}

	records, err := decodeLogs(resp.Body())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched device logs",
		"device_serial", device.Serial, "records", len(records))
	return records, nil
}

func decodeLogs(body []byte) ([]map[string]any, error) {
	var envelope struct {
		Logs []map[string]any `json:"logs"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Logs != nil {
		return envelope.Logs, nil
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	return nil, fmt.Errorf("unrecognized device response shape")
}
