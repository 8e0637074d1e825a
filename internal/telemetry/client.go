package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient pulls snapshots from the drone service status endpoint.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type statusResponse struct {
	Battery      int     `json:"battery"`
	Height       float64 `json:"height"`
	FlightTime   float64 `json:"flight_time"`
	Temperature  float64 `json:"temperature"`
	WifiStrength int     `json:"wifi_strength"`
	IsFlying     bool    `json:"is_flying"`
}

// Fetch issues one status request. Any non-success status or malformed body
// is a poll failure; the caller decides what to do with it.
func (c *HTTPClient) Fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return Snapshot{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Snapshot{}, fmt.Errorf("status request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Snapshot{}, fmt.Errorf("decode status response: %w", err)
	}

	snap := Snapshot{
		Battery:      payload.Battery,
		Height:       payload.Height,
		FlightTime:   payload.FlightTime,
		Temperature:  payload.Temperature,
		WifiStrength: payload.WifiStrength,
		IsFlying:     payload.IsFlying,
		CapturedAt:   c.now(),
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("malformed status response: %w", err)
	}
	return snap, nil
}
