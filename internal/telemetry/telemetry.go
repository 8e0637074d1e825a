// Package telemetry holds the drone sensor snapshot model and the poll
// scheduler that keeps it fresh while the session is connected and visible.
package telemetry

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is one immutable telemetry reading. A new snapshot supersedes
// the previous one wholesale; fields are never merged.
type Snapshot struct {
	Battery      int       `json:"battery"`
	Height       float64   `json:"height"`
	FlightTime   float64   `json:"flight_time"`
	Temperature  float64   `json:"temperature"`
	WifiStrength int       `json:"wifi_strength"`
	IsFlying     bool      `json:"is_flying"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Validate rejects readings outside the sensor ranges the drone reports.
func (s Snapshot) Validate() error {
	if s.Battery < 0 || s.Battery > 100 {
		return fmt.Errorf("battery %d out of range", s.Battery)
	}
	if s.WifiStrength < 0 || s.WifiStrength > 100 {
		return fmt.Errorf("wifi strength %d out of range", s.WifiStrength)
	}
	if s.Height < 0 {
		return fmt.Errorf("negative height %v", s.Height)
	}
	if s.FlightTime < 0 {
		return fmt.Errorf("negative flight time %v", s.FlightTime)
	}
	return nil
}

// Client fetches one snapshot from the drone service.
type Client interface {
	Fetch(ctx context.Context) (Snapshot, error)
}
