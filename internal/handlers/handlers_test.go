package handlers

import (
	"context"
	"sync"
	"time"

	"parcel-tracking/internal/workers"
)

type stubPoller struct {
	mu        sync.Mutex
	snapshot  workers.Snapshot
	refreshed []bool
	remaining time.Duration
	err       error
	paused    bool
}

func (p *stubPoller) Snapshot() workers.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *stubPoller) Refresh(ctx context.Context, force bool) (workers.Snapshot, time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed = append(p.refreshed, force)
	return p.snapshot, p.remaining, p.err
}

func (p *stubPoller) Pause()         { p.paused = true }
func (p *stubPoller) Resume()        { p.paused = false }
func (p *stubPoller) IsPaused() bool { return p.paused }

func testSnapshot() workers.Snapshot {
	return workers.Snapshot{
		RunID: "run-1",
		Records: []workers.TrackingRecord{
			{TrackingNumber: "111111111111", Carrier: "DHL", StatusCode: "in Zustellung", ETA: "17.07.2024", ServiceURL: "https://www.dhl.de/track?id=111111111111"},
			{TrackingNumber: "12345678901234", Carrier: "DPD", StatusCode: "unknown", ETA: "N/A", ServiceURL: "N/A"},
		},
		Total:       2,
		Success:     true,
		LastUpdated: time.Date(2024, time.July, 10, 8, 0, 0, 0, time.UTC),
		LastAttempt: time.Date(2024, time.July, 10, 8, 0, 0, 0, time.UTC),
	}
}
