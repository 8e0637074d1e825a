package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skylink-io/droneview/internal/logring"
)

// DefaultPeriod is the telemetry poll cadence.
const DefaultPeriod = time.Second

type pollerCmd int

const (
	cmdPause pollerCmd = iota
	cmdResume
)

// Poller requests a snapshot on a fixed period while resumed. It starts
// paused; Resume fires one immediate poll and arms a fresh interval. Pause
// cancels the pending tick without tearing the schedule down. A failed poll
// is reported through onError and retried by the next scheduled tick, never
// by the poller itself.
type Poller struct {
	client     Client
	period     time.Duration
	log        *logring.Ring
	logger     *slog.Logger
	onSnapshot func(Snapshot)
	onError    func(error)

	cmds chan pollerCmd
	done chan struct{}
}

func NewPoller(client Client, period time.Duration, log *logring.Ring, logger *slog.Logger, onSnapshot func(Snapshot), onError func(error)) *Poller {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Poller{
		client:     client,
		period:     period,
		log:        log,
		logger:     logger,
		onSnapshot: onSnapshot,
		onError:    onError,
		cmds:       make(chan pollerCmd),
		done:       make(chan struct{}),
	}
}

// Pause cancels the pending tick. The schedule is kept, not destroyed.
func (p *Poller) Pause() {
	select {
	case p.cmds <- cmdPause:
	case <-p.done:
	}
}

// Resume fires one immediate poll and restarts the periodic schedule from
// a fresh interval.
func (p *Poller) Resume() {
	select {
	case p.cmds <- cmdResume:
	case <-p.done:
	}
}

// Run drives the schedule until ctx is cancelled. It must be called exactly
// once per poller.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	stop := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	arm := func() {
		stop()
		timer = time.NewTimer(p.period)
		timerC = timer.C
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.cmds:
			switch cmd {
			case cmdPause:
				stop()
			case cmdResume:
				p.poll(ctx)
				arm()
			}
		case <-timerC:
			p.poll(ctx)
			arm()
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.period)
	defer cancel()

	snap, err := p.client.Fetch(pollCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Append(fmt.Sprintf("telemetry poll failed: %v", err), logring.SeverityError)
		p.logger.Warn("telemetry poll failed", "err", err)
		if p.onError != nil {
			p.onError(err)
		}
		return
	}

	p.log.Append(fmt.Sprintf("telemetry updated: battery %d%%, height %.0fcm", snap.Battery, snap.Height), logring.SeverityInfo)
	if p.onSnapshot != nil {
		p.onSnapshot(snap)
	}
}
