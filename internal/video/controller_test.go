package video

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/skylink-io/droneview/internal/logring"
)

type scheduledCall struct {
	d         time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

// manualScheduler captures scheduled callbacks so tests fire them
// deterministically, the way the session loop would.
type manualScheduler struct {
	calls []*scheduledCall
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) CancelFunc {
	call := &scheduledCall{d: d, fn: fn}
	s.calls = append(s.calls, call)
	return func() bool {
		if call.fired {
			return false
		}
		call.cancelled = true
		return true
	}
}

// firePending runs every live callback once, in order. Returns how many ran.
func (s *manualScheduler) firePending() int {
	fired := 0
	for _, call := range s.calls {
		if call.cancelled || call.fired {
			continue
		}
		call.fired = true
		call.fn()
		fired++
	}
	return fired
}

type fakeRenderer struct {
	rendered [][]byte
	clears   int
}

func (r *fakeRenderer) Render(frame []byte) { r.rendered = append(r.rendered, frame) }
func (r *fakeRenderer) Clear()              { r.clears++ }

type fakeIntentSender struct {
	starts int
	stops  int
	err    error
}

func (s *fakeIntentSender) StartVideo() error {
	if s.err != nil {
		return s.err
	}
	s.starts++
	return nil
}

func (s *fakeIntentSender) StopVideo() error {
	if s.err != nil {
		return s.err
	}
	s.stops++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T) (*Controller, *fakeRenderer, *fakeIntentSender, *manualScheduler, *logring.Ring) {
	t.Helper()
	renderer := &fakeRenderer{}
	sender := &fakeIntentSender{}
	sched := &manualScheduler{}
	ring := logring.New(100)
	c := NewController(renderer, sender, ring, discardLogger(),
		WithScheduler(sched.schedule),
		WithFrameRate(0),
	)
	return c, renderer, sender, sched, ring
}

func ringContains(ring *logring.Ring, substr string) bool {
	for _, e := range ring.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestToggleOn_StartsStream(t *testing.T) {
	c, renderer, sender, _, ring := newTestController(t)

	c.ToggleOn()
	if c.State() != StateActive {
		t.Fatalf("expected Active, got %s", c.State())
	}
	if sender.starts != 1 {
		t.Fatalf("expected one start intent, got %d", sender.starts)
	}
	if renderer.clears != 1 {
		t.Fatalf("expected prior frame cleared, got %d clears", renderer.clears)
	}
	if !ringContains(ring, "Starting video stream") {
		t.Fatalf("missing start log entry: %+v", ring.Entries())
	}
}

func TestToggleOn_RefusedStaysInactive(t *testing.T) {
	c, _, sender, _, _ := newTestController(t)
	sender.err = errors.New("drone not connected")

	c.ToggleOn()
	if c.State() != StateInactive {
		t.Fatalf("expected Inactive after refused start, got %s", c.State())
	}
}

func TestToggleCycle_OneStartPerEdge(t *testing.T) {
	c, renderer, sender, _, _ := newTestController(t)

	c.ToggleOn()
	c.ToggleOff()
	if c.State() != StateInactive {
		t.Fatalf("expected Inactive, got %s", c.State())
	}
	if sender.stops != 1 {
		t.Fatalf("expected one stop intent, got %d", sender.stops)
	}
	clearsAtOff := renderer.clears
	if clearsAtOff < 2 {
		t.Fatalf("expected frame cleared on toggle off, clears=%d", clearsAtOff)
	}

	c.ToggleOn()
	if sender.starts != 2 {
		t.Fatalf("expected exactly one start per Inactive->Active edge, got %d", sender.starts)
	}
}

func TestHandleHidden_SuspendsExactlyOnce(t *testing.T) {
	c, renderer, sender, _, _ := newTestController(t)

	c.ToggleOn()
	c.HandleHidden()
	c.HandleHidden()

	if c.State() != StateSuspendedVisibility {
		t.Fatalf("expected SuspendedByVisibility, got %s", c.State())
	}
	if sender.stops != 1 {
		t.Fatalf("expected exactly one stop intent, got %d", sender.stops)
	}
	if renderer.clears < 2 {
		t.Fatalf("expected frame cleared on suspend, clears=%d", renderer.clears)
	}
}

func TestHandleVisible_NoAutoResume(t *testing.T) {
	c, _, sender, _, _ := newTestController(t)

	c.ToggleOn()
	c.HandleHidden()
	c.HandleVisible()

	if c.State() != StateInactive {
		t.Fatalf("expected Inactive after visible, got %s", c.State())
	}
	if sender.starts != 1 {
		t.Fatalf("stream auto-resumed: %d starts", sender.starts)
	}

	// Explicit toggle resumes.
	c.ToggleOn()
	if c.State() != StateActive || sender.starts != 2 {
		t.Fatalf("explicit resume failed: state=%s starts=%d", c.State(), sender.starts)
	}
}

func TestResizeBurst_OneRestartCycle(t *testing.T) {
	c, renderer, sender, sched, _ := newTestController(t)

	c.ToggleOn()
	clearsBefore := renderer.clears

	for i := 0; i < 10; i++ {
		c.HandleResize()
	}

	// Only the last debounce is live; firing it clears the frame once and
	// schedules one restart.
	if fired := sched.firePending(); fired != 1 {
		t.Fatalf("expected one live debounce callback, fired %d", fired)
	}
	if c.State() != StateSuspendedResize {
		t.Fatalf("expected SuspendedByResize, got %s", c.State())
	}
	if renderer.clears != clearsBefore+1 {
		t.Fatalf("expected one clear for the burst, got %d", renderer.clears-clearsBefore)
	}

	if fired := sched.firePending(); fired != 1 {
		t.Fatalf("expected one restart callback, fired %d", fired)
	}
	if c.State() != StateActive {
		t.Fatalf("expected Active after restart, got %s", c.State())
	}
	if sender.starts != 2 {
		t.Fatalf("expected one restart intent, got %d starts", sender.starts)
	}
}

func TestToggleOff_CancelsPendingResizeRestart(t *testing.T) {
	c, _, sender, sched, _ := newTestController(t)

	c.ToggleOn()
	c.HandleResize()
	sched.firePending() // debounce settles, restart pending
	c.ToggleOff()

	if fired := sched.firePending(); fired != 0 {
		t.Fatalf("restart survived toggle off, fired %d", fired)
	}
	if c.State() != StateInactive {
		t.Fatalf("expected Inactive, got %s", c.State())
	}
	if sender.starts != 1 {
		t.Fatalf("cancelled restart still sent start: %d", sender.starts)
	}
}

func TestHandleFrame_OnlyWhileActive(t *testing.T) {
	c, renderer, _, _, _ := newTestController(t)
	frame := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	c.HandleFrame(frame)
	if len(renderer.rendered) != 0 {
		t.Fatal("frame rendered while Inactive")
	}

	c.ToggleOn()
	c.HandleFrame(frame)
	if len(renderer.rendered) != 1 || string(renderer.rendered[0]) != "jpeg-bytes" {
		t.Fatalf("expected one decoded frame, got %+v", renderer.rendered)
	}

	c.HandleHidden()
	c.HandleFrame(frame)
	if len(renderer.rendered) != 1 {
		t.Fatal("frame rendered while suspended")
	}
}

func TestHandleFrame_LastReceivedWins(t *testing.T) {
	c, renderer, _, _, _ := newTestController(t)
	c.ToggleOn()

	c.HandleFrame(base64.StdEncoding.EncodeToString([]byte("first")))
	c.HandleFrame(base64.StdEncoding.EncodeToString([]byte("second")))

	if len(renderer.rendered) != 2 || string(renderer.rendered[1]) != "second" {
		t.Fatalf("expected second frame to overwrite, got %+v", renderer.rendered)
	}
}

func TestHandleFrame_SkipsUndecodableFrame(t *testing.T) {
	c, renderer, _, _, ring := newTestController(t)
	c.ToggleOn()
	entriesBefore := ring.Len()

	c.HandleFrame("not-base64!!!")

	if len(renderer.rendered) != 0 {
		t.Fatal("undecodable frame rendered")
	}
	if c.State() != StateActive {
		t.Fatalf("decode failure changed state to %s", c.State())
	}
	if ring.Len() != entriesBefore {
		t.Fatal("decode failure produced log noise")
	}
}

func TestHandleFrame_RateCapDropsExcess(t *testing.T) {
	renderer := &fakeRenderer{}
	sender := &fakeIntentSender{}
	sched := &manualScheduler{}
	c := NewController(renderer, sender, logring.New(100), discardLogger(),
		WithScheduler(sched.schedule),
		WithFrameRate(20),
	)

	c.ToggleOn()
	frame := base64.StdEncoding.EncodeToString([]byte("x"))
	c.HandleFrame(frame)
	c.HandleFrame(frame)

	if len(renderer.rendered) != 1 {
		t.Fatalf("expected burst above cap dropped, rendered %d", len(renderer.rendered))
	}
}

func TestConnectionLost_ForcesInactiveWithoutSending(t *testing.T) {
	c, renderer, sender, sched, ring := newTestController(t)

	c.ToggleOn()
	c.HandleResize()
	c.ConnectionLost()

	if c.State() != StateInactive {
		t.Fatalf("expected Inactive, got %s", c.State())
	}
	if sender.stops != 0 {
		t.Fatalf("stop sent into a dead channel: %d", sender.stops)
	}
	if !ringContains(ring, "stop intent not sent") {
		t.Fatalf("missing recorded stop intent: %+v", ring.Entries())
	}
	if renderer.clears < 2 {
		t.Fatalf("frame not cleared on forced stop, clears=%d", renderer.clears)
	}
	if fired := sched.firePending(); fired != 0 {
		t.Fatalf("resize timers survived connection loss, fired %d", fired)
	}
}

func TestShutdown_StopsActiveStream(t *testing.T) {
	c, _, sender, _, _ := newTestController(t)

	c.ToggleOn()
	c.Shutdown()

	if sender.stops != 1 {
		t.Fatalf("expected stop before teardown, got %d", sender.stops)
	}
	if c.State() != StateInactive {
		t.Fatalf("expected Inactive after shutdown, got %s", c.State())
	}

	// Idle shutdown sends nothing.
	c.Shutdown()
	if sender.stops != 1 {
		t.Fatalf("idle shutdown sent stop: %d", sender.stops)
	}
}
