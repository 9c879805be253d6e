package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/grovesy/watchpost/pkg/analyze"
	"github.com/grovesy/watchpost/pkg/camera"
	"github.com/grovesy/watchpost/pkg/detection"
	"github.com/grovesy/watchpost/pkg/overlay"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RenderInterval = 5 * time.Millisecond
	cfg.InferenceInterval = time.Millisecond // fresh inference every tick
	cfg.SuccessStatusDelay = 10 * time.Millisecond
	cfg.FailureStatusDelay = 10 * time.Millisecond
	return cfg
}

func personAt(x float64) []detection.Detection {
	return []detection.Detection{
		{ClassName: "person", Confidence: 0.9, Box: detection.Box{X: x, Y: 100, W: 200, H: 300}},
	}
}

type recordSink struct {
	mu      sync.Mutex
	frames  [][]overlay.Record
	present []bool
}

func (r *recordSink) add(records []overlay.Record, present bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, records)
	r.present = append(r.present, present)
}

func (r *recordSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recordSink) last() ([]overlay.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil, false
	}
	return r.frames[len(r.frames)-1], r.present[len(r.present)-1]
}

func newTestSession(cfg Config, det detection.Detector) (*Session, *analyze.MockProvider) {
	provider := analyze.NewMockProvider()
	pipeline := analyze.NewPipeline(provider, analyze.Options{}) // no annotation, no persist
	src := camera.NewMock(1280, 720)
	return New(cfg, src, det, pipeline), provider
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestSession_RendersDetections(t *testing.T) {
	det := detection.NewMock()
	det.DetectFunc = func([]byte) ([]detection.Detection, error) {
		return personAt(100), nil
	}

	s, _ := newTestSession(fastConfig(), det)
	sink := &recordSink{}
	s.OnRecords = sink.add
	s.SetDisplaySize(640, 360)

	s.Start()
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return sink.count() >= 3 })

	records, present := sink.last()
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if records[0].Category != "person" {
		t.Errorf("category: got %q", records[0].Category)
	}
	if !present {
		t.Error("watched class should be reported present")
	}
	// 1280x720 source into 640x360: clean halving
	if records[0].X != 50 || records[0].Width != 100 {
		t.Errorf("geometry: got x=%d w=%d, want x=50 w=100", records[0].X, records[0].Width)
	}
}

func TestSession_ReportsAbsence(t *testing.T) {
	det := detection.NewMock() // no detections ever

	s, _ := newTestSession(fastConfig(), det)
	sink := &recordSink{}
	s.OnRecords = sink.add
	s.SetDisplaySize(640, 360)

	s.Start()
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return sink.count() >= 3 })

	_, present := sink.last()
	if present {
		t.Error("watched class should be reported absent")
	}
}

func TestSession_ManualCapture(t *testing.T) {
	det := detection.NewMock()
	det.DetectFunc = func([]byte) ([]detection.Detection, error) {
		return personAt(100), nil
	}

	s, provider := newTestSession(fastConfig(), det)
	provider.Analysis = "someone is standing there"
	s.SetDisplaySize(640, 360)

	s.Start()
	defer s.Stop()

	sink := &recordSink{}
	s.OnRecords = sink.add
	waitFor(t, time.Second, func() bool { return sink.count() >= 1 })

	result, err := s.CaptureNow(context.Background())
	if err != nil {
		t.Fatalf("CaptureNow: %v", err)
	}
	if result.Analysis != "someone is standing there" {
		t.Errorf("analysis: got %q", result.Analysis)
	}
	if result.Trigger != "manual" {
		t.Errorf("trigger: got %q", result.Trigger)
	}

	reqs := provider.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider requests: got %d, want 1", len(reqs))
	}
	if len(reqs[0].Payload.Detections) != 1 {
		t.Errorf("capture payload: got %d detections, want 1", len(reqs[0].Payload.Detections))
	}
}

func TestSession_AutoCaptureOnSustainedPresence(t *testing.T) {
	det := detection.NewMock()
	det.DetectFunc = func([]byte) ([]detection.Detection, error) {
		return personAt(100), nil
	}

	cfg := fastConfig()
	cfg.Window = 200 * time.Millisecond
	s, _ := newTestSession(cfg, det)
	s.SetDisplaySize(640, 360)

	var mu sync.Mutex
	var results []*analyze.Result
	s.OnAnalysis = func(r *analyze.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	s.Start()
	defer s.Stop()

	// Presence accumulates from the first tick; the 80% threshold of the
	// 200ms window is crossed after ~160ms of sustained presence.
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 1
	})

	mu.Lock()
	defer mu.Unlock()
	if results[0].Trigger != "auto" {
		t.Errorf("trigger: got %q, want auto", results[0].Trigger)
	}
}

func TestSession_StopClearsState(t *testing.T) {
	det := detection.NewMock()
	det.DetectFunc = func([]byte) ([]detection.Detection, error) {
		return personAt(100), nil
	}

	cfg := fastConfig()
	cfg.Window = time.Minute
	s, _ := newTestSession(cfg, det)
	s.SetDisplaySize(640, 360)

	sink := &recordSink{}
	s.OnRecords = sink.add

	s.Start()
	waitFor(t, time.Second, func() bool { return sink.count() >= 3 })
	s.Stop()

	status := s.Status()
	if status.State != StateIdle {
		t.Errorf("state after stop: got %q, want idle", status.State)
	}
	if status.Present != 0 {
		t.Errorf("presence after stop: got %v, want 0", status.Present)
	}
	if s.Running() {
		t.Error("session should not be running after Stop")
	}
}

func TestSession_LateResultAfterStopIsDiscarded(t *testing.T) {
	det := detection.NewMock()

	s, provider := newTestSession(fastConfig(), det)
	release := make(chan struct{})
	provider.AnalyzeFunc = func(ctx context.Context, req *analyze.Request) (string, error) {
		<-release
		return "late", nil
	}

	var mu sync.Mutex
	delivered := 0
	s.OnAnalysis = func(*analyze.Result) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}

	s.Start()

	captureDone := make(chan struct{})
	go func() {
		s.CaptureNow(context.Background())
		close(captureDone)
	}()

	// Stop while the network call is pending, then let it complete.
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	close(release)
	<-captureDone

	mu.Lock()
	defer mu.Unlock()
	if delivered != 0 {
		t.Errorf("late analysis was delivered %d times, want 0", delivered)
	}
}

func TestSession_DetectorErrorKeepsLoopAlive(t *testing.T) {
	det := detection.NewMock()
	var mu sync.Mutex
	calls := 0
	det.DetectFunc = func([]byte) ([]detection.Detection, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls%2 == 1 {
			return nil, context.DeadlineExceeded
		}
		return personAt(100), nil
	}

	s, _ := newTestSession(fastConfig(), det)
	s.SetDisplaySize(640, 360)
	sink := &recordSink{}
	s.OnRecords = sink.add

	s.Start()
	defer s.Stop()

	// Failing inferences are skipped; successful ones still render.
	waitFor(t, time.Second, func() bool { return sink.count() >= 2 })
}

func TestSession_ImmediateStopAfterStart(t *testing.T) {
	sess, _ := newTestSession(fastConfig(), detection.NewMock())

	// Stop races the loop goroutine's first statement; the loop must close
	// the channel it was handed at spawn, not re-read the struct field
	// Stop has already cleared. A hang or close(nil) panic here is the bug.
	for i := 0; i < 100; i++ {
		sess.Start()
		sess.Stop()
	}

	if sess.Running() {
		t.Error("session should be stopped")
	}
	if sess.Status().State != StateIdle {
		t.Errorf("state = %s, want idle", sess.Status().State)
	}
}

func TestSession_StateChangesDeliveredInOrder(t *testing.T) {
	sess, _ := newTestSession(fastConfig(), detection.NewMock())

	var mu sync.Mutex
	var states []State
	sess.OnStateChange = func(state State) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	}

	for i := 0; i < 10; i++ {
		sess.Start()
		sess.Stop()
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 20
	})

	mu.Lock()
	defer mu.Unlock()
	for i, state := range states {
		want := StateDetecting
		if i%2 == 1 {
			want = StateIdle
		}
		if state != want {
			t.Fatalf("event %d = %s, want %s (sequence %v)", i, state, want, states)
		}
	}
}
