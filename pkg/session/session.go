// Package session owns the per-session detection loop: it drives source →
// detector → overlay renderer every tick, feeds the presence tracker on fresh
// inferences, and dispatches captures to the analysis pipeline.
//
// All mutable detection state (the smoothing map, the presence periods) lives
// inside the session and is touched only from the loop goroutine's
// synchronous per-tick code; its lifecycle is Start/Stop, not process
// lifetime.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/grovesy/watchpost/internal/log"
	"github.com/grovesy/watchpost/pkg/analyze"
	"github.com/grovesy/watchpost/pkg/camera"
	"github.com/grovesy/watchpost/pkg/detection"
	"github.com/grovesy/watchpost/pkg/overlay"
	"github.com/grovesy/watchpost/pkg/presence"
)

// State is the session's coarse lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateDetecting State = "detecting"
	StateCapturing State = "capturing"
	StateAnalyzed  State = "analyzed"
	StateError     State = "error"
)

// ErrNotRunning is returned when an operation needs a running session.
var ErrNotRunning = errors.New("session: not running")

// Status is a snapshot of the session for dashboards.
type Status struct {
	Running    bool          `json:"running"`
	State      State         `json:"state"`
	WatchClass string        `json:"watch_class"`
	Window     time.Duration `json:"window"`
	Present    time.Duration `json:"present"`
	Inferences uint64        `json:"inferences"`
	Captures   uint64        `json:"captures"`
}

// Session wires one frame source, one detector and one analysis pipeline
// into a frame-driven loop.
type Session struct {
	config   Config
	source   camera.Source
	detector detection.Detector
	pipeline *analyze.Pipeline

	// Loop-owned state
	renderer *overlay.Renderer
	tracker  *presence.Tracker

	mu            sync.Mutex
	state         State
	watchClass    string
	displayW      float64
	displayH      float64
	lastRecords   []overlay.Record
	lastInference time.Time
	inferences    uint64
	captures      uint64
	cancel        context.CancelFunc
	done          chan struct{}
	statusTimer   *time.Timer
	stateCh       chan stateEvent

	// OnRecords receives each rendered frame's records plus whether the
	// watched class was present. Called from the loop goroutine.
	OnRecords func(records []overlay.Record, watchPresent bool)

	// OnFrame receives the JPEG of each freshly inferred frame.
	OnFrame func(jpeg []byte)

	// OnAnalysis receives completed analyses, manual and automatic.
	OnAnalysis func(result *analyze.Result)

	// OnAnalysisError receives analysis failures.
	OnAnalysisError func(err error)

	// OnStateChange is invoked whenever the coarse state changes.
	OnStateChange func(state State)
}

// New creates an idle session. Display size defaults to the source's native
// resolution until the UI reports its own viewport.
func New(config Config, source camera.Source, detector detection.Detector, pipeline *analyze.Pipeline) *Session {
	w, h := source.Resolution()
	tracker := presence.NewTracker(config.Window)

	s := &Session{
		config:     config,
		source:     source,
		detector:   detector,
		pipeline:   pipeline,
		renderer:   overlay.NewRenderer(config.Overlay),
		tracker:    tracker,
		state:      StateIdle,
		watchClass: config.WatchClass,
		displayW:   float64(w),
		displayH:   float64(h),
		stateCh:    make(chan stateEvent, 64),
	}
	tracker.OnTrigger = s.autoCapture
	go s.dispatchStates()
	return s
}

// Start launches the detection loop. Idempotent while running.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.setStateLocked(StateDetecting)

	log.Info("session started",
		"watch_class", s.watchClass,
		"window", s.tracker.Window(),
		"render_interval", s.config.RenderInterval,
		"inference_interval", s.config.InferenceInterval,
	)
	go s.run(ctx, done)
}

// Stop halts the loop synchronously and clears all smoothing and presence
// state. An in-flight capture is allowed to complete; its late result is
// discarded (see deliverResult).
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	s.renderer.Reset()
	s.tracker.Reset()
	s.lastRecords = nil
	s.lastInference = time.Time{}
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	log.Info("session stopped")
}

// Running reports whether the loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// SetDisplaySize updates the viewport the overlay is mapped into.
func (s *Session) SetDisplaySize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayW = width
	s.displayH = height
}

// SetWatchClass switches the watched class and resets accumulated presence;
// stale periods never apply to a new class.
func (s *Session) SetWatchClass(class string) {
	s.mu.Lock()
	s.watchClass = class
	s.mu.Unlock()
	s.tracker.Reset()
}

// WatchClass returns the currently watched class.
func (s *Session) WatchClass() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchClass
}

// SetWindow changes the presence window. Zero disables auto-capture.
func (s *Session) SetWindow(window time.Duration) {
	s.tracker.SetWindow(window)
}

// Status returns a dashboard snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.cancel != nil,
		State:      s.state,
		WatchClass: s.watchClass,
		Window:     s.tracker.Window(),
		Present:    s.tracker.TotalPresent(time.Now()),
		Inferences: s.inferences,
		Captures:   s.captures,
	}
}

// run is the frame-driven loop. Rendering happens every tick; inference is
// throttled to its own rate, and presence observation happens synchronously
// in the same tick as a fresh inference, never on stale detections.
// The done channel is captured at spawn time: Stop nils the field before
// waiting, so the goroutine must never read it back from the struct.
func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.RenderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

func (s *Session) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	fresh := now.Sub(s.lastInference) >= s.config.InferenceInterval
	watchClass := s.watchClass
	vp := s.viewportLocked()
	s.mu.Unlock()

	if !fresh {
		// Redraw smoothed state without new detector output.
		s.mu.Lock()
		records := s.lastRecords
		s.mu.Unlock()
		if s.OnRecords != nil && records != nil {
			s.OnRecords(records, detectionPresent(records, watchClass))
		}
		return
	}

	frame, err := s.source.CaptureJPEG()
	if err != nil {
		log.Warn("frame capture failed", "error", err)
		return
	}

	dets, err := s.detector.Detect(frame)
	if err != nil {
		log.Warn("inference failed", "error", err)
		return
	}

	s.mu.Lock()
	s.lastInference = now
	s.inferences++
	records, err := s.renderer.Render(dets, vp)
	if err != nil {
		// Viewport not ready: skip this frame's render, keep the loop alive.
		s.mu.Unlock()
		return
	}
	s.lastRecords = records
	s.mu.Unlock()

	if s.OnFrame != nil {
		s.OnFrame(frame)
	}

	watchPresent := detection.HasClass(dets, watchClass)
	if s.OnRecords != nil {
		s.OnRecords(records, watchPresent)
	}

	// Synchronous with the fresh inference; may fire autoCapture.
	s.tracker.Observe(now, watchPresent)
}

func (s *Session) viewportLocked() overlay.Viewport {
	w, h := s.source.Resolution()
	return overlay.Viewport{
		SourceWidth:   float64(w),
		SourceHeight:  float64(h),
		DisplayWidth:  s.displayW,
		DisplayHeight: s.displayH,
	}
}

// CaptureNow performs a manual capture-and-analyze with the latest rendered
// records and blocks until the provider answers.
func (s *Session) CaptureNow(ctx context.Context) (*analyze.Result, error) {
	return s.capture(ctx, "manual")
}

// autoCapture is the presence tracker's trigger: fire-and-forget relative to
// the loop, which keeps running while the network call is pending.
func (s *Session) autoCapture(now time.Time) {
	go func() {
		if _, err := s.capture(context.Background(), "auto"); err != nil {
			log.Warn("auto capture failed", "error", err)
		}
	}()
}

func (s *Session) capture(ctx context.Context, trigger string) (*analyze.Result, error) {
	s.mu.Lock()
	records := s.lastRecords
	if s.cancel != nil {
		s.setStateLocked(StateCapturing)
	}
	s.mu.Unlock()

	result, err := s.pipeline.CaptureAndAnalyze(ctx, s.source, records, trigger)
	s.deliverResult(result, err)
	return result, err
}

// deliverResult surfaces a capture outcome and schedules the status restore.
// A late result arriving after Stop is tolerated and dropped.
func (s *Session) deliverResult(result *analyze.Result, err error) {
	s.mu.Lock()
	running := s.cancel != nil
	if !running {
		s.mu.Unlock()
		log.Debug("capture result after stop, discarding")
		return
	}

	s.captures++
	var delay time.Duration
	if err != nil {
		s.setStateLocked(StateError)
		delay = s.config.FailureStatusDelay
	} else {
		s.setStateLocked(StateAnalyzed)
		delay = s.config.SuccessStatusDelay
	}

	// Restore the running status after a short delay, longer on failure.
	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
	s.statusTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.cancel != nil && (s.state == StateAnalyzed || s.state == StateError) {
			s.setStateLocked(StateDetecting)
		}
		s.mu.Unlock()
	})
	s.mu.Unlock()

	if err != nil {
		if s.OnAnalysisError != nil {
			s.OnAnalysisError(err)
		}
		return
	}
	if s.OnAnalysis != nil {
		s.OnAnalysis(result)
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	if s.OnStateChange == nil {
		return
	}
	// Hand off to the dispatcher so callbacks run outside the lock but
	// still observe transitions in order.
	select {
	case s.stateCh <- stateEvent{state: state, notify: s.OnStateChange}:
	default:
		log.Warn("state event queue full, dropping", "state", state)
	}
}

type stateEvent struct {
	state  State
	notify func(State)
}

// dispatchStates delivers state change notifications one at a time, in the
// order the transitions happened.
func (s *Session) dispatchStates() {
	for ev := range s.stateCh {
		ev.notify(ev.state)
	}
}

func detectionPresent(records []overlay.Record, class string) bool {
	for _, r := range records {
		if r.Category == class {
			return true
		}
	}
	return false
}
