package overlay

import "math"

// Smoother maintains one exponential moving average per tracked key.
//
// The key is the detector's class label: the overlay tracks "the current best
// box per class", not per-instance identity, so multiple same-class objects
// collapse onto one smoothed box. That is deliberate and matches the tracker
// downstream, which also reasons about classes rather than instances.
type Smoother struct {
	config Config
	boxes  map[string]Rect
}

// NewSmoother creates a smoother with no tracked keys.
func NewSmoother(config Config) *Smoother {
	return &Smoother{
		config: config,
		boxes:  make(map[string]Rect),
	}
}

// Smooth folds a new display-space observation into the EMA for key and
// returns the updated smoothed rect.
//
// The first observation of a key is stored and returned unchanged, so a new
// object appears without a smoothing transient. Subsequent observations are
// blended with a confidence-adaptive alpha: uncertain detections move the box
// less, confident ones track faster. A per-field dead zone is applied after
// the EMA, against the previously stored value, and its result becomes the
// new stored value.
func (s *Smoother) Smooth(key string, next Rect, confidence float64) Rect {
	prev, seen := s.boxes[key]
	if !seen {
		s.boxes[key] = next
		return next
	}

	alpha := clamp(s.config.BaseAlpha+confidence*s.config.ConfidenceGain,
		s.config.MinAlpha, s.config.MaxAlpha)

	smoothed := Rect{
		X: prev.X + alpha*(next.X-prev.X),
		Y: prev.Y + alpha*(next.Y-prev.Y),
		W: prev.W + alpha*(next.W-prev.W),
		H: prev.H + alpha*(next.H-prev.H),
	}

	smoothed = applyDeadZone(prev, smoothed, s.config.DeadZonePx)
	s.boxes[key] = smoothed
	return smoothed
}

// applyDeadZone keeps prev's value on every field whose displacement is below
// epsilon, suppressing sub-threshold jitter without lagging genuine movement.
// Fields are treated independently.
func applyDeadZone(prev, next Rect, epsilon float64) Rect {
	out := prev
	if math.Abs(next.X-prev.X) >= epsilon {
		out.X = next.X
	}
	if math.Abs(next.Y-prev.Y) >= epsilon {
		out.Y = next.Y
	}
	if math.Abs(next.W-prev.W) >= epsilon {
		out.W = next.W
	}
	if math.Abs(next.H-prev.H) >= epsilon {
		out.H = next.H
	}
	return out
}

// Prune deletes every tracked key not in present. A pruned key restarts
// smoothing from scratch if it reappears; there is no grace period.
func (s *Smoother) Prune(present map[string]bool) {
	for key := range s.boxes {
		if !present[key] {
			delete(s.boxes, key)
		}
	}
}

// Has reports whether key currently has smoothing state.
func (s *Smoother) Has(key string) bool {
	_, ok := s.boxes[key]
	return ok
}

// Len returns the number of tracked keys.
func (s *Smoother) Len() int {
	return len(s.boxes)
}

// Reset drops all smoothing state.
func (s *Smoother) Reset() {
	s.boxes = make(map[string]Rect)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
