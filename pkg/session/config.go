package session

import (
	"time"

	"github.com/grovesy/watchpost/pkg/overlay"
)

// Config holds all tunable parameters for a detection session
type Config struct {
	// Timing
	RenderInterval    time.Duration // How often the overlay is redrawn
	InferenceInterval time.Duration // How often the detector runs (throttled below render rate)

	// Watch state
	WatchClass string        // Class whose sustained presence triggers auto-capture
	Window     time.Duration // Presence window (0 = manual capture only)

	// Status restore delays after a capture completes
	SuccessStatusDelay time.Duration
	FailureStatusDelay time.Duration

	// Overlay smoothing
	Overlay overlay.Config
}

// DefaultConfig returns the recommended session configuration.
// Rendering runs at display-ish rate while inference is throttled to ~12/s,
// so ticks without a fresh inference still redraw smoothed state.
func DefaultConfig() Config {
	return Config{
		RenderInterval:    33 * time.Millisecond,  // ~30 redraws per second
		InferenceInterval: 83 * time.Millisecond,  // ~12 inferences per second

		WatchClass: "person",
		Window:     0, // Manual until the user picks a watch interval

		SuccessStatusDelay: 2 * time.Second,
		FailureStatusDelay: 5 * time.Second,

		Overlay: overlay.DefaultConfig(),
	}
}
