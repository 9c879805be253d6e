package overlay

// Config holds all tunable parameters for box smoothing and overlay rendering
type Config struct {
	// Smoothing
	BaseAlpha      float64 // Base EMA strength (0-1, higher = more new data)
	ConfidenceGain float64 // How much detection confidence boosts alpha
	MinAlpha       float64 // Lower clamp for the effective alpha
	MaxAlpha       float64 // Upper clamp for the effective alpha

	// Jitter suppression
	DeadZonePx float64 // Ignore per-field displacements smaller than this (display px)
}

// DefaultConfig returns the recommended configuration for jitter-free overlays
func DefaultConfig() Config {
	return Config{
		// Smoothing - confident detections track faster
		BaseAlpha:      0.25,
		ConfidenceGain: 0.4,
		MinAlpha:       0.1,
		MaxAlpha:       0.9,

		// Jitter suppression
		DeadZonePx: 2.0,
	}
}

// SteadyConfig returns a configuration for very stable, slower-moving overlays
func SteadyConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseAlpha = 0.15
	cfg.MaxAlpha = 0.6
	cfg.DeadZonePx = 4.0
	return cfg
}
