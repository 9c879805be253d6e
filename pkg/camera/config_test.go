package camera

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); errs != nil {
		t.Errorf("DefaultConfig should validate, got %v", errs)
	}
}

func TestPresetsAreValid(t *testing.T) {
	for name, cfg := range Presets() {
		if errs := cfg.Validate(); errs != nil {
			t.Errorf("preset %s should validate, got %v", name, errs)
		}
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset(Preset1080p)
	if p == nil {
		t.Fatal("1080p preset should exist")
	}
	if p.Width != 1920 || p.Height != 1080 {
		t.Errorf("1080p = %dx%d, want 1920x1080", p.Width, p.Height)
	}

	if GetPreset("720i") != nil {
		t.Error("unknown preset should return nil")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative device", func(c *Config) { c.DeviceID = -1 }},
		{"tiny width", func(c *Config) { c.Width = 10 }},
		{"huge height", func(c *Config) { c.Height = 9000 }},
		{"zero framerate", func(c *Config) { c.Framerate = 0 }},
		{"quality over 100", func(c *Config) { c.Quality = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if cfg.Validate() == nil {
				t.Error("Validate should report an error")
			}
		})
	}
}

func TestManagerSetConfigRejectsInvalid(t *testing.T) {
	m := NewManager()

	bad := DefaultConfig()
	bad.Quality = 0
	if err := m.SetConfig(bad); err == nil {
		t.Error("SetConfig should reject invalid config")
	}

	if m.GetConfig().Quality != DefaultConfig().Quality {
		t.Error("rejected config should not be applied")
	}
}

func TestManagerUpdateConfig(t *testing.T) {
	m := NewManager()

	err := m.UpdateConfig(map[string]interface{}{
		"width":           float64(640),
		"height":          float64(480),
		"flip_horizontal": true,
	})
	if err != nil {
		t.Fatalf("UpdateConfig error: %v", err)
	}

	cfg := m.GetConfig()
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("resolution = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
	if !cfg.FlipHorizontal {
		t.Error("FlipHorizontal should be set")
	}
}

func TestManagerUpdateConfigPreset(t *testing.T) {
	m := NewManager()

	err := m.UpdateConfig(map[string]interface{}{
		"preset":  "480p",
		"quality": float64(60),
	})
	if err != nil {
		t.Fatalf("UpdateConfig error: %v", err)
	}

	cfg := m.GetConfig()
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("resolution = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
	if cfg.Quality != 60 {
		t.Errorf("Quality = %d, want 60 (override applied after preset)", cfg.Quality)
	}

	if err := m.UpdateConfig(map[string]interface{}{"preset": "8k"}); err == nil {
		t.Error("unknown preset should error")
	}
}

func TestManagerConfigChangeCallback(t *testing.T) {
	m := NewManager()

	var applied Config
	m.OnConfigChange = func(cfg Config) error {
		applied = cfg
		return nil
	}

	cfg := DefaultConfig()
	cfg.Framerate = 15
	if err := m.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig error: %v", err)
	}

	if applied.Framerate != 15 {
		t.Errorf("callback framerate = %d, want 15", applied.Framerate)
	}
}

func TestStaticImageSource(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode error: %v", err)
	}

	src, err := NewStaticImage(buf.Bytes())
	if err != nil {
		t.Fatalf("NewStaticImage error: %v", err)
	}

	w, h := src.Resolution()
	if w != 320 || h != 240 {
		t.Errorf("Resolution = %dx%d, want 320x240", w, h)
	}

	frame, err := src.CaptureJPEG()
	if err != nil {
		t.Fatalf("CaptureJPEG error: %v", err)
	}
	if !bytes.Equal(frame, buf.Bytes()) {
		t.Error("CaptureJPEG should return the wrapped buffer unchanged")
	}

	if _, err := NewStaticImage([]byte("not a jpeg")); err == nil {
		t.Error("NewStaticImage should reject non-JPEG data")
	}
}
