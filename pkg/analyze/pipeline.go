package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/grovesy/watchpost/internal/log"
	"github.com/grovesy/watchpost/pkg/camera"
	"github.com/grovesy/watchpost/pkg/overlay"
)

// Options configures capture behavior. The pipeline itself is stateless and
// reentrant; these are wiring-time decisions.
type Options struct {
	// Annotate redraws detection boxes at native resolution before anything
	// is saved or sent.
	Annotate bool

	// SendAnnotated sends the annotated frame to the provider instead of
	// the raw one. Requires Annotate.
	SendAnnotated bool

	// SaveDir persists the raw frame, the annotated frame and the JSON
	// payload when non-empty.
	SaveDir string

	// JPEGQuality for the annotated re-encode.
	JPEGQuality int

	// Prompt overrides the provider's default instruction.
	Prompt string
}

// DefaultOptions returns the recommended capture options.
func DefaultOptions() Options {
	return Options{
		Annotate:    true,
		JPEGQuality: 90,
	}
}

// Pipeline orchestrates capture-and-analyze: snapshot, annotate, package,
// persist, hand off to the reasoning provider.
type Pipeline struct {
	provider Provider
	opts     Options
}

// NewPipeline creates a pipeline around a reasoning provider.
func NewPipeline(provider Provider, opts Options) *Pipeline {
	return &Pipeline{provider: provider, opts: opts}
}

// CaptureAndAnalyze freezes the current frame, packages the detections and
// awaits the provider's analysis. Provider failure is returned as an error,
// never a panic; callers surface it and keep their loop running. The trigger
// string ("manual" or "auto") is carried through to the result.
func (p *Pipeline) CaptureAndAnalyze(ctx context.Context, src camera.Source, records []overlay.Record, trigger string) (*Result, error) {
	started := time.Now()
	id := uuid.NewString()

	frame, err := src.CaptureJPEG()
	if err != nil {
		return nil, fmt.Errorf("snapshot frame: %w", err)
	}

	var annotated []byte
	if p.opts.Annotate {
		annotated, err = Annotate(frame, records, p.opts.JPEGQuality)
		if err != nil {
			// Annotation failure degrades to the raw frame.
			log.Warn("annotate capture failed", "error", err)
			annotated = nil
		}
	}

	payload := BuildPayload(started, records)

	if p.opts.SaveDir != "" {
		if err := p.persist(id, frame, annotated, payload); err != nil {
			log.Warn("persist capture failed", "id", id, "error", err)
		}
	}

	image := frame
	if p.opts.SendAnnotated && annotated != nil {
		image = annotated
	}

	analysis, err := p.provider.Analyze(ctx, &Request{
		Image:   image,
		Payload: payload,
		Prompt:  p.opts.Prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning provider: %w", err)
	}

	result := &Result{
		ID:        id,
		Analysis:  analysis,
		Timestamp: started,
		Elapsed:   time.Since(started),
		Trigger:   trigger,
	}

	log.Info("capture analyzed",
		"id", id,
		"trigger", trigger,
		"detections", len(payload.Detections),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// persist writes the raw frame, annotated frame and JSON payload to SaveDir.
func (p *Pipeline) persist(id string, frame, annotated []byte, payload Payload) error {
	if err := os.MkdirAll(p.opts.SaveDir, 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(p.opts.SaveDir, id+".jpg"), frame, 0o644); err != nil {
		return err
	}
	if annotated != nil {
		if err := os.WriteFile(filepath.Join(p.opts.SaveDir, id+"-annotated.jpg"), annotated, 0o644); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.opts.SaveDir, id+".json"), data, 0o644)
}
