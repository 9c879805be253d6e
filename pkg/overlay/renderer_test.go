package overlay

import (
	"errors"
	"testing"

	"github.com/grovesy/watchpost/pkg/detection"
)

func testViewport() Viewport {
	// Matching aspect, 2:1 downscale: mapping is a clean halving.
	return Viewport{SourceWidth: 1280, SourceHeight: 720, DisplayWidth: 640, DisplayHeight: 360}
}

func TestRenderer_MapsAndLabels(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	dets := []detection.Detection{
		{ClassName: "person", Confidence: 0.87, Box: detection.Box{X: 100, Y: 200, W: 300, H: 400}},
	}

	records, err := r.Render(dets, testViewport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Render: got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.X != 50 || rec.Y != 100 || rec.Width != 150 || rec.Height != 180 {
		t.Errorf("geometry: got [%d,%d %dx%d], want [50,100 150x180]", rec.X, rec.Y, rec.Width, rec.Height)
	}
	if rec.Label != "person 87% [50,100 150×180]" {
		t.Errorf("label: got %q", rec.Label)
	}
	if rec.SourceBox != dets[0].Box {
		t.Errorf("source box not retained: got %+v, want %+v", rec.SourceBox, dets[0].Box)
	}
}

func TestRenderer_DropsUnclassified(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	dets := []detection.Detection{
		{ClassName: "", Confidence: 0.9, Box: detection.Box{X: 0, Y: 0, W: 10, H: 10}},
		{ClassName: "cat", Confidence: 0.8, Box: detection.Box{X: 100, Y: 100, W: 50, H: 50}},
	}

	records, err := r.Render(dets, testViewport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(records) != 1 || records[0].Category != "cat" {
		t.Errorf("unclassified detection should be dropped silently, got %+v", records)
	}
}

func TestRenderer_PreservesDetectionOrder(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	dets := []detection.Detection{
		{ClassName: "dog", Confidence: 0.6, Box: detection.Box{X: 0, Y: 0, W: 100, H: 100}},
		{ClassName: "person", Confidence: 0.9, Box: detection.Box{X: 200, Y: 0, W: 100, H: 100}},
		{ClassName: "cat", Confidence: 0.7, Box: detection.Box{X: 400, Y: 0, W: 100, H: 100}},
	}

	records, err := r.Render(dets, testViewport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := []string{"dog", "person", "cat"}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, category := range want {
		if records[i].Category != category {
			t.Errorf("record %d: got %q, want %q", i, records[i].Category, category)
		}
	}
}

func TestRenderer_EvictsAbsentKeys(t *testing.T) {
	r := NewRenderer(DefaultConfig())
	vp := testViewport()

	frame1 := []detection.Detection{
		{ClassName: "person", Confidence: 0.9, Box: detection.Box{X: 100, Y: 100, W: 100, H: 100}},
		{ClassName: "dog", Confidence: 0.8, Box: detection.Box{X: 400, Y: 100, W: 100, H: 100}},
	}
	if _, err := r.Render(frame1, vp); err != nil {
		t.Fatalf("Render frame1: %v", err)
	}

	// dog disappears: its key must be gone immediately after this pass.
	frame2 := []detection.Detection{frame1[0]}
	if _, err := r.Render(frame2, vp); err != nil {
		t.Fatalf("Render frame2: %v", err)
	}

	if r.Smoother().Has("dog") {
		t.Error("dog should be evicted the frame after it disappears")
	}
	if !r.Smoother().Has("person") {
		t.Error("person should still be tracked")
	}
}

func TestRenderer_NotReadyViewport(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	dets := []detection.Detection{
		{ClassName: "person", Confidence: 0.9, Box: detection.Box{X: 0, Y: 0, W: 10, H: 10}},
	}

	_, err := r.Render(dets, Viewport{})
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Render on empty viewport: got err %v, want ErrNotReady", err)
	}
}

func TestRenderer_ClampsToDisplay(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	// Box hangs off the left edge of the source: after mapping it still
	// starts at a negative X and must be clipped, not dropped.
	dets := []detection.Detection{
		{ClassName: "car", Confidence: 0.9, Box: detection.Box{X: -100, Y: 0, W: 300, H: 200}},
	}

	records, err := r.Render(dets, testViewport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("clipped box must not be dropped, got %d records", len(records))
	}
	if records[0].X != 0 || records[0].Width != 100 {
		t.Errorf("clamp: got x=%d w=%d, want x=0 w=100", records[0].X, records[0].Width)
	}
}
