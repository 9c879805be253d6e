package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovesy/watchpost/pkg/camera"
	"github.com/grovesy/watchpost/pkg/detection"
	"github.com/grovesy/watchpost/pkg/overlay"
)

func testRecords() []overlay.Record {
	return []overlay.Record{
		{
			Category: "person", Score: 0.91,
			X: 50, Y: 100, Width: 150, Height: 180,
			SourceBox: detection.Box{X: 100, Y: 200, W: 300, H: 360},
		},
		{
			Category: "dog", Score: 0.74,
			X: 300, Y: 120, Width: 80, Height: 60,
			SourceBox: detection.Box{X: 600, Y: 240, W: 160, H: 120},
		},
	}
}

func TestBuildPayload(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 30, 45, 0, time.UTC)
	payload := BuildPayload(now, testRecords())

	if payload.Timestamp != "2026-03-14T12:30:45Z" {
		t.Errorf("timestamp: got %q", payload.Timestamp)
	}
	if len(payload.Detections) != 2 {
		t.Fatalf("detections: got %d, want 2", len(payload.Detections))
	}

	// Order and display-space geometry are preserved
	first := payload.Detections[0]
	if first.CategoryName != "person" || first.Score != 0.91 {
		t.Errorf("first entry: got %+v", first)
	}
	if first.X != 50 || first.Y != 100 || first.Width != 150 || first.Height != 180 {
		t.Errorf("first geometry: got %+v", first)
	}
	if payload.Detections[1].CategoryName != "dog" {
		t.Errorf("second entry: got %+v", payload.Detections[1])
	}
}

func TestBuildPayload_JSONShape(t *testing.T) {
	payload := BuildPayload(time.Now(), testRecords()[:1])

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if _, ok := decoded["timestamp"].(string); !ok {
		t.Error("payload must carry a string timestamp")
	}
	dets, ok := decoded["detections"].([]interface{})
	if !ok || len(dets) != 1 {
		t.Fatalf("payload detections: got %v", decoded["detections"])
	}
	entry := dets[0].(map[string]interface{})
	for _, field := range []string{"categoryName", "score", "x", "y", "width", "height"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("payload entry missing %q", field)
		}
	}
}

func TestPipeline_HandsOffImageAndPayload(t *testing.T) {
	provider := NewMockProvider()
	provider.Analysis = "a person and a dog"

	opts := DefaultOptions()
	opts.Annotate = false // keep the mock frame un-decoded
	p := NewPipeline(provider, opts)

	src := camera.NewMock(1280, 720)
	src.Frame = []byte("frame-bytes")

	result, err := p.CaptureAndAnalyze(context.Background(), src, testRecords(), "manual")
	if err != nil {
		t.Fatalf("CaptureAndAnalyze: %v", err)
	}

	if result.Analysis != "a person and a dog" {
		t.Errorf("analysis: got %q", result.Analysis)
	}
	if result.Trigger != "manual" {
		t.Errorf("trigger: got %q, want manual", result.Trigger)
	}
	if result.ID == "" {
		t.Error("result must carry an ID")
	}

	reqs := provider.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider requests: got %d, want 1", len(reqs))
	}
	if string(reqs[0].Image) != "frame-bytes" {
		t.Error("provider must receive the captured frame")
	}
	if len(reqs[0].Payload.Detections) != 2 {
		t.Errorf("provider payload: got %d detections, want 2", len(reqs[0].Payload.Detections))
	}
}

func TestPipeline_ProviderFailureIsReturned(t *testing.T) {
	provider := NewMockProvider()
	provider.AnalyzeFunc = func(ctx context.Context, req *Request) (string, error) {
		return "", errors.New("upstream unavailable")
	}

	opts := DefaultOptions()
	opts.Annotate = false
	p := NewPipeline(provider, opts)

	_, err := p.CaptureAndAnalyze(context.Background(), camera.NewMock(640, 480), nil, "auto")
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
}

func TestPipeline_SnapshotFailureIsReturned(t *testing.T) {
	p := NewPipeline(NewMockProvider(), Options{})

	src := camera.NewMock(640, 480)
	src.CaptureFunc = func() ([]byte, error) {
		return nil, fmt.Errorf("device gone")
	}

	_, err := p.CaptureAndAnalyze(context.Background(), src, nil, "manual")
	if err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestPipeline_PersistsArtifacts(t *testing.T) {
	dir := t.TempDir()

	provider := NewMockProvider()
	opts := Options{SaveDir: dir} // no annotation: mock frame is not a JPEG
	p := NewPipeline(provider, opts)

	src := camera.NewMock(640, 480)
	result, err := p.CaptureAndAnalyze(context.Background(), src, testRecords(), "manual")
	if err != nil {
		t.Fatalf("CaptureAndAnalyze: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, result.ID+".jpg")); err != nil {
		t.Errorf("raw frame not persisted: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, result.ID+".json"))
	if err != nil {
		t.Fatalf("payload not persisted: %v", err)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("persisted payload invalid: %v", err)
	}
	if len(payload.Detections) != 2 {
		t.Errorf("persisted detections: got %d, want 2", len(payload.Detections))
	}
}
