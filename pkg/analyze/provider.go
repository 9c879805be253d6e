// Package analyze implements the capture-and-analyze pipeline: freeze a
// frame, redraw annotations at native resolution, package detections as
// structured data and hand both to a remote reasoning provider.
package analyze

import (
	"context"
	"time"

	"github.com/grovesy/watchpost/pkg/overlay"
)

// DetectionEntry is one detection in the structured payload sent alongside
// the captured image.
type DetectionEntry struct {
	CategoryName string  `json:"categoryName"`
	Score        float64 `json:"score"`
	X            int     `json:"x"`
	Y            int     `json:"y"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
}

// Payload is the structured document handed to the reasoning provider.
type Payload struct {
	Timestamp  string           `json:"timestamp"` // ISO-8601
	Detections []DetectionEntry `json:"detections"`
}

// BuildPayload converts overlay records into the provider payload, preserving
// record order.
func BuildPayload(now time.Time, records []overlay.Record) Payload {
	entries := make([]DetectionEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, DetectionEntry{
			CategoryName: r.Category,
			Score:        r.Score,
			X:            r.X,
			Y:            r.Y,
			Width:        r.Width,
			Height:       r.Height,
		})
	}
	return Payload{
		Timestamp:  now.UTC().Format(time.RFC3339),
		Detections: entries,
	}
}

// Request carries the image and payload to a provider.
type Request struct {
	Image   []byte // JPEG at native resolution, annotated or raw per config
	Payload Payload
	Prompt  string // Optional extra instruction; providers have a default
}

// Result is a completed analysis.
type Result struct {
	ID        string        `json:"id"`
	Analysis  string        `json:"analysis"`
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Trigger   string        `json:"trigger"` // "manual" or "auto"
}

// Provider is the remote reasoning collaborator.
type Provider interface {
	// Analyze sends the image plus structured detections and returns the
	// free-text analysis.
	Analyze(ctx context.Context, req *Request) (string, error)
}
