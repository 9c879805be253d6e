// Package overlay maps raw detector boxes into display space and renders
// a smoothed, labelled overlay from them.
//
// Detector boxes arrive in source-frame pixel coordinates. The display shows
// the source under cover scaling: the source is scaled uniformly until it
// fills the display on both axes, centered, with the overflow cropped
// symmetrically. Mapping, clamping, smoothing and label formatting all happen
// here so downstream consumers only ever see display-space records.
package overlay

import (
	"errors"
	"math"
)

// ErrNotReady is returned when the viewport has zero-sized source or display
// dimensions, typically before the first frame has arrived.
var ErrNotReady = errors.New("overlay: viewport dimensions not ready")

// Rect is an axis-aligned rectangle. The coordinate space depends on context:
// source-frame pixels going into Viewport.Map, display units coming out.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Viewport describes how a source frame is fitted into a display rectangle
// using cover scaling.
type Viewport struct {
	SourceWidth   float64
	SourceHeight  float64
	DisplayWidth  float64
	DisplayHeight float64
}

// Ready reports whether both the source and display have non-zero size.
func (v Viewport) Ready() bool {
	return v.SourceWidth > 0 && v.SourceHeight > 0 &&
		v.DisplayWidth > 0 && v.DisplayHeight > 0
}

// Scale returns the cover scale: the larger of the two axis scales, so the
// scaled source over-fills the display on the other axis.
func (v Viewport) Scale() float64 {
	return math.Max(v.DisplayWidth/v.SourceWidth, v.DisplayHeight/v.SourceHeight)
}

// Map converts a box from source-frame pixels into display units.
// Returns ErrNotReady on degenerate dimensions so callers can skip the frame
// instead of dividing by zero.
func (v Viewport) Map(box Rect) (Rect, error) {
	if !v.Ready() {
		return Rect{}, ErrNotReady
	}

	scale := v.Scale()
	scaledW := v.SourceWidth * scale
	scaledH := v.SourceHeight * scale

	// Symmetric crop: one offset is always >= 0, the other is 0.
	offsetX := (scaledW - v.DisplayWidth) / 2
	offsetY := (scaledH - v.DisplayHeight) / 2

	return Rect{
		X: box.X*scale - offsetX,
		Y: box.Y*scale - offsetY,
		W: box.W * scale,
		H: box.H * scale,
	}, nil
}

// Clamp clips a display-space rect to the visible display area. Boxes
// partially outside the display are clipped, never dropped.
func (v Viewport) Clamp(r Rect) Rect {
	if r.X < 0 {
		r.W += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	if r.X+r.W > v.DisplayWidth {
		r.W = v.DisplayWidth - r.X
	}
	if r.Y+r.H > v.DisplayHeight {
		r.H = v.DisplayHeight - r.Y
	}
	if r.W < 0 {
		r.W = 0
	}
	if r.H < 0 {
		r.H = 0
	}
	return r
}
