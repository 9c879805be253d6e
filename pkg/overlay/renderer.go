package overlay

import (
	"fmt"
	"math"

	"github.com/grovesy/watchpost/pkg/detection"
)

// Record is one renderable overlay entry: display-space box geometry rounded
// to integers, a formatted label, and the original source-pixel box retained
// for native-resolution redraws at capture time.
type Record struct {
	Category string  `json:"categoryName"`
	Score    float64 `json:"score"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Label    string  `json:"label"`

	SourceBox detection.Box `json:"-"`
}

// Renderer converts raw detections into smoothed overlay records. It owns no
// state beyond the smoother's key map, which it also prunes every frame.
type Renderer struct {
	smoother *Smoother
}

// NewRenderer creates a renderer with a fresh smoother.
func NewRenderer(config Config) *Renderer {
	return &Renderer{smoother: NewSmoother(config)}
}

// Render maps, clamps, smooths and labels one frame of raw detections.
//
// Detections without a class name are dropped silently. Output order follows
// input order. Keys absent from this frame are evicted from the smoother
// after the pass, so a reappearing object restarts smoothing from scratch.
// Returns ErrNotReady when the viewport has degenerate dimensions; callers
// treat that as "skip this frame's render".
func (r *Renderer) Render(dets []detection.Detection, vp Viewport) ([]Record, error) {
	if !vp.Ready() {
		return nil, ErrNotReady
	}

	records := make([]Record, 0, len(dets))
	present := make(map[string]bool, len(dets))

	for _, det := range dets {
		if det.ClassName == "" {
			continue
		}

		mapped, err := vp.Map(Rect{X: det.Box.X, Y: det.Box.Y, W: det.Box.W, H: det.Box.H})
		if err != nil {
			return nil, err
		}
		clamped := vp.Clamp(mapped)
		smoothed := r.smoother.Smooth(det.ClassName, clamped, det.Confidence)
		present[det.ClassName] = true

		x := int(math.Round(smoothed.X))
		y := int(math.Round(smoothed.Y))
		w := int(math.Round(smoothed.W))
		h := int(math.Round(smoothed.H))

		records = append(records, Record{
			Category:  det.ClassName,
			Score:     det.Confidence,
			X:         x,
			Y:         y,
			Width:     w,
			Height:    h,
			Label: fmt.Sprintf("%s %d%% [%d,%d %d×%d]",
				det.ClassName, int(math.Round(det.Confidence*100)), x, y, w, h),
			SourceBox: det.Box,
		})
	}

	r.smoother.Prune(present)
	return records, nil
}

// Smoother exposes the renderer's smoothing state for inspection.
func (r *Renderer) Smoother() *Smoother {
	return r.smoother
}

// Reset drops all smoothing state, as when a detection session stops.
func (r *Renderer) Reset() {
	r.smoother.Reset()
}
