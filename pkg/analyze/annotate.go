package analyze

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/grovesy/watchpost/pkg/overlay"
)

var (
	annotationColor = color.RGBA{R: 0x00, G: 0x7f, B: 0xff, A: 255}
	labelTextColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotate redraws detection boxes and labels onto a copy of the frame at
// native resolution. It draws from each record's retained source-pixel box,
// not the display-space geometry, so annotation accuracy is independent of
// whatever viewport the overlay happened to be rendered into.
func Annotate(frame []byte, records []overlay.Record, quality int) ([]byte, error) {
	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	for _, rec := range records {
		box := rec.SourceBox
		rect := image.Rect(int(box.X), int(box.Y), int(box.X+box.W), int(box.Y+box.H))
		gocv.Rectangle(&img, rect, annotationColor, 2)

		label := fmt.Sprintf("%s %d%%", rec.Category, int(rec.Score*100))
		labelPos := image.Pt(rect.Min.X, rect.Min.Y-6)
		if labelPos.Y < 12 {
			labelPos.Y = rect.Min.Y + 16
		}

		size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
		bg := image.Rect(labelPos.X, labelPos.Y-size.Y-2, labelPos.X+size.X+4, labelPos.Y+4)
		gocv.Rectangle(&img, bg, annotationColor, -1)
		gocv.PutText(&img, label, image.Pt(labelPos.X+2, labelPos.Y), gocv.FontHersheySimplex, 0.5, labelTextColor, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode annotated frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
