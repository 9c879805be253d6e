// Package detection provides object detection over JPEG frames.
package detection

// Box is an axis-aligned bounding box in source-frame pixels.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Area returns the area of the box.
func (b Box) Area() float64 {
	return b.W * b.H
}

// Detection is one detected object from a single inference call.
type Detection struct {
	ClassName  string  // Human-readable class name ("" means unclassified)
	Confidence float64 // Detection confidence (0-1)
	Box        Box     // Bounding box in source-frame pixels
}

// Detector is the interface for object detection backends.
type Detector interface {
	// Detect finds objects in the JPEG image. Boxes are returned in
	// source-frame pixel coordinates.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// HasClass reports whether any detection carries the given class name.
func HasClass(dets []Detection, className string) bool {
	for _, d := range dets {
		if d.ClassName == className {
			return true
		}
	}
	return false
}
