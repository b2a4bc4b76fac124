package entity

import "time"

// UploadedFrame is a raw frame registered for a session before processing.
// Identity within a session is the filename-derived FrameID.
type UploadedFrame struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	FrameID     string    `json:"frame_id"`
	ImagePath   string    `json:"image_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Prediction is one inferred bounding region from the inference endpoint.
// Geometry is in absolute pixel coordinates with (X, Y) the box center;
// the endpoint may omit geometry, so those fields are pointers.
type Prediction struct {
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	Confidence float64  `json:"confidence"`
	Class      string   `json:"class"`
}

// HasGeometry reports whether all four box fields are present.
func (p Prediction) HasGeometry() bool {
	return p.X != nil && p.Y != nil && p.Width != nil && p.Height != nil
}

type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectionResult is the normalized response of one inference call.
type DetectionResult struct {
	Time        float64         `json:"time"`
	Image       ImageDimensions `json:"image"`
	Predictions []Prediction    `json:"predictions"`
}

// PrimaryConfidence returns the first-returned prediction's confidence,
// or false when there are no predictions.
func (d *DetectionResult) PrimaryConfidence() (float64, bool) {
	if len(d.Predictions) == 0 {
		return 0, false
	}
	return d.Predictions[0].Confidence, true
}

// ProcessedFrame is the per-frame pipeline outcome. One exists per
// successfully matched and submitted frame; reprocessing replaces it.
// ProcessedImagePath is set only when HasCrack is true.
type ProcessedFrame struct {
	ID                 string       `json:"id"`
	SessionID          string       `json:"session_id"`
	FrameID            string       `json:"frame_id"`
	ImagePath          string       `json:"image_path"`
	ProcessedImagePath string       `json:"processed_image_path,omitempty"`
	Latitude           float64      `json:"latitude"`
	Longitude          float64      `json:"longitude"`
	Confidence         *float64     `json:"confidence,omitempty"`
	Class              string       `json:"class,omitempty"`
	Predictions        []Prediction `json:"predictions,omitempty"`
	HasCrack           bool         `json:"has_crack"`
	CreatedAt          time.Time    `json:"created_at"`
}
