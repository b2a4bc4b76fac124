package frame

import "RailscanGolang/internal/entity"

type GpsLogUploadResponse struct {
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}

type FrameUploadResponse struct {
	Accepted []string `json:"accepted"`
	Rejected []string `json:"rejected,omitempty"`
}

type ProcessedFrameResponse struct {
	FrameID            string              `json:"frame_id"`
	ImagePath          string              `json:"image_path"`
	ProcessedImagePath string              `json:"processed_image_path,omitempty"`
	Latitude           float64             `json:"latitude"`
	Longitude          float64             `json:"longitude"`
	Confidence         *float64            `json:"confidence,omitempty"`
	Class              string              `json:"class,omitempty"`
	Predictions        []entity.Prediction `json:"predictions,omitempty"`
	HasCrack           bool                `json:"has_crack"`
}

type BatchOutcome string

const (
	BatchOutcomeProcessed BatchOutcome = "processed"
	BatchOutcomeSkipped   BatchOutcome = "skipped"
	BatchOutcomeNoGps     BatchOutcome = "no_gps"
	BatchOutcomeFailed    BatchOutcome = "failed"
)

type BatchFrameResult struct {
	FrameID string       `json:"frame_id"`
	Outcome BatchOutcome `json:"outcome"`
	Error   string       `json:"error,omitempty"`
}

type BatchProcessResponse struct {
	SessionID  string             `json:"session_id"`
	Processed  int                `json:"processed"`
	Detections int                `json:"detections"`
	Frames     []BatchFrameResult `json:"frames"`
}

// ProgressSnapshot is what the websocket progress stream emits.
type ProgressSnapshot struct {
	SessionID  string `json:"session_id"`
	Total      int    `json:"total"`
	Processed  int    `json:"processed"`
	Detections int    `json:"detections"`
	NoGps      int    `json:"no_gps"`
	Pending    int    `json:"pending"`
}

type ResultsResponse struct {
	SessionID string                   `json:"session_id"`
	Results   []ProcessedFrameResponse `json:"results"`
	Total     int                      `json:"total"`
}
