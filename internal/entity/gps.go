package entity

// GpsFix is a single GPS reading tagged with an integer timestamp in seconds.
// Immutable once parsed. Duplicate seconds are allowed; matching resolves
// them first-in-order.
type GpsFix struct {
	Second    int     `json:"second"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}
