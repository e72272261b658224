package domain

// PositionEstimate is the positioning engine's output: an estimated
// coordinate with an accuracy radius (meters, floor 1.0) and a confidence
// score in [0,1].
type PositionEstimate struct {
	Location   GeoPoint `json:"location"`
	Accuracy   float64  `json:"accuracy"`
	Confidence float64  `json:"confidence"`
}
