package activity

import "math"

const (
	MaxPoints        = 1000
	PenaltyPerSecond = 50
)

// Points returns the score of an answer: max(0, 1000 - floor(timeSpent)*50) when correct, 0 otherwise.
func Points(correct bool, timeSpent float64) int {
	if !correct || math.IsNaN(timeSpent) {
		return 0
	}
	secs := math.Floor(timeSpent)
	if secs < 0 {
		secs = 0
	}
	if secs >= MaxPoints/PenaltyPerSecond {
		return 0
	}
	return MaxPoints - int(secs)*PenaltyPerSecond
}
