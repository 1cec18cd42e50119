package activity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints(t *testing.T) {
	tests := []struct {
		name      string
		correct   bool
		timeSpent float64
		want      int
	}{
		{"instant", true, 0, 1000},
		{"fractions are floored", true, 3.7, 850},
		{"just under the limit", true, 19.9, 50},
		{"at the limit", true, 20, 0},
		{"way too slow", true, 25, 0},
		{"negative time counts as zero", true, -2, 1000},
		{"wrong answer", false, 1, 0},
		{"NaN", true, math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Points(tt.correct, tt.timeSpent))
		})
	}
}
