package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Tiers(t *testing.T) {
	c := NewClassifier(0.20, 0.35, 0.2)

	tests := []struct {
		name        string
		distances   []float64
		wantTier    Tier
		wantReview  bool
		wantTemp    float32
	}{
		{"exact match", []float64{0.0}, TierHigh, false, 0.2},
		{"just below high", []float64{0.19}, TierHigh, false, 0.2},
		{"exactly high threshold", []float64{0.20}, TierMedium, false, 0.2 * 0.7},
		{"between thresholds", []float64{0.30}, TierMedium, false, 0.2 * 0.7},
		{"exactly low threshold", []float64{0.35}, TierLow, true, 0.2},
		{"unrelated", []float64{0.95}, TierLow, true, 0.2},
		{"no candidates", nil, TierNone, true, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.distances)
			assert.Equal(t, tt.wantTier, d.Tier)
			assert.Equal(t, tt.wantReview, d.NeedsHumanReview)
			assert.InDelta(t, tt.wantTemp, d.Temperature, 1e-6)
		})
	}
}

func TestClassify_UsesTopDistanceOnly(t *testing.T) {
	c := NewClassifier(0.20, 0.35, 0.2)

	d := c.Classify([]float64{0.10, 0.90, 0.95})
	assert.Equal(t, TierHigh, d.Tier)
	assert.Equal(t, 0.10, d.TopDistance)
}

func TestClassify_NoCandidatesTopDistance(t *testing.T) {
	c := NewClassifier(0.20, 0.35, 0.2)

	d := c.Classify(nil)
	assert.Equal(t, 1.0, d.TopDistance)
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(0.20, 0.35, 0.5)

	first := c.Classify([]float64{0.25})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify([]float64{0.25}))
	}
}
