package confidence

// Tier buckets the dissimilarity of the best retrieved snippet. Distances are
// in [0,1] where 0 is an exact semantic match.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	TierNone   Tier = "none"
)

type Decision struct {
	Tier             Tier
	Temperature      float32
	NeedsHumanReview bool
	TopDistance      float64
}

type Classifier struct {
	highThreshold   float64
	lowThreshold    float64
	baseTemperature float32
}

func NewClassifier(highThreshold, lowThreshold float64, baseTemperature float32) *Classifier {
	return &Classifier{
		highThreshold:   highThreshold,
		lowThreshold:    lowThreshold,
		baseTemperature: baseTemperature,
	}
}

// Classify maps the ordered distance list of retrieved candidates to a
// confidence decision. The empty list is its own tier: nothing was retrieved,
// so the answer is ungrounded and must be flagged for review.
func (c *Classifier) Classify(distances []float64) Decision {
	if len(distances) == 0 {
		return Decision{
			Tier:             TierNone,
			Temperature:      c.baseTemperature,
			NeedsHumanReview: true,
			TopDistance:      1.0,
		}
	}

	top := distances[0]

	switch {
	case top < c.highThreshold:
		return Decision{
			Tier:             TierHigh,
			Temperature:      c.baseTemperature,
			NeedsHumanReview: false,
			TopDistance:      top,
		}
	case top < c.lowThreshold:
		// Weaker grounding: lower the sampling temperature so the model
		// stays close to the retrieved context.
		return Decision{
			Tier:             TierMedium,
			Temperature:      c.baseTemperature * 0.7,
			NeedsHumanReview: false,
			TopDistance:      top,
		}
	default:
		return Decision{
			Tier:             TierLow,
			Temperature:      c.baseTemperature,
			NeedsHumanReview: true,
			TopDistance:      top,
		}
	}
}
