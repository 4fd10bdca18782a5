package auditlog

import "github.com/toanlq204/IT-helpdesk-bot/internal/confidence"

// actionRule maps one (feedbackType, tier, distance) combination to the
// knowledge-base follow-ups it suggests. Rules are evaluated in order and
// every matching rule contributes its actions.
type actionRule struct {
	feedbackType  string          // empty matches any feedback type
	tier          confidence.Tier // empty matches any tier
	aboveDistance float64         // applies when topDistance > aboveDistance
	actions       []string
}

var actionRules = []actionRule{
	{
		feedbackType:  FeedbackIncorrect,
		aboveDistance: -1,
		actions: []string{
			"Review and update knowledge base with correct information",
			"Check if query requires new FAQ entry",
		},
	},
	{
		feedbackType:  FeedbackIncorrect,
		tier:          confidence.TierHigh,
		aboveDistance: -1,
		actions: []string{
			"High confidence but incorrect - review document relevance",
		},
	},
	{
		feedbackType:  FeedbackPartiallyCorrect,
		aboveDistance: -1,
		actions: []string{
			"Enhance existing FAQ with more complete information",
			"Consider adding related sub-topics",
		},
	},
	{
		feedbackType:  FeedbackUnclear,
		aboveDistance: -1,
		actions: []string{
			"Improve answer clarity and structure",
			"Add more specific examples or steps",
		},
	},
	{
		aboveDistance: 0.3,
		actions: []string{
			"Consider adding new FAQ for this topic area",
		},
	},
}

func suggestActions(feedbackType string, tier confidence.Tier, topDistance float64) []string {
	var suggestions []string
	for _, r := range actionRules {
		if r.feedbackType != "" && r.feedbackType != feedbackType {
			continue
		}
		if r.tier != "" && r.tier != tier {
			continue
		}
		if topDistance <= r.aboveDistance {
			continue
		}
		suggestions = append(suggestions, r.actions...)
	}
	return suggestions
}
