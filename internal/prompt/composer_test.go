package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toanlq204/IT-helpdesk-bot/internal/confidence"
	"github.com/toanlq204/IT-helpdesk-bot/internal/llm"
	"github.com/toanlq204/IT-helpdesk-bot/internal/retrieval"
)

func candidates(n int) []retrieval.Candidate {
	out := make([]retrieval.Candidate, 0, n)
	titles := []string{"VPN setup", "Password reset", "Printer offline", "Email quota", "MFA enrollment"}
	for i := 0; i < n; i++ {
		out = append(out, retrieval.Candidate{
			SnippetID: titles[i%len(titles)],
			Title:     titles[i%len(titles)],
			Text:      "step-by-step instructions for " + titles[i%len(titles)],
			Distance:  0.1 + float64(i)*0.05,
		})
	}
	return out
}

func TestCompose_HighTierIncludesAllCandidates(t *testing.T) {
	msgs := Compose(confidence.TierHigh, candidates(5), "how do I reset my password?", nil)

	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "highly relevant")

	user := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleUser, user.Role)
	assert.Contains(t, user.Content, "Context:")
	assert.Contains(t, user.Content, "User question: how do I reset my password?")
	for _, title := range []string{"VPN setup", "Password reset", "Printer offline", "Email quota", "MFA enrollment"} {
		assert.Contains(t, user.Content, title)
	}
}

func TestCompose_MediumTierLimitsToTopThree(t *testing.T) {
	msgs := Compose(confidence.TierMedium, candidates(5), "email is broken", nil)

	user := msgs[len(msgs)-1]
	assert.Contains(t, user.Content, "1. VPN setup")
	assert.Contains(t, user.Content, "3. Printer offline")
	assert.NotContains(t, user.Content, "Email quota")
	assert.NotContains(t, user.Content, "MFA enrollment")

	assert.Contains(t, msgs[0].Content, "express some uncertainty")
}

func TestCompose_LowTierOmitsContext(t *testing.T) {
	for _, tier := range []confidence.Tier{confidence.TierLow, confidence.TierNone} {
		msgs := Compose(tier, candidates(2), "weird kernel panic", nil)

		require.Len(t, msgs, 2)
		user := msgs[len(msgs)-1]
		assert.Equal(t, "weird kernel panic", user.Content)
		assert.NotContains(t, user.Content, "Context:")
		assert.Contains(t, msgs[0].Content, "support ticket")
	}
}

func TestCompose_HistoryOrderPreserved(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "my vpn dropped"},
		{Role: llm.RoleAssistant, Content: "try reconnecting"},
		{Role: llm.RoleUser, Content: "still down"},
		{Role: llm.RoleAssistant, Content: "restart the client"},
	}

	msgs := Compose(confidence.TierHigh, candidates(1), "it worked, thanks", history)

	require.Len(t, msgs, 6)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	for i, h := range history {
		assert.Equal(t, h, msgs[i+1])
	}
	assert.Equal(t, llm.RoleUser, msgs[5].Role)
	assert.True(t, strings.HasSuffix(msgs[5].Content, "User question: it worked, thanks"))
}

func TestCompose_NoCandidatesHighTierStillWellFormed(t *testing.T) {
	msgs := Compose(confidence.TierHigh, nil, "hello", nil)

	user := msgs[len(msgs)-1]
	assert.Contains(t, user.Content, "User question: hello")
}

func TestCompose_UntitledCandidateGetsPlaceholder(t *testing.T) {
	msgs := Compose(confidence.TierHigh, []retrieval.Candidate{{Text: "some answer"}}, "q", nil)

	user := msgs[len(msgs)-1]
	assert.Contains(t, user.Content, "1. doc_0: some answer")
}
