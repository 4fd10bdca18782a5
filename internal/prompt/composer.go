package prompt

import (
	"fmt"
	"strings"

	"github.com/toanlq204/IT-helpdesk-bot/internal/confidence"
	"github.com/toanlq204/IT-helpdesk-bot/internal/llm"
	"github.com/toanlq204/IT-helpdesk-bot/internal/retrieval"
)

const (
	systemPromptHigh = "You are an IT helpdesk assistant. Use the provided context from the knowledge base to answer user questions. " +
		"The context provided is highly relevant to the user's question. " +
		"Consider the conversation history to provide contextual responses. " +
		"If the context is insufficient, say you don't know and propose next steps (e.g., create a ticket)."

	systemPromptMedium = "You are an IT helpdesk assistant. Use the provided context from the knowledge base to answer user questions. " +
		"The context may be somewhat relevant but express some uncertainty in your response. " +
		"Consider the conversation history to provide contextual responses. " +
		"Start your answer with a phrase like 'I may be uncertain, but based on available information...' " +
		"If the context is insufficient, say you don't know and propose next steps (e.g., create a ticket)."

	systemPromptLow = "You are an IT helpdesk assistant. The knowledge base doesn't contain highly relevant information for this question. " +
		"Provide a general, helpful response based on common IT practices and conversation history. " +
		"Be honest about limitations and strongly recommend creating a support ticket for personalized assistance. " +
		"Suggest that a human IT specialist should review this request."
)

// mediumTierLimit caps the context block when grounding is weaker.
const mediumTierLimit = 3

// Compose builds the message sequence for the model: one tier-specific system
// message, the retained conversation history oldest first, then one user
// message carrying the context block (if the tier warrants one) and the query.
func Compose(tier confidence.Tier, candidates []retrieval.Candidate, userQuery string, history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)

	switch tier {
	case confidence.TierHigh:
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPromptHigh})
		messages = append(messages, history...)
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Context:\n%s\n\nUser question: %s", contextBlock(candidates), userQuery),
		})

	case confidence.TierMedium:
		limited := candidates
		if len(limited) > mediumTierLimit {
			limited = limited[:mediumTierLimit]
		}
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPromptMedium})
		messages = append(messages, history...)
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Context:\n%s\n\nUser question: %s", contextBlock(limited), userQuery),
		})

	default:
		// Low confidence and no-result queries get no context block at all;
		// stale snippets would only mislead the model.
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPromptLow})
		messages = append(messages, history...)
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userQuery})
	}

	return messages
}

func contextBlock(candidates []retrieval.Candidate) string {
	var builder strings.Builder
	for i, c := range candidates {
		if i > 0 {
			builder.WriteString("\n")
		}
		title := c.Title
		if title == "" {
			title = fmt.Sprintf("doc_%d", i)
		}
		builder.WriteString(fmt.Sprintf("%d. %s: %s", i+1, title, c.Text))
	}
	return builder.String()
}
