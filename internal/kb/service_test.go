package kb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestTags(t *testing.T) {
	tags := suggestTags("To reset your password, open the helpdesk portal and follow the password recovery steps.")

	require.NotEmpty(t, tags)
	assert.LessOrEqual(t, len(tags), maxSuggestedTags)
	assert.Contains(t, tags, "password")

	seen := make(map[string]bool)
	for _, tag := range tags {
		assert.Equal(t, tag, strings.ToLower(tag))
		assert.False(t, seen[tag], "duplicate tag %q", tag)
		seen[tag] = true
	}
}

func TestSuggestTagsEmptyText(t *testing.T) {
	assert.Empty(t, suggestTags(""))
}

func TestEmbeddingInput(t *testing.T) {
	assert.Equal(t, "just text", embeddingInput(FAQ{Text: "just text"}))
	assert.Equal(t, "Title\nbody", embeddingInput(FAQ{Title: "Title", Text: "body"}))
}
