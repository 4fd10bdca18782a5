package kb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/retrieval/milvus"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

const maxSuggestedTags = 5

// FAQ is one knowledge base entry submitted by an admin.
type FAQ struct {
	Title string   `json:"title"`
	Text  string   `json:"text"`
	Tags  []string `json:"tags"`
}

// Embedder produces embeddings for FAQ text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type Service struct {
	vectorDB *milvus.Client
	embedder Embedder
}

func NewService(vectorDB *milvus.Client, embedder Embedder) *Service {
	return &Service{
		vectorDB: vectorDB,
		embedder: embedder,
	}
}

// AddFAQ embeds and stores a single FAQ. When the submitter provided no tags,
// nouns and named entities from the text are used as suggestions.
func (s *Service) AddFAQ(ctx context.Context, faq FAQ) (string, error) {
	if strings.TrimSpace(faq.Text) == "" {
		return "", fmt.Errorf("faq text is required")
	}

	tags := faq.Tags
	if len(tags) == 0 {
		tags = suggestTags(faq.Title + " " + faq.Text)
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embeddingInput(faq))
	if err != nil {
		return "", fmt.Errorf("failed to embed faq: %w", err)
	}

	snippetID := uuid.New().String()
	err = s.vectorDB.Upsert(ctx, []milvus.Snippet{
		{
			ID:        snippetID,
			Embedding: embedding,
			Title:     faq.Title,
			Text:      faq.Text,
			Tags:      tags,
			Timestamp: time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to store faq: %w", err)
	}

	logger.Info("FAQ added",
		zap.String("snippetId", snippetID),
		zap.String("title", faq.Title),
		zap.Strings("tags", tags),
	)

	return snippetID, nil
}

// AddFAQsBulk embeds and stores a batch of FAQs, returning the stored count.
// Entries with empty text are skipped.
func (s *Service) AddFAQsBulk(ctx context.Context, faqs []FAQ) (int, error) {
	valid := make([]FAQ, 0, len(faqs))
	for _, faq := range faqs {
		if strings.TrimSpace(faq.Text) != "" {
			valid = append(valid, faq)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	texts := make([]string, len(valid))
	for i, faq := range valid {
		texts[i] = embeddingInput(faq)
	}

	embeddings, err := s.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed faqs: %w", err)
	}
	if len(embeddings) != len(valid) {
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(valid))
	}

	snippets := make([]milvus.Snippet, len(valid))
	now := time.Now()
	for i, faq := range valid {
		tags := faq.Tags
		if len(tags) == 0 {
			tags = suggestTags(faq.Title + " " + faq.Text)
		}
		snippets[i] = milvus.Snippet{
			ID:        uuid.New().String(),
			Embedding: embeddings[i],
			Title:     faq.Title,
			Text:      faq.Text,
			Tags:      tags,
			Timestamp: now,
		}
	}

	err = s.vectorDB.Upsert(ctx, snippets)
	if err != nil {
		return 0, fmt.Errorf("failed to store faqs: %w", err)
	}

	logger.Info("FAQ batch added", zap.Int("count", len(snippets)))

	return len(snippets), nil
}

func embeddingInput(faq FAQ) string {
	if faq.Title == "" {
		return faq.Text
	}
	return faq.Title + "\n" + faq.Text
}

// suggestTags extracts candidate topic tags from free text. Named entities
// take priority, then common nouns by frequency.
func suggestTags(text string) []string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		logger.Warn("Failed to analyze faq text for tags", zap.Error(err))
		return nil
	}

	seen := make(map[string]bool)
	tags := make([]string, 0, maxSuggestedTags)

	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] || len(tags) >= maxSuggestedTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, ent := range doc.Entities() {
		add(ent.Text)
	}

	nounCounts := make(map[string]int)
	for _, tok := range doc.Tokens() {
		if strings.HasPrefix(tok.Tag, "NN") {
			nounCounts[strings.ToLower(tok.Text)]++
		}
	}
	nouns := make([]string, 0, len(nounCounts))
	for noun := range nounCounts {
		nouns = append(nouns, noun)
	}
	sort.Slice(nouns, func(i, j int) bool {
		if nounCounts[nouns[i]] != nounCounts[nouns[j]] {
			return nounCounts[nouns[i]] > nounCounts[nouns[j]]
		}
		return nouns[i] < nouns[j]
	})
	for _, noun := range nouns {
		add(noun)
	}

	return tags
}
