package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/retrieval"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

// Embedder turns query text into a vector for similarity search.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Client struct {
	client         client.Client
	embedder       Embedder
	collectionName string
	vectorDim      int
}

// Snippet is one knowledge base entry as stored in the collection.
type Snippet struct {
	ID        string
	Embedding []float32
	Title     string
	Text      string
	Tags      []string
	Timestamp time.Time
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int, embedder Embedder) (*Client, error) {
	c, err := client.NewClient(context.Background(), client.Config{
		Address: endpoint,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		embedder:       embedder,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "IT helpdesk FAQ embeddings",
		Fields: []*entity.Field{
			{
				Name:       "snippet_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "tags",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Upsert(ctx context.Context, snippets []Snippet) error {
	if len(snippets) == 0 {
		return nil
	}

	snippetIDs := make([]string, len(snippets))
	embeddings := make([][]float32, len(snippets))
	titles := make([]string, len(snippets))
	texts := make([]string, len(snippets))
	tags := make([]string, len(snippets))
	timestamps := make([]int64, len(snippets))

	for i, s := range snippets {
		snippetIDs[i] = s.ID
		embeddings[i] = s.Embedding
		titles[i] = s.Title
		texts[i] = s.Text
		tags[i] = marshalTags(s.Tags)
		timestamps[i] = s.Timestamp.Unix()
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("snippet_id", snippetIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("tags", tags),
		entity.NewColumnInt64("timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snippets: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Snippets upserted into vector DB", zap.Int("count", len(snippets)))

	return nil
}

// Retrieve embeds the query and returns the topK nearest snippets ordered by
// ascending cosine distance.
func (m *Client) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Candidate, error) {
	embedding, err := m.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"snippet_id", "title", "text", "tags"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	candidates := make([]retrieval.Candidate, 0)
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("snippet_id")
		titleCol := sr.Fields.GetColumn("title")
		textCol := sr.Fields.GetColumn("text")
		tagsCol := sr.Fields.GetColumn("tags")

		for i := 0; i < sr.ResultCount; i++ {
			snippetID, _ := idCol.Get(i)
			title, _ := titleCol.Get(i)
			text, _ := textCol.Get(i)
			rawTags, _ := tagsCol.Get(i)

			// COSINE scores are similarities; the pipeline works in distances.
			dist := 1 - float64(sr.Scores[i])
			if dist < 0 {
				dist = 0
			}

			candidates = append(candidates, retrieval.Candidate{
				SnippetID: snippetID.(string),
				Title:     title.(string),
				Text:      text.(string),
				Tags:      unmarshalTags(rawTags.(string)),
				Distance:  dist,
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(candidates)),
	)

	return candidates, nil
}

func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalTags(raw string) []string {
	var tags []string
	if raw == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}
