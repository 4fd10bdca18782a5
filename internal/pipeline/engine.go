package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/auditlog"
	"github.com/toanlq204/IT-helpdesk-bot/internal/confidence"
	"github.com/toanlq204/IT-helpdesk-bot/internal/llm"
	"github.com/toanlq204/IT-helpdesk-bot/internal/memory"
	"github.com/toanlq204/IT-helpdesk-bot/internal/metrics"
	"github.com/toanlq204/IT-helpdesk-bot/internal/prompt"
	"github.com/toanlq204/IT-helpdesk-bot/internal/retrieval"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/models"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

const (
	apologyAnswer = "I'm sorry, I'm having trouble processing your request right now. Please try again later or contact IT support directly."

	maxSources      = 3
	previewMaxChars = 200
)

// Generator is the LLM gateway consumed by the pipeline. Implementations own
// retries and timeouts; the pipeline never retries.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, temperature float32, maxTokens int) (string, error)
}

type Engine struct {
	retriever  retrieval.Retriever
	generator  Generator
	memory     memory.Store
	classifier *confidence.Classifier
	audit      *auditlog.Service
	topK       int
	maxTokens  int
}

type Request struct {
	ConversationID string
	Question       string
}

type Response struct {
	Answer           string   `json:"answer"`
	ConversationID   string   `json:"conversation_id,omitempty"`
	ConfidenceTier   string   `json:"confidence_level"`
	TopDistance      float64  `json:"top_distance"`
	NeedsHumanReview bool     `json:"needs_human_review"`
	RetrievedCount   int      `json:"retrieved_count"`
	Sources          []Source `json:"sources"`
	LogID            string   `json:"log_id,omitempty"`
	LatencyMS        int      `json:"latency_ms"`
}

type Source struct {
	Title          string   `json:"title"`
	RelevanceScore float64  `json:"relevance_score"`
	Tags           []string `json:"tags"`
}

func NewEngine(retriever retrieval.Retriever, generator Generator, mem memory.Store, classifier *confidence.Classifier, audit *auditlog.Service, topK, maxTokens int) *Engine {
	return &Engine{
		retriever:  retriever,
		generator:  generator,
		memory:     mem,
		classifier: classifier,
		audit:      audit,
		topK:       topK,
		maxTokens:  maxTokens,
	}
}

// Answer runs the full pipeline for one question: history load, retrieval,
// confidence classification, prompt composition, generation, persistence.
// Gateway failures degrade the answer instead of failing the call; only an
// unavailable audit store surfaces as an error, and even that is swallowed
// when the answer is already the degraded apology.
func (e *Engine) Answer(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	logger.Info("Processing query",
		zap.String("conversationId", req.ConversationID),
		zap.String("question", req.Question),
	)

	history := e.loadHistory(ctx, req.ConversationID)

	candidates, err := e.retriever.Retrieve(ctx, req.Question, e.topK)
	if err != nil {
		logger.Warn("Retrieval failed, continuing without context", zap.Error(err))
		metrics.GatewayDegraded.WithLabelValues("retrieval").Inc()
		candidates = nil
	}

	decision := e.classifier.Classify(retrieval.Distances(candidates))

	logger.Info("Confidence classified",
		zap.String("tier", string(decision.Tier)),
		zap.Float64("topDistance", decision.TopDistance),
		zap.Int("candidates", len(candidates)),
	)

	messages := prompt.Compose(decision.Tier, candidates, req.Question, history)

	generationFailed := false
	answer, err := e.generator.Generate(ctx, messages, decision.Temperature, e.maxTokens)
	if err != nil {
		logger.Error("Generation failed, returning fallback answer", zap.Error(err))
		metrics.GatewayDegraded.WithLabelValues("generation").Inc()
		generationFailed = true
		answer = apologyAnswer
		decision.Tier = confidence.TierNone
		decision.NeedsHumanReview = true
	}

	if req.ConversationID != "" {
		if err := e.memory.Append(ctx, req.ConversationID, memory.RoleUser, req.Question); err != nil {
			if generationFailed {
				logger.Warn("Skipping history write", zap.Error(err))
			} else {
				return nil, fmt.Errorf("failed to save conversation turn: %w", err)
			}
		} else if err := e.memory.Append(ctx, req.ConversationID, memory.RoleAssistant, answer); err != nil {
			if generationFailed {
				logger.Warn("Skipping history write", zap.Error(err))
			} else {
				return nil, fmt.Errorf("failed to save conversation turn: %w", err)
			}
		}
	}

	logID, err := e.audit.Record(buildLogEntry(req, candidates, decision, answer))
	if err != nil {
		if !generationFailed {
			return nil, fmt.Errorf("failed to record query: %w", err)
		}
		// Everything is down. Still give the user the apology.
		logger.Error("Audit write failed on degraded answer", zap.Error(err))
		logID = ""
	}

	latency := int(time.Since(startTime).Milliseconds())

	metrics.QueryTotal.WithLabelValues(string(decision.Tier)).Inc()
	metrics.QueryDuration.WithLabelValues(string(decision.Tier)).Observe(time.Since(startTime).Seconds())
	metrics.TopDistance.Observe(decision.TopDistance)
	metrics.RetrievedCandidates.Observe(float64(len(candidates)))
	if decision.NeedsHumanReview {
		metrics.HumanReviewFlagged.Inc()
	}

	logger.Info("Query processed",
		zap.String("logId", logID),
		zap.String("tier", string(decision.Tier)),
		zap.Int("latencyMs", latency),
	)

	return &Response{
		Answer:           answer,
		ConversationID:   req.ConversationID,
		ConfidenceTier:   string(decision.Tier),
		TopDistance:      decision.TopDistance,
		NeedsHumanReview: decision.NeedsHumanReview,
		RetrievedCount:   len(candidates),
		Sources:          buildSources(candidates),
		LogID:            logID,
		LatencyMS:        latency,
	}, nil
}

func (e *Engine) loadHistory(ctx context.Context, conversationID string) []llm.Message {
	if conversationID == "" {
		return nil
	}

	turns, err := e.memory.Read(ctx, conversationID)
	if err != nil {
		logger.Warn("History read failed, continuing without it", zap.Error(err))
		metrics.GatewayDegraded.WithLabelValues("memory").Inc()
		return nil
	}

	messages := make([]llm.Message, len(turns))
	for i, t := range turns {
		messages[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return messages
}

func buildSources(candidates []retrieval.Candidate) []Source {
	sources := make([]Source, 0, maxSources)
	for i, c := range candidates {
		if i >= maxSources {
			break
		}
		title := c.Title
		if title == "" {
			title = fmt.Sprintf("Source %d", i+1)
		}
		sources = append(sources, Source{
			Title:          title,
			RelevanceScore: 1 - c.Distance,
			Tags:           c.Tags,
		})
	}
	return sources
}

func buildLogEntry(req Request, candidates []retrieval.Candidate, decision confidence.Decision, answer string) *models.QueryLogEntry {
	ids := make([]string, len(candidates))
	titles := make([]string, len(candidates))
	tags := make([]string, len(candidates))
	previews := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.SnippetID
		titles[i] = c.Title
		tags[i] = joinTags(c.Tags)
		previews[i] = preview(c.Text)
	}

	return &models.QueryLogEntry{
		ConversationID:    req.ConversationID,
		Question:          req.Question,
		CandidateIDs:      ids,
		CandidateTitles:   titles,
		CandidateTags:     tags,
		CandidatePreviews: previews,
		Distances:         retrieval.Distances(candidates),
		TopDistance:       decision.TopDistance,
		ConfidenceTier:    string(decision.Tier),
		Answer:            answer,
		Metadata: map[string]interface{}{
			"temperature_used":   decision.Temperature,
			"needs_human_review": decision.NeedsHumanReview,
		},
	}
}

// preview truncates on a rune boundary so multi-byte text is never split
// into an invalid byte sequence.
func preview(text string) string {
	if len(text) <= previewMaxChars {
		return text
	}
	cut := previewMaxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}
