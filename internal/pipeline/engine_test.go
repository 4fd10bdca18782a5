package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toanlq204/IT-helpdesk-bot/internal/auditlog"
	"github.com/toanlq204/IT-helpdesk-bot/internal/confidence"
	"github.com/toanlq204/IT-helpdesk-bot/internal/llm"
	"github.com/toanlq204/IT-helpdesk-bot/internal/memory"
	"github.com/toanlq204/IT-helpdesk-bot/internal/retrieval"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/sqlite"
)

type stubRetriever struct {
	candidates []retrieval.Candidate
	err        error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Candidate, error) {
	return s.candidates, s.err
}

type stubGenerator struct {
	answer      string
	err         error
	gotMessages []llm.Message
	gotTemp     float32
}

func (s *stubGenerator) Generate(ctx context.Context, messages []llm.Message, temperature float32, maxTokens int) (string, error) {
	s.gotMessages = messages
	s.gotTemp = temperature
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

// failingAppendStore reads like a healthy store but rejects every write.
type failingAppendStore struct {
	*memory.MemStore
	err error
}

func (f *failingAppendStore) Append(ctx context.Context, conversationID, role, content string) error {
	return f.err
}

type testHarness struct {
	engine    *Engine
	retriever *stubRetriever
	generator *stubGenerator
	mem       *memory.MemStore
	audit     *auditlog.Service
	db        *sqlite.Client
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	h := &testHarness{
		retriever: &stubRetriever{},
		generator: &stubGenerator{answer: "Here is how to fix it."},
		mem:       memory.NewMemStore(5, 3000),
		audit:     auditlog.NewService(db, 1000),
		db:        db,
	}
	classifier := confidence.NewClassifier(0.20, 0.35, 0.2)
	h.engine = NewEngine(h.retriever, h.generator, h.mem, classifier, h.audit, 5, 500)
	return h
}

func faqCandidate(id, title string, distance float64) retrieval.Candidate {
	return retrieval.Candidate{
		SnippetID: id,
		Title:     title,
		Text:      "Step by step instructions for " + title,
		Tags:      []string{"network"},
		Distance:  distance,
	}
}

func TestEngine_AnswerHighConfidence(t *testing.T) {
	h := newHarness(t)
	h.retriever.candidates = []retrieval.Candidate{
		faqCandidate("faq-1", "VPN setup", 0.10),
		faqCandidate("faq-2", "VPN troubleshooting", 0.25),
	}

	resp, err := h.engine.Answer(context.Background(), Request{ConversationID: "conv-1", Question: "how do I set up the VPN?"})
	require.NoError(t, err)

	assert.Equal(t, "Here is how to fix it.", resp.Answer)
	assert.Equal(t, "high", resp.ConfidenceTier)
	assert.False(t, resp.NeedsHumanReview)
	assert.Equal(t, 0.10, resp.TopDistance)
	assert.Equal(t, 2, resp.RetrievedCount)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "VPN setup", resp.Sources[0].Title)
	assert.InDelta(t, 0.90, resp.Sources[0].RelevanceScore, 1e-9)
	require.NotEmpty(t, resp.LogID)

	entry, err := h.audit.GetByID(resp.LogID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "high", entry.ConfidenceTier)
	assert.Equal(t, []string{"faq-1", "faq-2"}, entry.CandidateIDs)

	turns, err := h.mem.Read(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, memory.RoleUser, turns[0].Role)
	assert.Equal(t, memory.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Here is how to fix it.", turns[1].Content)
}

func TestEngine_AnswerMediumLowersTemperature(t *testing.T) {
	h := newHarness(t)
	h.retriever.candidates = []retrieval.Candidate{faqCandidate("faq-1", "Printer setup", 0.30)}

	resp, err := h.engine.Answer(context.Background(), Request{Question: "printer?"})
	require.NoError(t, err)

	assert.Equal(t, "medium", resp.ConfidenceTier)
	assert.InDelta(t, 0.2*0.7, float64(h.generator.gotTemp), 1e-6)
}

func TestEngine_AnswerNoCandidates(t *testing.T) {
	h := newHarness(t)

	resp, err := h.engine.Answer(context.Background(), Request{Question: "what is the meaning of life?"})
	require.NoError(t, err)

	assert.Equal(t, "none", resp.ConfidenceTier)
	assert.True(t, resp.NeedsHumanReview)
	assert.Equal(t, 1.0, resp.TopDistance)
	assert.Empty(t, resp.Sources)
	assert.NotEmpty(t, resp.LogID)
}

func TestEngine_AnswerRetrievalFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.retriever.err = errors.New("vector db unreachable")

	resp, err := h.engine.Answer(context.Background(), Request{Question: "vpn?"})
	require.NoError(t, err)

	assert.Equal(t, "none", resp.ConfidenceTier)
	assert.True(t, resp.NeedsHumanReview)
	assert.Equal(t, "Here is how to fix it.", resp.Answer)
	assert.NotEmpty(t, resp.LogID)
}

func TestEngine_AnswerGenerationFailure(t *testing.T) {
	h := newHarness(t)
	h.retriever.candidates = []retrieval.Candidate{faqCandidate("faq-1", "VPN setup", 0.10)}
	h.generator.err = errors.New("llm timeout")

	resp, err := h.engine.Answer(context.Background(), Request{ConversationID: "conv-1", Question: "vpn?"})
	require.NoError(t, err)

	assert.Equal(t, apologyAnswer, resp.Answer)
	assert.Equal(t, "none", resp.ConfidenceTier)
	assert.True(t, resp.NeedsHumanReview)
	require.NotEmpty(t, resp.LogID)

	entry, err := h.audit.GetByID(resp.LogID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, apologyAnswer, entry.Answer)
}

func TestEngine_AnswerFullFailureReturnsApology(t *testing.T) {
	h := newHarness(t)
	h.generator.err = errors.New("llm down")
	require.NoError(t, h.db.Close())

	resp, err := h.engine.Answer(context.Background(), Request{Question: "vpn?"})
	require.NoError(t, err)

	assert.Equal(t, apologyAnswer, resp.Answer)
	assert.Empty(t, resp.LogID)
}

func TestEngine_AnswerAuditFailureSurfaces(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Close())

	_, err := h.engine.Answer(context.Background(), Request{Question: "vpn?"})
	require.Error(t, err)
}

func TestEngine_AnswerMemoryWriteFailureSurfaces(t *testing.T) {
	h := newHarness(t)
	store := &failingAppendStore{
		MemStore: h.mem,
		err:      fmt.Errorf("%w: redis down", storage.ErrUnavailable),
	}
	classifier := confidence.NewClassifier(0.20, 0.35, 0.2)
	engine := NewEngine(h.retriever, h.generator, store, classifier, h.audit, 5, 500)

	_, err := engine.Answer(context.Background(), Request{ConversationID: "conv-1", Question: "vpn?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestEngine_AnswerMemoryWriteFailureSwallowedWhenDegraded(t *testing.T) {
	h := newHarness(t)
	h.generator.err = errors.New("llm down")
	store := &failingAppendStore{
		MemStore: h.mem,
		err:      fmt.Errorf("%w: redis down", storage.ErrUnavailable),
	}
	classifier := confidence.NewClassifier(0.20, 0.35, 0.2)
	engine := NewEngine(h.retriever, h.generator, store, classifier, h.audit, 5, 500)

	resp, err := engine.Answer(context.Background(), Request{ConversationID: "conv-1", Question: "vpn?"})
	require.NoError(t, err)
	assert.Equal(t, apologyAnswer, resp.Answer)
	assert.NotEmpty(t, resp.LogID)
}

func TestEngine_AnswerNoConversationSkipsHistory(t *testing.T) {
	h := newHarness(t)

	resp, err := h.engine.Answer(context.Background(), Request{Question: "vpn?"})
	require.NoError(t, err)
	assert.Empty(t, resp.ConversationID)

	stats, err := h.mem.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, stats.Exists)
}

func TestEngine_AnswerHistoryFlowsIntoPrompt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.mem.Append(ctx, "conv-1", memory.RoleUser, "my vpn drops"))
	require.NoError(t, h.mem.Append(ctx, "conv-1", memory.RoleAssistant, "try reconnecting"))

	_, err := h.engine.Answer(ctx, Request{ConversationID: "conv-1", Question: "still broken"})
	require.NoError(t, err)

	// system + 2 history turns + user question
	require.Len(t, h.generator.gotMessages, 4)
	assert.Equal(t, "my vpn drops", h.generator.gotMessages[1].Content)
	assert.Equal(t, "try reconnecting", h.generator.gotMessages[2].Content)
}

func TestEngine_AnswerSourcesCappedAtThree(t *testing.T) {
	h := newHarness(t)
	h.retriever.candidates = []retrieval.Candidate{
		faqCandidate("a", "A", 0.05),
		faqCandidate("b", "B", 0.10),
		faqCandidate("c", "C", 0.12),
		faqCandidate("d", "D", 0.15),
		faqCandidate("e", "E", 0.18),
	}

	resp, err := h.engine.Answer(context.Background(), Request{Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, 5, resp.RetrievedCount)
	assert.Len(t, resp.Sources, 3)

	// All five candidates still land in the audit record.
	entry, err := h.audit.GetByID(resp.LogID)
	require.NoError(t, err)
	assert.Len(t, entry.CandidateIDs, 5)
}

func TestEngine_AnswerTruncatesPreviews(t *testing.T) {
	h := newHarness(t)
	long := faqCandidate("faq-1", "Long article", 0.10)
	long.Text = strings.Repeat("x", 250)
	h.retriever.candidates = []retrieval.Candidate{long}

	resp, err := h.engine.Answer(context.Background(), Request{Question: "q"})
	require.NoError(t, err)

	entry, err := h.audit.GetByID(resp.LogID)
	require.NoError(t, err)
	require.Len(t, entry.CandidatePreviews, 1)
	assert.Len(t, entry.CandidatePreviews[0], 203)
	assert.True(t, strings.HasSuffix(entry.CandidatePreviews[0], "..."))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	exact := strings.Repeat("a", 200)
	assert.Equal(t, exact, preview(exact))
	assert.Equal(t, strings.Repeat("a", 200)+"...", preview(strings.Repeat("a", 201)))
}

func TestPreviewKeepsRunesIntact(t *testing.T) {
	// A two-byte rune straddling the cut point must be dropped whole.
	text := strings.Repeat("a", 199) + "é" + strings.Repeat("b", 50)
	got := preview(text)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 199)+"...", got)

	multibyte := strings.Repeat("ü", 150)
	got = preview(multibyte)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("ü", 100)+"...", got)
}
