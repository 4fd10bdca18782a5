package auditlog

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toanlq204/IT-helpdesk-bot/internal/confidence"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/models"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/sqlite"
)

func newTestService(t *testing.T, maxEntries int) *Service {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	return NewService(db, maxEntries)
}

func testEntry(question string) *models.QueryLogEntry {
	return &models.QueryLogEntry{
		ConversationID:    "conv-1",
		Question:          question,
		CandidateIDs:      []string{"faq-1", "faq-2"},
		CandidateTitles:   []string{"VPN setup", "Password reset"},
		CandidateTags:     []string{"vpn", "password"},
		CandidatePreviews: []string{"connect to the corporate VPN...", "open the reset portal..."},
		Distances:         []float64{0.12, 0.28},
		TopDistance:       0.12,
		ConfidenceTier:    string(confidence.TierHigh),
		Answer:            "Use the self-service portal.",
		Metadata:          map[string]interface{}{"temperature_used": 0.2},
	}
}

func TestService_RecordAndGetByID(t *testing.T) {
	s := newTestService(t, 100)

	logID, err := s.Record(testEntry("how do I reset my password?"))
	require.NoError(t, err)
	require.NotEmpty(t, logID)

	entry, err := s.GetByID(logID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "how do I reset my password?", entry.Question)
	assert.Equal(t, []string{"faq-1", "faq-2"}, entry.CandidateIDs)
	assert.Equal(t, []float64{0.12, 0.28}, entry.Distances)
	assert.Equal(t, FeedbackPending, entry.FeedbackStatus)
	assert.Nil(t, entry.FeedbackTimestamp)
}

func TestService_GetByIDUnknown(t *testing.T) {
	s := newTestService(t, 100)

	entry, err := s.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestService_RingBufferEviction(t *testing.T) {
	s := newTestService(t, 5)

	ids := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		id, err := s.Record(testEntry(fmt.Sprintf("question %d", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// The first entry is evicted, the rest survive in original order.
	entry, err := s.GetByID(ids[0])
	require.NoError(t, err)
	assert.Nil(t, entry)

	logs, err := s.ListRecent(100)
	require.NoError(t, err)
	require.Len(t, logs, 5)
	for i, log := range logs {
		assert.Equal(t, fmt.Sprintf("question %d", i+1), log.Question)
	}
}

func TestService_ListRecentLimit(t *testing.T) {
	s := newTestService(t, 100)

	for i := 0; i < 5; i++ {
		_, err := s.Record(testEntry(fmt.Sprintf("question %d", i)))
		require.NoError(t, err)
	}

	logs, err := s.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "question 3", logs[0].Question)
	assert.Equal(t, "question 4", logs[1].Question)
}

func TestService_RecordFeedbackCorrect(t *testing.T) {
	s := newTestService(t, 100)

	logID, err := s.Record(testEntry("q"))
	require.NoError(t, err)

	ok, err := s.RecordFeedback(logID, FeedbackCorrect, "")
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := s.GetByID(logID)
	require.NoError(t, err)
	assert.Equal(t, FeedbackCorrect, entry.FeedbackStatus)
	assert.NotNil(t, entry.FeedbackTimestamp)

	// Correct feedback never escalates.
	items, err := s.ListFeedbackQueue(StatusFilterAll)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestService_RecordFeedbackNegativeCreatesQueueItem(t *testing.T) {
	s := newTestService(t, 100)

	logID, err := s.Record(testEntry("vpn keeps dropping"))
	require.NoError(t, err)

	ok, err := s.RecordFeedback(logID, FeedbackIncorrect, "the steps did not work")
	require.NoError(t, err)
	assert.True(t, ok)

	items, err := s.ListFeedbackQueue(StatusPendingReview)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, logID, item.LogID)
	assert.Equal(t, FeedbackIncorrect, item.FeedbackType)
	assert.Equal(t, "the steps did not work", item.UserComment)
	assert.Equal(t, "vpn keeps dropping", item.OriginalQuery)
	assert.Contains(t, item.SuggestedActions, "High confidence but incorrect - review document relevance")
}

func TestService_RecordFeedbackUnknownLogID(t *testing.T) {
	s := newTestService(t, 100)

	ok, err := s.RecordFeedback("missing", FeedbackIncorrect, "")
	require.NoError(t, err)
	assert.False(t, ok)

	items, err := s.ListFeedbackQueue(StatusFilterAll)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestService_RecordFeedbackInvalidType(t *testing.T) {
	s := newTestService(t, 100)

	logID, err := s.Record(testEntry("q"))
	require.NoError(t, err)

	_, err = s.RecordFeedback(logID, "meh", "")
	assert.ErrorIs(t, err, ErrInvalidFeedbackType)

	entry, err := s.GetByID(logID)
	require.NoError(t, err)
	assert.Equal(t, FeedbackPending, entry.FeedbackStatus)
}

func TestService_RecordFeedbackLastWriteWins(t *testing.T) {
	s := newTestService(t, 100)

	logID, err := s.Record(testEntry("q"))
	require.NoError(t, err)

	_, err = s.RecordFeedback(logID, FeedbackIncorrect, "")
	require.NoError(t, err)
	_, err = s.RecordFeedback(logID, FeedbackCorrect, "")
	require.NoError(t, err)

	entry, err := s.GetByID(logID)
	require.NoError(t, err)
	assert.Equal(t, FeedbackCorrect, entry.FeedbackStatus)
}

func TestService_UpdateFeedbackQueueStatus(t *testing.T) {
	s := newTestService(t, 100)

	logID, err := s.Record(testEntry("q"))
	require.NoError(t, err)
	_, err = s.RecordFeedback(logID, FeedbackUnclear, "")
	require.NoError(t, err)

	items, err := s.ListFeedbackQueue(StatusPendingReview)
	require.NoError(t, err)
	require.Len(t, items, 1)

	ok, err := s.UpdateFeedbackQueueStatus(items[0].FeedbackID, StatusResolved, "added a new FAQ")
	require.NoError(t, err)
	assert.True(t, ok)

	resolved, err := s.ListFeedbackQueue(StatusResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "added a new FAQ", resolved[0].AdminNotes)
	assert.NotNil(t, resolved[0].UpdatedAt)

	// No transition graph: resolved can go back to pending_review.
	ok, err = s.UpdateFeedbackQueueStatus(items[0].FeedbackID, StatusPendingReview, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_UpdateFeedbackQueueStatusUnknownID(t *testing.T) {
	s := newTestService(t, 100)

	ok, err := s.UpdateFeedbackQueueStatus("missing", StatusReviewed, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_UpdateFeedbackQueueStatusInvalid(t *testing.T) {
	s := newTestService(t, 100)

	_, err := s.UpdateFeedbackQueueStatus("any", "archived", "")
	assert.ErrorIs(t, err, ErrInvalidQueueStatus)
}

func TestService_Analytics(t *testing.T) {
	s := newTestService(t, 100)

	high := testEntry("q1")
	id1, err := s.Record(high)
	require.NoError(t, err)

	low := testEntry("q2")
	low.ConfidenceTier = string(confidence.TierLow)
	low.TopDistance = 0.48
	_, err = s.Record(low)
	require.NoError(t, err)

	_, err = s.RecordFeedback(id1, FeedbackIncorrect, "")
	require.NoError(t, err)

	a, err := s.Analytics()
	require.NoError(t, err)

	assert.Equal(t, 2, a.TotalQueries)
	assert.Equal(t, 1, a.ConfidenceDistribution["high"])
	assert.Equal(t, 1, a.ConfidenceDistribution["low"])
	assert.Equal(t, 1, a.FeedbackDistribution[FeedbackIncorrect])
	assert.Equal(t, 1, a.FeedbackDistribution[FeedbackPending])
	assert.Equal(t, 1, a.PendingReviewCount)
	assert.InDelta(t, 1.0-(0.12+0.48)/2, a.AverageConfidenceScore, 1e-9)
}

func TestService_AnalyticsEmpty(t *testing.T) {
	s := newTestService(t, 100)

	a, err := s.Analytics()
	require.NoError(t, err)
	assert.Equal(t, 0, a.TotalQueries)
	assert.Equal(t, 0.0, a.AverageConfidenceScore)
	assert.Empty(t, a.ConfidenceDistribution)
}
