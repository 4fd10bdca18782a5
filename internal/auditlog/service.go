package auditlog

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/confidence"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/models"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/sqlite"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

const (
	FeedbackPending          = "pending"
	FeedbackCorrect          = "correct"
	FeedbackIncorrect        = "incorrect"
	FeedbackPartiallyCorrect = "partially_correct"
	FeedbackUnclear          = "unclear"

	StatusPendingReview = "pending_review"
	StatusReviewed      = "reviewed"
	StatusResolved      = "resolved"

	StatusFilterAll = "all"
)

var (
	ErrInvalidFeedbackType = errors.New("invalid feedback type")
	ErrInvalidQueueStatus  = errors.New("invalid queue status")
)

func validFeedbackType(feedbackType string) bool {
	switch feedbackType {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackPartiallyCorrect, FeedbackUnclear:
		return true
	}
	return false
}

func validQueueStatus(status string) bool {
	switch status {
	case StatusPendingReview, StatusReviewed, StatusResolved:
		return true
	}
	return false
}

// Service is the query audit trail: an append-only ring buffer of answered
// queries plus the escalation queue fed by negative feedback.
type Service struct {
	db         *sqlite.Client
	maxEntries int

	// Serializes record-plus-evict and feedback mutations. Reads go
	// straight to sqlite and tolerate racing with an append.
	mu sync.Mutex
}

func NewService(db *sqlite.Client, maxEntries int) *Service {
	return &Service{
		db:         db,
		maxEntries: maxEntries,
	}
}

// Record assigns a fresh log id, appends the entry and evicts the oldest
// entry beyond the cap. The returned id correlates later feedback.
func (s *Service) Record(entry *models.QueryLogEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.LogID = uuid.New().String()
	entry.Timestamp = time.Now()
	entry.FeedbackStatus = FeedbackPending

	if err := s.db.InsertQueryLog(entry, s.maxEntries); err != nil {
		return "", err
	}

	logger.Info("Query recorded",
		zap.String("log_id", entry.LogID),
		zap.String("confidence_tier", entry.ConfidenceTier),
		zap.Float64("top_distance", entry.TopDistance),
	)

	return entry.LogID, nil
}

func (s *Service) GetByID(logID string) (*models.QueryLogEntry, error) {
	return s.db.GetQueryLog(logID)
}

func (s *Service) ListRecent(limit int) ([]models.QueryLogEntry, error) {
	return s.db.ListRecentQueryLogs(limit)
}

// RecordFeedback sets the feedback status on the matching entry (last write
// wins) and, for any non-correct type, queues exactly one item for admin
// review. Returns false without error when the log id is unknown.
func (s *Service) RecordFeedback(logID, feedbackType, userComment string) (bool, error) {
	if !validFeedbackType(feedbackType) {
		return false, ErrInvalidFeedbackType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.db.GetQueryLog(logID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		logger.Warn("Feedback for unknown log id", zap.String("log_id", logID))
		return false, nil
	}

	updated, err := s.db.UpdateQueryLogFeedback(logID, feedbackType, time.Now())
	if err != nil || !updated {
		return updated, err
	}

	if feedbackType != FeedbackCorrect {
		tier := confidence.Tier(entry.ConfidenceTier)
		item := &models.FeedbackQueueItem{
			FeedbackID:       uuid.New().String(),
			LogID:            logID,
			Timestamp:        time.Now(),
			FeedbackType:     feedbackType,
			UserComment:      userComment,
			Status:           StatusPendingReview,
			OriginalQuery:    entry.Question,
			OriginalAnswer:   entry.Answer,
			ConfidenceTier:   entry.ConfidenceTier,
			SuggestedActions: suggestActions(feedbackType, tier, entry.TopDistance),
		}
		if err := s.db.InsertFeedbackItem(item); err != nil {
			return false, err
		}
	}

	logger.Info("Feedback recorded",
		zap.String("log_id", logID),
		zap.String("feedback_type", feedbackType),
	)

	return true, nil
}

func (s *Service) ListFeedbackQueue(status string) ([]models.FeedbackQueueItem, error) {
	if status == StatusFilterAll {
		return s.db.ListFeedbackItems("")
	}
	if !validQueueStatus(status) {
		return nil, ErrInvalidQueueStatus
	}
	return s.db.ListFeedbackItems(status)
}

// UpdateFeedbackQueueStatus is permissive about transitions: any valid
// status can follow any other.
func (s *Service) UpdateFeedbackQueueStatus(feedbackID, status, adminNotes string) (bool, error) {
	if !validQueueStatus(status) {
		return false, ErrInvalidQueueStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.UpdateFeedbackItem(feedbackID, status, adminNotes, time.Now())
}

// Analytics scans the current log. A scan racing an append may or may not
// observe it; that is acceptable at this scale.
func (s *Service) Analytics() (*models.Analytics, error) {
	total, err := s.db.CountQueryLogs()
	if err != nil {
		return nil, err
	}

	tierCounts, err := s.db.ConfidenceTierCounts()
	if err != nil {
		return nil, err
	}

	feedbackCounts, err := s.db.FeedbackStatusCounts()
	if err != nil {
		return nil, err
	}

	pending, err := s.db.CountFeedbackItems(StatusPendingReview)
	if err != nil {
		return nil, err
	}

	avgConfidence := 0.0
	if total > 0 {
		avgDistance, err := s.db.AverageTopDistance()
		if err != nil {
			return nil, err
		}
		avgConfidence = 1.0 - avgDistance
	}

	return &models.Analytics{
		TotalQueries:           total,
		ConfidenceDistribution: tierCounts,
		FeedbackDistribution:   feedbackCounts,
		PendingReviewCount:     pending,
		AverageConfidenceScore: avgConfidence,
	}, nil
}
