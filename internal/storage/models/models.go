package models

import "time"

// QueryLogEntry is the append-only audit record of one answered query.
// FeedbackStatus and FeedbackTimestamp are the only mutable fields.
type QueryLogEntry struct {
	LogID             string                 `json:"log_id"`
	Timestamp         time.Time              `json:"timestamp"`
	ConversationID    string                 `json:"conversation_id,omitempty"`
	Question          string                 `json:"question"`
	CandidateIDs      []string               `json:"candidate_ids"`
	CandidateTitles   []string               `json:"candidate_titles"`
	CandidateTags     []string               `json:"candidate_tags"`
	CandidatePreviews []string               `json:"candidate_previews"`
	Distances         []float64              `json:"distances"`
	TopDistance       float64                `json:"top_distance"`
	ConfidenceTier    string                 `json:"confidence_tier"`
	Answer            string                 `json:"answer"`
	FeedbackStatus    string                 `json:"feedback_status"`
	FeedbackTimestamp *time.Time             `json:"feedback_timestamp,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// FeedbackQueueItem is one escalation created by negative feedback. It
// references a QueryLogEntry by LogID but is not owned by it: the item
// survives ring-buffer eviction of the log.
type FeedbackQueueItem struct {
	FeedbackID       string     `json:"feedback_id"`
	LogID            string     `json:"log_id"`
	Timestamp        time.Time  `json:"timestamp"`
	FeedbackType     string     `json:"feedback_type"`
	UserComment      string     `json:"user_comment,omitempty"`
	Status           string     `json:"status"`
	AdminNotes       string     `json:"admin_notes,omitempty"`
	OriginalQuery    string     `json:"original_query"`
	OriginalAnswer   string     `json:"original_answer"`
	ConfidenceTier   string     `json:"confidence_tier"`
	SuggestedActions []string   `json:"suggested_actions"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

type Analytics struct {
	TotalQueries           int            `json:"total_queries"`
	ConfidenceDistribution map[string]int `json:"confidence_distribution"`
	FeedbackDistribution   map[string]int `json:"feedback_distribution"`
	PendingReviewCount     int            `json:"pending_feedback_reviews"`
	AverageConfidenceScore float64        `json:"average_confidence_score"`
}
