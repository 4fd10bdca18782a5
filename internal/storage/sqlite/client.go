package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/storage"
	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/models"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_logs (
		log_id TEXT PRIMARY KEY,
		conversation_id TEXT,
		question TEXT NOT NULL,
		candidate_ids TEXT,
		candidate_titles TEXT,
		candidate_tags TEXT,
		candidate_previews TEXT,
		distances TEXT,
		top_distance REAL NOT NULL,
		confidence_tier TEXT NOT NULL,
		answer TEXT,
		feedback_status TEXT NOT NULL DEFAULT 'pending',
		feedback_timestamp INTEGER,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_logs_created ON query_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_query_logs_conversation ON query_logs(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_query_logs_tier ON query_logs(confidence_tier);

	CREATE TABLE IF NOT EXISTS feedback_queue (
		feedback_id TEXT PRIMARY KEY,
		log_id TEXT NOT NULL,
		feedback_type TEXT NOT NULL,
		user_comment TEXT,
		status TEXT NOT NULL DEFAULT 'pending_review',
		admin_notes TEXT,
		original_query TEXT,
		original_answer TEXT,
		confidence_tier TEXT,
		suggested_actions TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_queue_log ON feedback_queue(log_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_queue_status ON feedback_queue(status);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %v", storage.ErrUnavailable, err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertQueryLog appends an entry and evicts the oldest rows beyond
// maxEntries in the same transaction. Only the oldest end is ever trimmed.
func (c *Client) InsertQueryLog(entry *models.QueryLogEntry, maxEntries int) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", storage.ErrUnavailable, err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO query_logs (log_id, conversation_id, question, candidate_ids, candidate_titles,
			candidate_tags, candidate_previews, distances, top_distance, confidence_tier, answer,
			feedback_status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(
		query,
		entry.LogID,
		entry.ConversationID,
		entry.Question,
		marshalJSON(entry.CandidateIDs),
		marshalJSON(entry.CandidateTitles),
		marshalJSON(entry.CandidateTags),
		marshalJSON(entry.CandidatePreviews),
		marshalJSON(entry.Distances),
		entry.TopDistance,
		entry.ConfidenceTier,
		entry.Answer,
		entry.FeedbackStatus,
		marshalJSON(entry.Metadata),
		entry.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert query log: %v", storage.ErrUnavailable, err)
	}

	if maxEntries > 0 {
		_, err = tx.Exec(
			`DELETE FROM query_logs WHERE rowid NOT IN (SELECT rowid FROM query_logs ORDER BY rowid DESC LIMIT ?)`,
			maxEntries,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to evict old query logs: %v", storage.ErrUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit query log: %v", storage.ErrUnavailable, err)
	}

	logger.Debug("Query log recorded", zap.String("log_id", entry.LogID))
	return nil
}

const queryLogColumns = `log_id, conversation_id, question, candidate_ids, candidate_titles,
	candidate_tags, candidate_previews, distances, top_distance, confidence_tier, answer,
	feedback_status, feedback_timestamp, metadata, created_at`

// GetQueryLog returns nil without error when the id is unknown.
func (c *Client) GetQueryLog(logID string) (*models.QueryLogEntry, error) {
	row := c.db.QueryRow(`SELECT `+queryLogColumns+` FROM query_logs WHERE log_id = ?`, logID)

	entry, err := scanQueryLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get query log: %v", storage.ErrUnavailable, err)
	}

	return entry, nil
}

// ListRecentQueryLogs returns up to limit entries, oldest first. The rowid
// is aliased into the inner select because a derived table has none of its
// own to order by.
func (c *Client) ListRecentQueryLogs(limit int) ([]models.QueryLogEntry, error) {
	rows, err := c.db.Query(
		`SELECT `+queryLogColumns+` FROM
			(SELECT rowid AS rid, `+queryLogColumns+` FROM query_logs ORDER BY rid DESC LIMIT ?)
		ORDER BY rid`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list query logs: %v", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []models.QueryLogEntry
	for rows.Next() {
		entry, err := scanQueryLog(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan query log: %v", storage.ErrUnavailable, err)
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// UpdateQueryLogFeedback overwrites any prior feedback (last write wins).
// Returns false when the log id is unknown.
func (c *Client) UpdateQueryLogFeedback(logID, feedbackStatus string, at time.Time) (bool, error) {
	res, err := c.db.Exec(
		`UPDATE query_logs SET feedback_status = ?, feedback_timestamp = ? WHERE log_id = ?`,
		feedbackStatus, at.Unix(), logID,
	)
	if err != nil {
		return false, fmt.Errorf("%w: failed to update feedback: %v", storage.ErrUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to read update result: %v", storage.ErrUnavailable, err)
	}

	return affected > 0, nil
}

func (c *Client) CountQueryLogs() (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM query_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count query logs: %v", storage.ErrUnavailable, err)
	}
	return count, nil
}

func (c *Client) InsertFeedbackItem(item *models.FeedbackQueueItem) error {
	query := `
		INSERT INTO feedback_queue (feedback_id, log_id, feedback_type, user_comment, status,
			admin_notes, original_query, original_answer, confidence_tier, suggested_actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		item.FeedbackID,
		item.LogID,
		item.FeedbackType,
		item.UserComment,
		item.Status,
		item.AdminNotes,
		item.OriginalQuery,
		item.OriginalAnswer,
		item.ConfidenceTier,
		marshalJSON(item.SuggestedActions),
		item.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert feedback item: %v", storage.ErrUnavailable, err)
	}

	logger.Info("Feedback queued for review",
		zap.String("feedback_id", item.FeedbackID),
		zap.String("log_id", item.LogID),
		zap.String("feedback_type", item.FeedbackType),
	)
	return nil
}

// ListFeedbackItems filters by status; the empty string returns everything.
func (c *Client) ListFeedbackItems(status string) ([]models.FeedbackQueueItem, error) {
	query := `SELECT feedback_id, log_id, feedback_type, user_comment, status, admin_notes,
		original_query, original_answer, confidence_tier, suggested_actions, created_at, updated_at
		FROM feedback_queue`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY rowid`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list feedback items: %v", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	var items []models.FeedbackQueueItem
	for rows.Next() {
		var item models.FeedbackQueueItem
		var comment, notes, origQuery, origAnswer, tier, actionsJSON sql.NullString
		var createdAt int64
		var updatedAt sql.NullInt64

		err := rows.Scan(&item.FeedbackID, &item.LogID, &item.FeedbackType, &comment, &item.Status,
			&notes, &origQuery, &origAnswer, &tier, &actionsJSON, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan feedback item: %v", storage.ErrUnavailable, err)
		}

		item.UserComment = comment.String
		item.AdminNotes = notes.String
		item.OriginalQuery = origQuery.String
		item.OriginalAnswer = origAnswer.String
		item.ConfidenceTier = tier.String
		unmarshalJSON(actionsJSON.String, &item.SuggestedActions)
		item.Timestamp = time.Unix(createdAt, 0)
		if updatedAt.Valid {
			t := time.Unix(updatedAt.Int64, 0)
			item.UpdatedAt = &t
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateFeedbackItem sets status and notes unconditionally; there is no
// transition graph. Returns false when the feedback id is unknown.
func (c *Client) UpdateFeedbackItem(feedbackID, status, adminNotes string, at time.Time) (bool, error) {
	res, err := c.db.Exec(
		`UPDATE feedback_queue SET status = ?, admin_notes = ?, updated_at = ? WHERE feedback_id = ?`,
		status, adminNotes, at.Unix(), feedbackID,
	)
	if err != nil {
		return false, fmt.Errorf("%w: failed to update feedback item: %v", storage.ErrUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to read update result: %v", storage.ErrUnavailable, err)
	}

	return affected > 0, nil
}

func (c *Client) CountFeedbackItems(status string) (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM feedback_queue WHERE status = ?`, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count feedback items: %v", storage.ErrUnavailable, err)
	}
	return count, nil
}

func (c *Client) ConfidenceTierCounts() (map[string]int, error) {
	return c.groupCounts(`SELECT confidence_tier, COUNT(*) FROM query_logs GROUP BY confidence_tier`)
}

func (c *Client) FeedbackStatusCounts() (map[string]int, error) {
	return c.groupCounts(`SELECT feedback_status, COUNT(*) FROM query_logs GROUP BY feedback_status`)
}

func (c *Client) AverageTopDistance() (float64, error) {
	var avg sql.NullFloat64
	if err := c.db.QueryRow(`SELECT AVG(top_distance) FROM query_logs`).Scan(&avg); err != nil {
		return 0, fmt.Errorf("%w: failed to average top distance: %v", storage.ErrUnavailable, err)
	}
	return avg.Float64, nil
}

func (c *Client) groupCounts(query string) (map[string]int, error) {
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to aggregate query logs: %v", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("%w: failed to scan aggregate row: %v", storage.ErrUnavailable, err)
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueryLog(row rowScanner) (*models.QueryLogEntry, error) {
	var entry models.QueryLogEntry
	var conversationID, idsJSON, titlesJSON, tagsJSON, previewsJSON, distancesJSON, answer, metadataJSON sql.NullString
	var feedbackTS sql.NullInt64
	var createdAt int64

	err := row.Scan(&entry.LogID, &conversationID, &entry.Question, &idsJSON, &titlesJSON,
		&tagsJSON, &previewsJSON, &distancesJSON, &entry.TopDistance, &entry.ConfidenceTier,
		&answer, &entry.FeedbackStatus, &feedbackTS, &metadataJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	entry.ConversationID = conversationID.String
	entry.Answer = answer.String
	unmarshalJSON(idsJSON.String, &entry.CandidateIDs)
	unmarshalJSON(titlesJSON.String, &entry.CandidateTitles)
	unmarshalJSON(tagsJSON.String, &entry.CandidateTags)
	unmarshalJSON(previewsJSON.String, &entry.CandidatePreviews)
	unmarshalJSON(distancesJSON.String, &entry.Distances)
	unmarshalJSON(metadataJSON.String, &entry.Metadata)
	entry.Timestamp = time.Unix(createdAt, 0)
	if feedbackTS.Valid {
		t := time.Unix(feedbackTS.Int64, 0)
		entry.FeedbackTimestamp = &t
	}

	return &entry, nil
}

func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func unmarshalJSON(data string, v interface{}) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), v)
}
