package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toanlq204/IT-helpdesk-bot/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())

	return c
}

func insertEntries(t *testing.T, c *Client, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("log-%d", i)
		err := c.InsertQueryLog(&models.QueryLogEntry{
			LogID:          id,
			Timestamp:      time.Now(),
			Question:       fmt.Sprintf("question %d", i),
			TopDistance:    0.15,
			ConfidenceTier: "high",
			Answer:         "answer",
			FeedbackStatus: "pending",
		}, 0)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestClient_ListRecentQueryLogs(t *testing.T) {
	c := newTestClient(t)
	insertEntries(t, c, 3)

	entries, err := c.ListRecentQueryLogs(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// The two newest entries, oldest of the pair first.
	assert.Equal(t, "question 1", entries[0].Question)
	assert.Equal(t, "question 2", entries[1].Question)
}

func TestClient_ListRecentQueryLogsFewerThanLimit(t *testing.T) {
	c := newTestClient(t)
	insertEntries(t, c, 2)

	entries, err := c.ListRecentQueryLogs(50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "question 0", entries[0].Question)
	assert.Equal(t, "question 1", entries[1].Question)
}

func TestClient_ListRecentQueryLogsEmpty(t *testing.T) {
	c := newTestClient(t)

	entries, err := c.ListRecentQueryLogs(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
