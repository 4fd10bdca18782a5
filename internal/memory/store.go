package memory

import (
	"context"
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation. Immutable once appended.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Stats struct {
	Exists            bool      `json:"exists"`
	TotalMessages     int       `json:"total_messages"`
	UserMessages      int       `json:"user_messages"`
	AssistantMessages int       `json:"assistant_messages"`
	TurnCount         int       `json:"turn_count"`
	LastUpdated       time.Time `json:"last_updated,omitempty"`
}

// Store keeps bounded multi-turn conversation history. Read on an unknown
// conversation returns an empty slice, never an error. Clear is idempotent.
type Store interface {
	Append(ctx context.Context, conversationID, role, content string) error
	Read(ctx context.Context, conversationID string) ([]Turn, error)
	Clear(ctx context.Context, conversationID string) (bool, error)
	Stats(ctx context.Context, conversationID string) (Stats, error)
}

// trimTurns drops turns from the oldest end until both the turn-count cap
// (maxTurns user+assistant pairs) and the character budget hold. The retained
// set is always a contiguous suffix of the input.
func trimTurns(turns []Turn, maxTurns, maxContextChars int) []Turn {
	if maxTurns > 0 && len(turns) > maxTurns*2 {
		turns = turns[len(turns)-maxTurns*2:]
	}

	if maxContextChars > 0 {
		total := 0
		for _, t := range turns {
			total += len(t.Content)
		}
		for total > maxContextChars && len(turns) > 0 {
			total -= len(turns[0].Content)
			turns = turns[1:]
		}
	}

	return turns
}

func statsFor(turns []Turn) Stats {
	if len(turns) == 0 {
		return Stats{}
	}

	s := Stats{
		Exists:        true,
		TotalMessages: len(turns),
		TurnCount:     len(turns) / 2,
		LastUpdated:   turns[len(turns)-1].Timestamp,
	}
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			s.UserMessages++
		case RoleAssistant:
			s.AssistantMessages++
		}
	}
	return s
}

// keyedMutex serializes read-modify-write cycles per conversation so that
// concurrent appends to the same id cannot lose updates. Entries are
// refcounted and removed once the last holder releases, so the map does not
// grow with the number of conversation ids ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// lock blocks until the key is held and returns the release func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
