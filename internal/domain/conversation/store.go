package conversation

import (
	"context"
	"time"
)

// ===============================================
// Session Store
// ===============================================

// Summary is the list view of a conversation. It never carries turn bodies.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ModelID      ModelID   `json:"model"`
	Archived     bool      `json:"archived"`
	Tags         []string  `json:"tags"`
	TurnCount    int       `json:"message_count"`
	TotalTokens  int       `json:"total_tokens"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summarize builds the list view of c.
func Summarize(c *Conversation) Summary {
	return Summary{
		ID:           c.ID,
		Title:        c.Title,
		ModelID:      c.ModelID,
		Archived:     c.Archived,
		Tags:         append([]string{}, c.Tags...),
		TurnCount:    len(c.Turns),
		TotalTokens:  c.TotalTokens,
		LastActivity: c.LastActivity,
		CreatedAt:    c.CreatedAt,
	}
}

type Filter struct {
	OwnerID  string
	Archived bool
	Tag      *string
}

type Stats struct {
	Active   int64
	Archived int64
}

// Store is the durable owner of conversation records. Implementations report missing or foreign
// records as NOT_FOUND and persistence failures as DATABASE_ERROR platform errors.
type Store interface {
	Get(ctx context.Context, id, ownerID string) (*Conversation, error)
	// Put commits the whole record atomically, inserting it when absent.
	Put(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, id, ownerID string) error
	// Query returns one page ordered by last activity, newest first, ties by id ascending.
	Query(ctx context.Context, filter Filter, page, pageSize int) ([]Summary, int64, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

// Locker serializes mutations of a single conversation id.
type Locker interface {
	// Lock blocks until key is held or ctx ends. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}
