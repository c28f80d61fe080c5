package conversation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"jan-server/services/session-api/internal/utils/functional"
	"jan-server/services/session-api/internal/utils/stringutils"
)

// ===============================================
// Limits
// ===============================================

const (
	DefaultTitle       = "New Chat"
	MaxTitleLength     = 100
	DerivedTitleLength = 50
	MaxContentLength   = 10000
	DefaultWindowSize  = 10
	MaxTags            = 10
	MaxTagLength       = 32
)

// ErrValidation is wrapped by every input-shape failure produced by this package.
var ErrValidation = errors.New("validation failed")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ===============================================
// Roles and Models
// ===============================================

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ModelID identifies one of the supported completion model tiers.
type ModelID string

const (
	ModelGPT35Turbo ModelID = "gpt-3.5-turbo"
	ModelGPT4       ModelID = "gpt-4"
	ModelGPT4Turbo  ModelID = "gpt-4-turbo"
)

// DefaultModel is used when neither the request nor the configuration names a model.
const DefaultModel = ModelGPT35Turbo

var supportedModels = []ModelID{ModelGPT35Turbo, ModelGPT4, ModelGPT4Turbo}

// SupportedModels returns the closed model enumeration in a fresh slice.
func SupportedModels() []ModelID {
	return slices.Clone(supportedModels)
}

// ParseModelID validates raw against the supported models.
func ParseModelID(raw string) (ModelID, error) {
	id := ModelID(strings.TrimSpace(raw))
	if !slices.Contains(supportedModels, id) {
		return "", invalidf("unsupported model %q", raw)
	}
	return id, nil
}

// ===============================================
// Turn and Conversation
// ===============================================

type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	TokenCost int       `json:"token_cost"`
}

type Conversation struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"-"`
	Title        string    `json:"title"`
	TitleLocked  bool      `json:"-"`
	ModelID      ModelID   `json:"model"`
	Turns        []Turn    `json:"messages"`
	TotalTokens  int       `json:"total_tokens"`
	Archived     bool      `json:"archived"`
	Tags         []string  `json:"tags"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

// New returns an empty conversation with the default title.
func New(id, ownerID string, model ModelID, now time.Time) *Conversation {
	return &Conversation{
		ID:           id,
		OwnerID:      ownerID,
		Title:        DefaultTitle,
		ModelID:      model,
		Turns:        []Turn{},
		Tags:         []string{},
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Clone returns a deep copy so a working handle never aliases a stored record.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Turns = slices.Clone(c.Turns)
	out.Tags = slices.Clone(c.Tags)
	if out.Turns == nil {
		out.Turns = []Turn{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return &out
}

// ===============================================
// Message Log
// ===============================================

// Append adds a turn at the end of the log and updates the token total, the activity timestamp
// and, for the first user turn of an untitled conversation, the title.
func (c *Conversation) Append(role Role, content string, tokenCost int, now time.Time) (Turn, error) {
	if !role.Valid() {
		return Turn{}, invalidf("unknown role %q", role)
	}
	if content == "" {
		return Turn{}, invalidf("content is required")
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return Turn{}, invalidf("content is %d characters, limit is %d", n, MaxContentLength)
	}
	if tokenCost < 0 {
		return Turn{}, invalidf("token cost must not be negative")
	}

	if last := len(c.Turns); last > 0 && now.Before(c.Turns[last-1].CreatedAt) {
		now = c.Turns[last-1].CreatedAt
	}

	turn := Turn{Role: role, Content: content, CreatedAt: now, TokenCost: tokenCost}
	first := len(c.Turns) == 0
	c.Turns = append(c.Turns, turn)
	c.TotalTokens += tokenCost
	c.touch(now)

	if first && role == RoleUser && !c.TitleLocked && c.Title == DefaultTitle {
		c.Title = stringutils.DeriveTitle(content, DerivedTitleLength)
		c.TitleLocked = true
	}
	return turn, nil
}

// RecentWindow returns the last limit turns, oldest first.
func (c *Conversation) RecentWindow(limit int) ([]Turn, error) {
	if limit < 1 {
		return nil, invalidf("window limit must be at least 1, got %d", limit)
	}
	start := len(c.Turns) - limit
	if start < 0 {
		start = 0
	}
	return slices.Clone(c.Turns[start:]), nil
}

// Rename replaces the title unconditionally. The title is never derived afterwards.
func (c *Conversation) Rename(title string, now time.Time) error {
	normalized, err := NormalizeTitle(title)
	if err != nil {
		return err
	}
	c.Title = normalized
	c.TitleLocked = true
	c.touch(now)
	return nil
}

func (c *Conversation) SetArchived(archived bool, now time.Time) {
	c.Archived = archived
	c.touch(now)
}

func (c *Conversation) SetTags(tags []string, now time.Time) error {
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return err
	}
	c.Tags = normalized
	c.touch(now)
	return nil
}

// TurnTokenSum recomputes the token total from the turns.
func (c *Conversation) TurnTokenSum() int {
	return functional.Reduce(c.Turns, 0, func(acc int, t Turn) int { return acc + t.TokenCost })
}

// CheckTokenTotal reports a corrupted record whose running total drifted from its turns.
func (c *Conversation) CheckTokenTotal() error {
	if sum := c.TurnTokenSum(); sum != c.TotalTokens {
		return fmt.Errorf("conversation %s: total_tokens %d does not match turn sum %d", c.ID, c.TotalTokens, sum)
	}
	return nil
}

func (c *Conversation) touch(now time.Time) {
	if now.After(c.LastActivity) {
		c.LastActivity = now
	}
}

// ===============================================
// Field Normalization
// ===============================================

// NormalizeTitle trims title and checks its length.
func NormalizeTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", invalidf("title is required")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxTitleLength {
		return "", invalidf("title is %d characters, limit is %d", n, MaxTitleLength)
	}
	return trimmed, nil
}

// NormalizeTags canonicalizes tags and enforces the tag limits.
func NormalizeTags(tags []string) ([]string, error) {
	normalized := stringutils.NormalizeTags(tags)
	if len(normalized) > MaxTags {
		return nil, invalidf("at most %d tags are allowed", MaxTags)
	}
	if functional.Any(normalized, func(tag string) bool { return utf8.RuneCountInString(tag) > MaxTagLength }) {
		return nil, invalidf("tags must be at most %d characters", MaxTagLength)
	}
	return normalized, nil
}
