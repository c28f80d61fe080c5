package dbschema

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/utils/functional"
)

// Conversation is the session_api.conversations row. Turns live in their own table.
type Conversation struct {
	ID           string         `gorm:"type:varchar(64);primaryKey"`
	OwnerID      string         `gorm:"type:varchar(128);not null;index:idx_conversations_owner_archived_activity,priority:1"`
	Title        string         `gorm:"type:varchar(100);not null"`
	TitleLocked  bool           `gorm:"not null;default:false"`
	ModelID      string         `gorm:"type:varchar(32);not null"`
	TotalTokens  int64          `gorm:"not null;default:0"`
	TurnCount    int            `gorm:"not null;default:0"`
	Archived     bool           `gorm:"not null;default:false;index:idx_conversations_owner_archived_activity,priority:2"`
	Tags         datatypes.JSON `gorm:"type:jsonb;not null"`
	LastActivity time.Time      `gorm:"not null;index:idx_conversations_owner_archived_activity,priority:3,sort:desc"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`

	Turns []ConversationTurn `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// ConversationTurn is one row of session_api.conversation_turns.
type ConversationTurn struct {
	ConversationID string    `gorm:"type:varchar(64);primaryKey"`
	Seq            int       `gorm:"primaryKey"`
	Role           string    `gorm:"type:varchar(16);not null"`
	Content        string    `gorm:"type:text;not null"`
	TokenCost      int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
}

// NewSchemaConversation maps the domain record to its row, turns included.
func NewSchemaConversation(c *conversation.Conversation) (*Conversation, error) {
	tags, err := EncodeTags(c.Tags)
	if err != nil {
		return nil, err
	}
	return &Conversation{
		ID:           c.ID,
		OwnerID:      c.OwnerID,
		Title:        c.Title,
		TitleLocked:  c.TitleLocked,
		ModelID:      string(c.ModelID),
		TotalTokens:  int64(c.TotalTokens),
		TurnCount:    len(c.Turns),
		Archived:     c.Archived,
		Tags:         tags,
		LastActivity: c.LastActivity,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.LastActivity,
		Turns:        NewSchemaTurns(c.ID, c.Turns, 0),
	}, nil
}

// NewSchemaTurns maps turns to rows numbered from firstSeq.
func NewSchemaTurns(conversationID string, turns []conversation.Turn, firstSeq int) []ConversationTurn {
	rows := make([]ConversationTurn, len(turns))
	for i, t := range turns {
		rows[i] = ConversationTurn{
			ConversationID: conversationID,
			Seq:            firstSeq + i,
			Role:           string(t.Role),
			Content:        t.Content,
			TokenCost:      t.TokenCost,
			CreatedAt:      t.CreatedAt,
		}
	}
	return rows
}

// EtoD maps the row back to the domain. Turns must already be ordered by Seq.
func (c *Conversation) EtoD() (*conversation.Conversation, error) {
	tags, err := DecodeTags(c.Tags)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", c.ID, err)
	}
	turns := functional.Map(c.Turns, func(t ConversationTurn) conversation.Turn {
		return conversation.Turn{
			Role:      conversation.Role(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt.UTC(),
			TokenCost: t.TokenCost,
		}
	})
	return &conversation.Conversation{
		ID:           c.ID,
		OwnerID:      c.OwnerID,
		Title:        c.Title,
		TitleLocked:  c.TitleLocked,
		ModelID:      conversation.ModelID(c.ModelID),
		Turns:        turns,
		TotalTokens:  int(c.TotalTokens),
		Archived:     c.Archived,
		Tags:         tags,
		LastActivity: c.LastActivity.UTC(),
		CreatedAt:    c.CreatedAt.UTC(),
	}, nil
}

// Summary maps the row to the list view without touching turns.
func (c *Conversation) Summary() (conversation.Summary, error) {
	tags, err := DecodeTags(c.Tags)
	if err != nil {
		return conversation.Summary{}, fmt.Errorf("conversation %s: %w", c.ID, err)
	}
	return conversation.Summary{
		ID:           c.ID,
		Title:        c.Title,
		ModelID:      conversation.ModelID(c.ModelID),
		Archived:     c.Archived,
		Tags:         tags,
		TurnCount:    c.TurnCount,
		TotalTokens:  int(c.TotalTokens),
		LastActivity: c.LastActivity.UTC(),
		CreatedAt:    c.CreatedAt.UTC(),
	}, nil
}

func EncodeTags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func DecodeTags(raw datatypes.JSON) ([]string, error) {
	tags := []string{}
	if len(raw) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}
