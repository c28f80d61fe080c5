package conversation

import (
	"time"

	"jan-server/services/session-api/internal/domain/completion"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/interfaces/httpserver/responses"
	"jan-server/services/session-api/internal/utils/functional"
)

type MessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	TokenCost int       `json:"token_cost"`
}

type ConversationResponse struct {
	ID           string            `json:"id"`
	Object       string            `json:"object"`
	Title        string            `json:"title"`
	Model        string            `json:"model"`
	Messages     []MessageResponse `json:"messages"`
	TotalTokens  int               `json:"total_tokens"`
	Archived     bool              `json:"archived"`
	Tags         []string          `json:"tags"`
	LastActivity time.Time         `json:"last_activity"`
	CreatedAt    time.Time         `json:"created_at"`
}

type ConversationSummaryResponse struct {
	ID           string    `json:"id"`
	Object       string    `json:"object"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	TotalTokens  int       `json:"total_tokens"`
	Archived     bool      `json:"archived"`
	Tags         []string  `json:"tags"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

type ConversationListResponse struct {
	Object     string                        `json:"object"`
	Data       []ConversationSummaryResponse `json:"data"`
	Total      int64                         `json:"total"`
	Page       int                           `json:"page"`
	Limit      int                           `json:"limit"`
	TotalPages int64                         `json:"total_pages"`
}

// SendMessageResponse carries the updated conversation and the assistant reply.
type SendMessageResponse struct {
	Conversation  *ConversationResponse `json:"conversation"`
	Reply         *MessageResponse      `json:"reply"`
	Usage         *completion.Usage     `json:"usage,omitempty"`
	FailureDetail string                `json:"-"`
}

// SendMessageErrorResponse is the 502 body: the error plus the conversation, which already holds
// the user turn and the degraded reply.
type SendMessageErrorResponse struct {
	responses.ErrorResponse
	Details      string                `json:"details,omitempty"`
	Conversation *ConversationResponse `json:"conversation"`
}

type DeleteConversationResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

func NewMessageResponse(turn conversation.Turn) MessageResponse {
	return MessageResponse{
		Role:      string(turn.Role),
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt,
		TokenCost: turn.TokenCost,
	}
}

func NewConversationResponse(conv *conversation.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:           conv.ID,
		Object:       "conversation",
		Title:        conv.Title,
		Model:        string(conv.ModelID),
		Messages:     functional.Map(conv.Turns, NewMessageResponse),
		TotalTokens:  conv.TotalTokens,
		Archived:     conv.Archived,
		Tags:         nonNil(conv.Tags),
		LastActivity: conv.LastActivity,
		CreatedAt:    conv.CreatedAt,
	}
}

func NewConversationSummaryResponse(s conversation.Summary) ConversationSummaryResponse {
	return ConversationSummaryResponse{
		ID:           s.ID,
		Object:       "conversation",
		Title:        s.Title,
		Model:        string(s.ModelID),
		MessageCount: s.TurnCount,
		TotalTokens:  s.TotalTokens,
		Archived:     s.Archived,
		Tags:         nonNil(s.Tags),
		LastActivity: s.LastActivity,
		CreatedAt:    s.CreatedAt,
	}
}

func NewConversationListResponse(page *conversation.Page) *ConversationListResponse {
	return &ConversationListResponse{
		Object:     "list",
		Data:       functional.Map(page.Items, NewConversationSummaryResponse),
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.PageSize,
		TotalPages: page.TotalPages(),
	}
}

// NewSendMessageResponse reports the last turn of conv as the reply.
func NewSendMessageResponse(conv *conversation.Conversation, usage *completion.Usage) *SendMessageResponse {
	resp := &SendMessageResponse{
		Conversation: NewConversationResponse(conv),
		Usage:        usage,
	}
	if n := len(conv.Turns); n > 0 {
		reply := NewMessageResponse(conv.Turns[n-1])
		resp.Reply = &reply
	}
	return resp
}

func NewDeleteConversationResponse(id string) *DeleteConversationResponse {
	return &DeleteConversationResponse{ID: id, Object: "conversation.deleted", Deleted: true}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
