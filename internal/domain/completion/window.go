package completion

import (
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/utils/functional"
)

// SelectWindow returns the most recent size turns of conv as provider messages, oldest first,
// with role and content copied verbatim.
func SelectWindow(conv *conversation.Conversation, size int) ([]Message, error) {
	if size < 1 {
		size = conversation.DefaultWindowSize
	}
	turns, err := conv.RecentWindow(size)
	if err != nil {
		return nil, err
	}
	return functional.Map(turns, func(t conversation.Turn) Message {
		return Message{Role: t.Role, Content: t.Content}
	}), nil
}
