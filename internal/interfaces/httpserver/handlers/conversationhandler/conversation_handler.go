package conversationhandler

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"jan-server/services/session-api/internal/domain/completion"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/metrics"
	"jan-server/services/session-api/internal/infrastructure/observability"
	conversationrequests "jan-server/services/session-api/internal/interfaces/httpserver/requests/conversation"
	conversationresponses "jan-server/services/session-api/internal/interfaces/httpserver/responses/conversation"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

const tracerName = "session-api"

// ConversationHandler adapts HTTP request DTOs to the conversation and completion services.
type ConversationHandler struct {
	conversationService *conversation.ConversationService
	orchestrator        *completion.Orchestrator
}

func NewConversationHandler(
	conversationService *conversation.ConversationService,
	orchestrator *completion.Orchestrator,
) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		orchestrator:        orchestrator,
	}
}

func (h *ConversationHandler) CreateConversation(
	ctx context.Context,
	ownerID string,
	req conversationrequests.CreateConversationRequest,
) (*conversationresponses.ConversationResponse, error) {
	conv, err := h.conversationService.Create(ctx, conversation.CreateInput{
		OwnerID: ownerID,
		Title:   req.Title,
		Model:   req.Model,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to create conversation")
	}
	metrics.RecordConversationCreated()
	return conversationresponses.NewConversationResponse(conv), nil
}

func (h *ConversationHandler) GetConversation(ctx context.Context, ownerID, conversationID string) (*conversationresponses.ConversationResponse, error) {
	conv, err := h.conversationService.Get(ctx, ownerID, conversationID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}
	return conversationresponses.NewConversationResponse(conv), nil
}

func (h *ConversationHandler) ListConversations(
	ctx context.Context,
	ownerID string,
	params conversationrequests.ListConversationsQueryParams,
) (*conversationresponses.ConversationListResponse, error) {
	page, err := h.conversationService.List(ctx, conversation.ListParams{
		OwnerID:  ownerID,
		Archived: params.Archived,
		Tag:      params.Tag,
		Page:     params.Page,
		PageSize: params.Limit,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list conversations")
	}
	return conversationresponses.NewConversationListResponse(page), nil
}

// SendMessage runs one completion round. On provider failure the returned response is non-nil
// and holds the conversation with its degraded reply.
func (h *ConversationHandler) SendMessage(
	ctx context.Context,
	ownerID string,
	conversationID string,
	req conversationrequests.SendMessageRequest,
) (*conversationresponses.SendMessageResponse, error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "ConversationHandler.SendMessage")
	defer span.End()
	observability.AddSpanAttributes(ctx, attribute.String("conversation.id", conversationID))

	result, err := h.orchestrator.Send(ctx, completion.SendRequest{
		OwnerID:        ownerID,
		ConversationID: conversationID,
		Message:        req.Message,
		Model:          req.Model,
	})
	if err != nil {
		observability.RecordError(ctx, err)
		var resp *conversationresponses.SendMessageResponse
		if result != nil && result.Conversation != nil && platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal) {
			metrics.RecordMessage("degraded")
			resp = conversationresponses.NewSendMessageResponse(result.Conversation, nil)
			resp.FailureDetail = result.FailureDetail
		} else {
			metrics.RecordMessage("rejected")
		}
		return resp, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to send message")
	}

	metrics.RecordMessage("assistant")
	if result.Usage != nil {
		observability.AddSpanAttributes(ctx, attribute.Int("llm.tokens", result.Usage.Tokens))
	}
	return conversationresponses.NewSendMessageResponse(result.Conversation, result.Usage), nil
}

func (h *ConversationHandler) RenameConversation(
	ctx context.Context,
	ownerID, conversationID string,
	req conversationrequests.RenameConversationRequest,
) (*conversationresponses.ConversationResponse, error) {
	conv, err := h.conversationService.Rename(ctx, ownerID, conversationID, req.Title)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to rename conversation")
	}
	return conversationresponses.NewConversationResponse(conv), nil
}

func (h *ConversationHandler) ArchiveConversation(
	ctx context.Context,
	ownerID, conversationID string,
	req conversationrequests.ArchiveConversationRequest,
) (*conversationresponses.ConversationResponse, error) {
	conv, err := h.conversationService.SetArchived(ctx, ownerID, conversationID, req.Value())
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to archive conversation")
	}
	return conversationresponses.NewConversationResponse(conv), nil
}

func (h *ConversationHandler) SetTags(
	ctx context.Context,
	ownerID, conversationID string,
	req conversationrequests.SetTagsRequest,
) (*conversationresponses.ConversationResponse, error) {
	conv, err := h.conversationService.SetTags(ctx, ownerID, conversationID, req.Tags)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to update tags")
	}
	return conversationresponses.NewConversationResponse(conv), nil
}

func (h *ConversationHandler) DeleteConversation(ctx context.Context, ownerID, conversationID string) (*conversationresponses.DeleteConversationResponse, error) {
	if err := h.conversationService.Delete(ctx, ownerID, conversationID); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to delete conversation")
	}
	return conversationresponses.NewDeleteConversationResponse(conversationID), nil
}

// IsDegraded reports whether err came with a committed degraded reply.
func IsDegraded(resp *conversationresponses.SendMessageResponse, err error) bool {
	var perr *platformerrors.PlatformError
	return resp != nil && errors.As(err, &perr) && perr.Type == platformerrors.ErrorTypeExternal
}
