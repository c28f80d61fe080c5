package completion

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

// DegradedReply is committed as the assistant turn when the provider call fails.
const DegradedReply = "I apologize, but I encountered an error processing your request. Please try again later."

var errEmptyReply = errors.New("provider returned an empty reply")

type SendRequest struct {
	OwnerID        string
	ConversationID string
	Message        string
	// Model overrides the conversation default for this call only.
	Model *string
}

// SendResult is returned on success, and alongside a ProviderError after a degraded reply was
// committed. Usage is nil in the degraded case, and FailureDetail then holds the provider's
// own account of the failure.
type SendResult struct {
	Conversation  *conversation.Conversation
	Usage         *Usage
	FailureDetail string
}

// Orchestrator runs one user message through the provider and records both sides in the log.
type Orchestrator struct {
	conversations *conversation.ConversationService
	provider      Provider
	params        Params
	pricing       Pricing
	log           zerolog.Logger
}

func NewOrchestrator(conversations *conversation.ConversationService, provider Provider, params Params, pricing Pricing, log zerolog.Logger) *Orchestrator {
	defaults := DefaultParams()
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaults.MaxTokens
	}
	if params.Timeout <= 0 {
		params.Timeout = defaults.Timeout
	}
	if params.WindowSize <= 0 {
		params.WindowSize = defaults.WindowSize
	}
	return &Orchestrator{
		conversations: conversations,
		provider:      provider,
		params:        params,
		pricing:       pricing,
		log:           log.With().Str("component", "completion-orchestrator").Logger(),
	}
}

// Send appends the user message, calls the provider once and appends the reply. The user turn
// is committed before the provider is contacted and is never rolled back. When the provider
// fails a degraded assistant turn is committed and a ProviderError is returned together with
// the updated conversation. Work after the user turn is detached from ctx cancellation so an
// abandoned request still reaches a terminal turn.
func (o *Orchestrator) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message is required", nil, "30565110-864d-4412-80b3-ebb554d51478")
	}
	if n := utf8.RuneCountInString(message); n > conversation.MaxContentLength {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message is too long", nil, "9f327f26-8a5c-4127-8c39-764edc8164f3")
	}
	var override conversation.ModelID
	if req.Model != nil && strings.TrimSpace(*req.Model) != "" {
		parsed, err := conversation.ParseModelID(*req.Model)
		if err != nil {
			return nil, conversation.AsValidation(ctx, err)
		}
		override = parsed
	}

	session, err := o.conversations.Open(ctx, req.OwnerID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	work := context.WithoutCancel(ctx)
	conv := session.Conversation

	if _, err := conv.Append(conversation.RoleUser, message, 0, o.conversations.Now()); err != nil {
		return nil, conversation.AsValidation(ctx, err)
	}
	if err := session.Commit(work); err != nil {
		return nil, err
	}

	model := conv.ModelID
	if override != "" {
		model = override
	}
	history, err := SelectWindow(conv, o.params.WindowSize)
	if err != nil {
		return nil, conversation.AsValidation(ctx, err)
	}

	log := o.log.With().Str("conversation_id", conv.ID).Str("model", string(model)).Logger()

	result, callErr := o.call(work, model, history)
	if callErr != nil {
		log.Warn().Err(callErr).Int("window", len(history)).Msg("provider call failed, committing degraded reply")
		if _, err := conv.Append(conversation.RoleAssistant, DegradedReply, 0, o.conversations.Now()); err != nil {
			return nil, conversation.AsValidation(ctx, err)
		}
		if err := session.Commit(work); err != nil {
			return nil, err
		}
		detail := FailureDetail(callErr)
		return &SendResult{Conversation: conv, FailureDetail: detail}, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "completion provider failed", callErr, "d1fd93ec-4206-4f17-9af3-9729f232ceaf", map[string]any{
			"conversation_id": conv.ID,
			"model":           string(model),
			"provider_error":  detail,
		})
	}

	usage := newUsage(model, result, o.pricing)
	if _, err := conv.Append(conversation.RoleAssistant, truncate(result.Text, conversation.MaxContentLength), usage.Tokens, o.conversations.Now()); err != nil {
		return nil, conversation.AsValidation(ctx, err)
	}
	if err := session.Commit(work); err != nil {
		return nil, err
	}

	log.Debug().Int("tokens", usage.Tokens).Int("turns", len(conv.Turns)).Msg("assistant reply committed")
	return &SendResult{Conversation: conv, Usage: &usage}, nil
}

// call performs the single provider attempt bounded by the configured timeout.
func (o *Orchestrator) call(ctx context.Context, model conversation.ModelID, history []Message) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.params.Timeout)
	defer cancel()

	result, err := o.provider.Complete(callCtx, Request{
		Model:       model,
		Messages:    history,
		MaxTokens:   o.params.MaxTokens,
		Temperature: o.params.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return nil, errEmptyReply
	}
	if result.TotalTokens <= 0 {
		result.TotalTokens = result.PromptTokens + result.CompletionTokens
	}
	if result.TotalTokens < 0 {
		result.TotalTokens = 0
	}
	return result, nil
}

// FailureDetail renders a provider error for callers without the layer and code prefixes
// PlatformError adds.
func FailureDetail(err error) string {
	if err == nil {
		return ""
	}
	var perr *platformerrors.PlatformError
	if errors.As(err, &perr) {
		if perr.Err != nil {
			return perr.Message + ": " + FailureDetail(perr.Err)
		}
		return perr.Message
	}
	return err.Error()
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
