package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"jan-server/services/session-api/internal/utils/idgen"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

// Defaults are the service-wide values applied when a caller leaves a field empty.
type Defaults struct {
	Model ModelID
}

// ConversationService owns every mutation of a conversation record. Each mutation holds the
// per-id lock from load to commit.
type ConversationService struct {
	store    Store
	locker   Locker
	defaults Defaults
	now      func() time.Time
}

func NewConversationService(store Store, locker Locker, defaults Defaults) *ConversationService {
	if defaults.Model == "" {
		defaults.Model = DefaultModel
	}
	return &ConversationService{
		store:    store,
		locker:   locker,
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *ConversationService) WithClock(now func() time.Time) *ConversationService {
	s.now = now
	return s
}

// Now returns the service clock reading.
func (s *ConversationService) Now() time.Time {
	return s.now()
}

// ===============================================
// Exclusive Sessions
// ===============================================

// Session is an exclusive working copy of one conversation. Changes become visible to other
// callers only through Commit.
type Session struct {
	Conversation *Conversation
	store        Store
	release      func()
}

// Commit writes the working copy back to the store.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.Conversation.CheckTokenTotal(); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "refusing to commit inconsistent conversation", err, "0716e6bf-45db-4c31-a440-2ce95be908db")
	}
	if err := s.store.Put(ctx, s.Conversation); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to commit conversation")
	}
	return nil
}

// Close releases the per-id lock. It is safe to call more than once.
func (s *Session) Close() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// Open locks the conversation and loads a private copy of it.
func (s *ConversationService) Open(ctx context.Context, ownerID, id string) (*Session, error) {
	if err := requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if !idgen.ValidateIDFormat(id, idPrefix) {
		return nil, notFound(ctx)
	}

	release, err := s.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeDatabaseError, "conversation is busy", err, "0316a690-ab48-4112-9c42-ddce3ffb6e39")
	}

	conv, err := s.store.Get(ctx, id, ownerID)
	if err != nil {
		release()
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversation")
	}
	return &Session{Conversation: conv.Clone(), store: s.store, release: release}, nil
}

func (s *ConversationService) mutate(ctx context.Context, ownerID, id string, apply func(conv *Conversation, now time.Time) error) (*Conversation, error) {
	session, err := s.Open(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := apply(session.Conversation, s.now()); err != nil {
		return nil, AsValidation(ctx, err)
	}
	if err := session.Commit(ctx); err != nil {
		return nil, err
	}
	return session.Conversation, nil
}

// ===============================================
// Operations
// ===============================================

const idPrefix = "conv"

// CreateInput describes a new conversation. Nil fields take the defaults.
type CreateInput struct {
	OwnerID string
	Title   *string
	Model   *string
}

func (s *ConversationService) Create(ctx context.Context, input CreateInput) (*Conversation, error) {
	if err := requireOwner(ctx, input.OwnerID); err != nil {
		return nil, err
	}

	model := s.defaults.Model
	if input.Model != nil && strings.TrimSpace(*input.Model) != "" {
		parsed, err := ParseModelID(*input.Model)
		if err != nil {
			return nil, AsValidation(ctx, err)
		}
		model = parsed
	}

	id, err := idgen.GenerateSecureID(idPrefix, 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation ID")
	}

	now := s.now()
	conv := New(id, input.OwnerID, model, now)
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		title, err := NormalizeTitle(*input.Title)
		if err != nil {
			return nil, AsValidation(ctx, err)
		}
		conv.Title = title
		conv.TitleLocked = title != DefaultTitle
	}

	if err := s.store.Put(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}
	return conv, nil
}

// Get returns the full conversation. Foreign and missing ids are indistinguishable.
func (s *ConversationService) Get(ctx context.Context, ownerID, id string) (*Conversation, error) {
	if err := requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if !idgen.ValidateIDFormat(id, idPrefix) {
		return nil, notFound(ctx)
	}
	conv, err := s.store.Get(ctx, id, ownerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversation")
	}
	return conv, nil
}

// List returns one catalog page. A page past the end is empty, not an error.
func (s *ConversationService) List(ctx context.Context, params ListParams) (*Page, error) {
	if err := requireOwner(ctx, params.OwnerID); err != nil {
		return nil, err
	}
	params.Tag = strings.ToLower(strings.TrimSpace(params.Tag))
	params, err := params.Normalize()
	if err != nil {
		return nil, AsValidation(ctx, err)
	}

	items, total, err := s.store.Query(ctx, params.filter(), params.Page, params.PageSize)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	if items == nil {
		items = []Summary{}
	}
	return &Page{Items: items, Total: total, Page: params.Page, PageSize: params.PageSize}, nil
}

func (s *ConversationService) Rename(ctx context.Context, ownerID, id, title string) (*Conversation, error) {
	normalized, err := NormalizeTitle(title)
	if err != nil {
		return nil, AsValidation(ctx, err)
	}
	return s.mutate(ctx, ownerID, id, func(conv *Conversation, now time.Time) error {
		return conv.Rename(normalized, now)
	})
}

func (s *ConversationService) SetArchived(ctx context.Context, ownerID, id string, archived bool) (*Conversation, error) {
	return s.mutate(ctx, ownerID, id, func(conv *Conversation, now time.Time) error {
		conv.SetArchived(archived, now)
		return nil
	})
}

func (s *ConversationService) SetTags(ctx context.Context, ownerID, id string, tags []string) (*Conversation, error) {
	if _, err := NormalizeTags(tags); err != nil {
		return nil, AsValidation(ctx, err)
	}
	return s.mutate(ctx, ownerID, id, func(conv *Conversation, now time.Time) error {
		return conv.SetTags(tags, now)
	})
}

// Delete removes the conversation under the per-id lock.
func (s *ConversationService) Delete(ctx context.Context, ownerID, id string) error {
	session, err := s.Open(ctx, ownerID, id)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}
	return nil
}

// ===============================================
// Helpers
// ===============================================

func lockKey(id string) string {
	return "conversation:" + id
}

func requireOwner(ctx context.Context, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "missing principal", nil, "a8a2d443-ea8f-4c75-8be5-f534b8e4d428")
	}
	return nil
}

func notFound(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "a5d0c0dd-9a12-4b9c-8c0a-966be0371699")
}

// AsValidation converts a field error from this package into a VALIDATION platform error and
// passes anything else through AsError.
func AsValidation(ctx context.Context, err error) error {
	if errors.Is(err, ErrValidation) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, err.Error(), err, "c0eb2b60-15d1-47ef-aac0-852d9be664cc")
	}
	return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation update failed")
}
