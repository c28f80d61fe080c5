package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/utils/functional"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

// MemoryStore is a mutex-based in-memory conversation store.
// Records are copied on the way in and out so callers never share state with the map.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation.Conversation
	log           zerolog.Logger
}

var _ conversation.Store = (*MemoryStore)(nil)

func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*conversation.Conversation),
		log:           log.With().Str("component", "conversation-store").Str("backend", "memory").Logger(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id, ownerID string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return nil, notFound(ctx)
	}
	return conv.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, conv *conversation.Conversation) error {
	if err := ctx.Err(); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "commit aborted", err, "7825cf9e-5df2-4db8-bd87-6b0708df25fb")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.conversations[conv.ID]; ok && existing.OwnerID != conv.OwnerID {
		return notFound(ctx)
	}
	s.conversations[conv.ID] = conv.Clone()
	s.log.Debug().Str("conversation_id", conv.ID).Int("turns", len(conv.Turns)).Msg("conversation committed")
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return notFound(ctx)
	}
	delete(s.conversations, id)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, filter conversation.Filter, page, pageSize int) ([]conversation.Summary, int64, error) {
	s.mu.RLock()
	matched := make([]*conversation.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.OwnerID != filter.OwnerID || conv.Archived != filter.Archived {
			continue
		}
		if filter.Tag != nil && !slices.Contains(conv.Tags, *filter.Tag) {
			continue
		}
		matched = append(matched, conv)
	}
	summaries := functional.Map(matched, conversation.Summarize)
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		return a.ID < b.ID
	})

	return functional.Page(summaries, page, pageSize), int64(len(summaries)), nil
}

func (s *MemoryStore) Stats(ctx context.Context) (conversation.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats conversation.Stats
	for _, conv := range s.conversations {
		if conv.Archived {
			stats.Archived++
		} else {
			stats.Active++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func notFound(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "231466ae-d729-4a77-84ea-05617c40ba63")
}
