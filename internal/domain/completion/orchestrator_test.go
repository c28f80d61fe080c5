package completion_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/session-api/internal/domain/completion"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/lock"
	"jan-server/services/session-api/internal/infrastructure/store"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

type mockProvider struct {
	mu           sync.Mutex
	requests     []completion.Request
	CompleteFunc func(ctx context.Context, req completion.Request) (*completion.Result, error)
}

func (m *mockProvider) Complete(ctx context.Context, req completion.Request) (*completion.Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

func (m *mockProvider) lastRequest() completion.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

// flakyStore fails Put once the configured number of successful puts is used up.
type flakyStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	putsLeft int
}

func (s *flakyStore) Put(ctx context.Context, conv *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putsLeft == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "connection reset", nil, "")
	}
	s.putsLeft--
	return s.MemoryStore.Put(ctx, conv)
}

type fixture struct {
	svc      *conversation.ConversationService
	provider *mockProvider
	orch     *completion.Orchestrator
	convID   string
}

func newFixture(t *testing.T, st conversation.Store, params completion.Params, reply func(ctx context.Context, req completion.Request) (*completion.Result, error)) *fixture {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore(zerolog.Nop())
	}
	svc := conversation.NewConversationService(st, lock.NewLocalLocker(), conversation.Defaults{})
	provider := &mockProvider{CompleteFunc: reply}
	pricing := completion.PriceTable{
		conversation.ModelGPT4: {PromptPer1K: decimal.RequireFromString("0.03"), CompletionPer1K: decimal.RequireFromString("0.06")},
	}
	orch := completion.NewOrchestrator(svc, provider, params, pricing, zerolog.Nop())

	conv, err := svc.Create(context.Background(), conversation.CreateInput{OwnerID: "alice"})
	require.NoError(t, err)
	return &fixture{svc: svc, provider: provider, orch: orch, convID: conv.ID}
}

func replyWith(text string, prompt, completionTokens int) func(context.Context, completion.Request) (*completion.Result, error) {
	return func(ctx context.Context, req completion.Request) (*completion.Result, error) {
		return &completion.Result{Text: text, PromptTokens: prompt, CompletionTokens: completionTokens, TotalTokens: prompt + completionTokens}, nil
	}
}

func TestSendSuccess(t *testing.T) {
	f := newFixture(t, nil, completion.DefaultParams(), replyWith("Recursion is...", 30, 12))
	ctx := context.Background()

	res, err := f.orch.Send(ctx, completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "  Explain recursion  "})
	require.NoError(t, err)

	conv := res.Conversation
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, conversation.RoleUser, conv.Turns[0].Role)
	assert.Equal(t, "Explain recursion", conv.Turns[0].Content)
	assert.Equal(t, conversation.RoleAssistant, conv.Turns[1].Role)
	assert.Equal(t, 42, conv.Turns[1].TokenCost)
	assert.Equal(t, 42, conv.TotalTokens)
	assert.Equal(t, "Explain recursion", conv.Title)

	require.NotNil(t, res.Usage)
	assert.Equal(t, 42, res.Usage.Tokens)
	assert.Equal(t, conversation.ModelGPT35Turbo, res.Usage.ModelID)
	assert.Nil(t, res.Usage.EstimatedCostUSD)

	req := f.provider.lastRequest()
	assert.Equal(t, 2000, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, completion.Message{Role: conversation.RoleUser, Content: "Explain recursion"}, req.Messages[0])

	stored, err := f.svc.Get(ctx, "alice", f.convID)
	require.NoError(t, err)
	assert.Equal(t, conv.Turns, stored.Turns)
	assert.Equal(t, 42, stored.TotalTokens)
}

func TestSendModelOverrideAndCost(t *testing.T) {
	f := newFixture(t, nil, completion.DefaultParams(), replyWith("ok", 1000, 500))

	res, err := f.orch.Send(context.Background(), completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hi", Model: ptr("gpt-4")})
	require.NoError(t, err)

	assert.Equal(t, conversation.ModelGPT4, f.provider.lastRequest().Model)
	assert.Equal(t, conversation.ModelGPT4, res.Usage.ModelID)
	assert.Equal(t, conversation.ModelGPT35Turbo, res.Conversation.ModelID)
	require.NotNil(t, res.Usage.EstimatedCostUSD)
	assert.True(t, decimal.RequireFromString("0.06").Equal(*res.Usage.EstimatedCostUSD))
}

func TestSendProviderTimeoutCommitsDegradedTurn(t *testing.T) {
	params := completion.DefaultParams()
	params.Timeout = 20 * time.Millisecond
	f := newFixture(t, nil, params, func(ctx context.Context, req completion.Request) (*completion.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ctx := context.Background()

	res, err := f.orch.Send(ctx, completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hello"})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NotNil(t, res)
	assert.Nil(t, res.Usage)
	require.Len(t, res.Conversation.Turns, 2)
	assert.Equal(t, completion.DegradedReply, res.Conversation.Turns[1].Content)
	assert.Equal(t, conversation.RoleAssistant, res.Conversation.Turns[1].Role)
	assert.Equal(t, 0, res.Conversation.TotalTokens)

	stored, err := f.svc.Get(ctx, "alice", f.convID)
	require.NoError(t, err)
	assert.Len(t, stored.Turns, 2)
	assert.Equal(t, stored.TurnTokenSum(), stored.TotalTokens)
}

func TestSendDegradedKeepsPriorTotal(t *testing.T) {
	fail := false
	f := newFixture(t, nil, completion.DefaultParams(), func(ctx context.Context, req completion.Request) (*completion.Result, error) {
		if fail {
			return nil, errors.New("upstream 500")
		}
		return &completion.Result{Text: "first answer", TotalTokens: 42}, nil
	})
	ctx := context.Background()

	_, err := f.orch.Send(ctx, completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "one"})
	require.NoError(t, err)

	fail = true
	res, err := f.orch.Send(ctx, completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")
	assert.Equal(t, "upstream 500", res.FailureDetail)
	assert.Len(t, res.Conversation.Turns, 4)
	assert.Equal(t, 42, res.Conversation.TotalTokens)
}

func TestSendMalformedReplyIsProviderFailure(t *testing.T) {
	f := newFixture(t, nil, completion.DefaultParams(), func(ctx context.Context, req completion.Request) (*completion.Result, error) {
		return &completion.Result{Text: "   ", TotalTokens: 9}, nil
	})

	res, err := f.orch.Send(context.Background(), completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hello"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.Equal(t, 0, res.Conversation.TotalTokens)
	assert.Equal(t, completion.DegradedReply, res.Conversation.Turns[1].Content)
}

func TestSendFailureDetailStripsErrorPrefixes(t *testing.T) {
	f := newFixture(t, nil, completion.DefaultParams(), func(ctx context.Context, req completion.Request) (*completion.Result, error) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "openai-compatible: provider returned status 429: rate limited", nil, "")
	})

	res, err := f.orch.Send(context.Background(), completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hello"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "openai-compatible: provider returned status 429: rate limited", res.FailureDetail)

	var perr *platformerrors.PlatformError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, res.FailureDetail, perr.Context["provider_error"])
}

func TestFailureDetail(t *testing.T) {
	assert.Equal(t, "", completion.FailureDetail(nil))
	assert.Equal(t, "boom", completion.FailureDetail(errors.New("boom")))

	wrapped := platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "request failed", context.DeadlineExceeded, "")
	assert.Equal(t, "request failed: context deadline exceeded", completion.FailureDetail(wrapped))
}

func TestSendRejectsBeforeMutation(t *testing.T) {
	f := newFixture(t, nil, completion.DefaultParams(), replyWith("never", 1, 1))
	ctx := context.Background()

	tests := []struct {
		name    string
		req     completion.SendRequest
		errType platformerrors.ErrorType
	}{
		{"empty message", completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "   "}, platformerrors.ErrorTypeValidation},
		{"too long", completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: strings.Repeat("a", conversation.MaxContentLength+1)}, platformerrors.ErrorTypeValidation},
		{"unknown model", completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hi", Model: ptr("llama")}, platformerrors.ErrorTypeValidation},
		{"foreign owner", completion.SendRequest{OwnerID: "bob", ConversationID: f.convID, Message: "hi"}, platformerrors.ErrorTypeNotFound},
		{"missing conversation", completion.SendRequest{OwnerID: "alice", ConversationID: "conv_missing", Message: "hi"}, platformerrors.ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.orch.Send(ctx, tt.req)
			assert.Nil(t, res)
			assert.True(t, platformerrors.IsErrorType(err, tt.errType), "got %v", err)
		})
	}

	assert.Empty(t, f.provider.requests)
	stored, err := f.svc.Get(ctx, "alice", f.convID)
	require.NoError(t, err)
	assert.Empty(t, stored.Turns)
}

func TestSendWindowIsBounded(t *testing.T) {
	params := completion.DefaultParams()
	f := newFixture(t, nil, params, replyWith("ok", 1, 1))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := f.orch.Send(ctx, completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "msg"})
		require.NoError(t, err)
	}

	req := f.provider.lastRequest()
	assert.Len(t, req.Messages, 10)
	assert.Equal(t, conversation.RoleUser, req.Messages[len(req.Messages)-1].Role)
	assert.Equal(t, conversation.RoleAssistant, req.Messages[0].Role)
}

func TestSendCallerCancellationStillCommits(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, nil, completion.DefaultParams(), func(ctx context.Context, req completion.Request) (*completion.Result, error) {
		close(started)
		<-release
		return &completion.Result{Text: "late answer", TotalTokens: 7}, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Send(ctx, completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hello"})
		done <- err
	}()

	<-started
	cancel()
	close(release)
	require.NoError(t, <-done)

	stored, err := f.svc.Get(context.Background(), "alice", f.convID)
	require.NoError(t, err)
	require.Len(t, stored.Turns, 2)
	assert.Equal(t, "late answer", stored.Turns[1].Content)
	assert.Equal(t, 7, stored.TotalTokens)
}

func TestSendStoreFailureAfterProvider(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore(zerolog.Nop()), putsLeft: 2}
	f := newFixture(t, st, completion.DefaultParams(), replyWith("answer", 2, 3))

	res, err := f.orch.Send(context.Background(), completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hello"})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeDatabaseError))

	stored, getErr := f.svc.Get(context.Background(), "alice", f.convID)
	require.NoError(t, getErr)
	require.Len(t, stored.Turns, 1)
	assert.Equal(t, conversation.RoleUser, stored.Turns[0].Role)
}

func TestSendStoreFailureOnUserTurnSkipsProvider(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore(zerolog.Nop()), putsLeft: 1}
	f := newFixture(t, st, completion.DefaultParams(), replyWith("answer", 2, 3))

	_, err := f.orch.Send(context.Background(), completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: "hello"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeDatabaseError))
	assert.Empty(t, f.provider.requests)
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	f := newFixture(t, nil, completion.DefaultParams(), func(ctx context.Context, req completion.Request) (*completion.Result, error) {
		time.Sleep(10 * time.Millisecond)
		last := req.Messages[len(req.Messages)-1].Content
		return &completion.Result{Text: "re: " + last, TotalTokens: 5}, nil
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, msg := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			_, err := f.orch.Send(ctx, completion.SendRequest{OwnerID: "alice", ConversationID: f.convID, Message: msg})
			assert.NoError(t, err)
		}(msg)
	}
	wg.Wait()

	stored, err := f.svc.Get(ctx, "alice", f.convID)
	require.NoError(t, err)
	require.Len(t, stored.Turns, 4)
	assert.Equal(t, 10, stored.TotalTokens)
	for i := 0; i < 4; i += 2 {
		user, reply := stored.Turns[i], stored.Turns[i+1]
		assert.Equal(t, conversation.RoleUser, user.Role)
		assert.Equal(t, conversation.RoleAssistant, reply.Role)
		assert.Equal(t, "re: "+user.Content, reply.Content)
	}
	for i := 1; i < len(stored.Turns); i++ {
		assert.False(t, stored.Turns[i].CreatedAt.Before(stored.Turns[i-1].CreatedAt))
	}
}

func TestSelectWindow(t *testing.T) {
	conv := conversation.New("conv_x", "alice", conversation.DefaultModel, time.Now())
	for _, content := range []string{"a", "b", "c"} {
		_, err := conv.Append(conversation.RoleUser, content, 0, time.Now())
		require.NoError(t, err)
	}

	window, err := completion.SelectWindow(conv, 10)
	require.NoError(t, err)
	assert.Equal(t, []completion.Message{
		{Role: conversation.RoleUser, Content: "a"},
		{Role: conversation.RoleUser, Content: "b"},
		{Role: conversation.RoleUser, Content: "c"},
	}, window)
}

func ptr[T any](v T) *T { return &v }
