package crontab

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/metrics"
	"jan-server/services/session-api/internal/infrastructure/store"
)

func seed(t *testing.T, st *store.MemoryStore, id string, archived bool) {
	t.Helper()
	conv := conversation.New(id, "owner-1", conversation.DefaultModel, time.Now().UTC())
	conv.Archived = archived
	require.NoError(t, st.Put(context.Background(), conv))
}

func TestRefreshConversationGauges(t *testing.T) {
	st := store.NewMemoryStore(zerolog.Nop())
	seed(t, st, "conv_aaaaaaaaaaaaaaaa", false)
	seed(t, st, "conv_bbbbbbbbbbbbbbbb", false)
	seed(t, st, "conv_cccccccccccccccc", true)

	c := NewCrontab(&config.Config{}, st, zerolog.Nop())
	require.NoError(t, c.RefreshConversationGauges(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Conversations.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Conversations.WithLabelValues("archived")))
}

func TestRunStopsWithContext(t *testing.T) {
	st := store.NewMemoryStore(zerolog.Nop())
	c := NewCrontab(&config.Config{MetricsRefreshCron: "* * * * *"}, st, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("crontab did not stop")
	}
}
