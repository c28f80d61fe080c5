package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/metrics"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

const (
	DefaultStatsSchedule = "*/5 * * * *"
	CronJobTimeout       = time.Minute
)

type Crontab struct {
	ctab     *crontab.Crontab
	store    conversation.Store
	schedule string
	refresh  singleflight.Group
	log      zerolog.Logger
}

func NewCrontab(cfg *config.Config, store conversation.Store, log zerolog.Logger) *Crontab {
	schedule := cfg.MetricsRefreshCron
	if schedule == "" {
		schedule = DefaultStatsSchedule
	}
	return &Crontab{
		ctab:     crontab.New(),
		store:    store,
		schedule: schedule,
		log:      log.With().Str("component", "crontab").Logger(),
	}
}

// Run refreshes the conversation gauges once, then on schedule until ctx is done.
func (c *Crontab) Run(ctx context.Context) error {
	if err := c.RefreshConversationGauges(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial stats refresh failed")
	}

	if err := c.ctab.AddJob(c.schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		if err := c.RefreshConversationGauges(jobCtx); err != nil {
			c.log.Error().Err(err).Msg("stats refresh failed")
		}
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add stats refresh job")
	}
	c.log.Info().Str("schedule", c.schedule).Msg("stats refresh scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// RefreshConversationGauges reads store stats into the conversation gauges. Overlapping calls
// share one store query.
func (c *Crontab) RefreshConversationGauges(ctx context.Context) error {
	_, err, _ := c.refresh.Do("conversation-stats", func() (any, error) {
		stats, err := c.store.Stats(ctx)
		if err != nil {
			return nil, err
		}
		metrics.SetConversationCounts(stats.Active, stats.Archived)
		return stats, nil
	})
	return err
}
