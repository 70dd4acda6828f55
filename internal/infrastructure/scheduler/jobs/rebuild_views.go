// Package jobs contains implementations of scheduled jobs for GuildXP.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guildxp/guildxp/internal/domain/member"
	"github.com/guildxp/guildxp/internal/domain/shared"
	"github.com/guildxp/guildxp/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD VIEWS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildViewsJob pre-warms the cached leaderboard views for every guild
// that has records. Reads between invalidations then hit the cache instead
// of scanning the leaderboard table.
type RebuildViewsJob struct {
	repo    member.Repository
	views   member.ViewCache
	logger  *slog.Logger
	config  RebuildViewsConfig
	breaker *circuitbreaker.CircuitBreaker
}

// RebuildViewsConfig contains configuration for the rebuild job.
type RebuildViewsConfig struct {
	// ViewTTL is the lifetime of each cached view. It should exceed the
	// job interval so views never expire between runs.
	ViewTTL time.Duration

	// SortKeys are the orderings to pre-warm. Empty means all of them.
	SortKeys []member.SortKey
}

// DefaultRebuildViewsConfig returns sensible defaults.
func DefaultRebuildViewsConfig() RebuildViewsConfig {
	return RebuildViewsConfig{
		ViewTTL: 10 * time.Minute,
		SortKeys: []member.SortKey{
			member.SortByRank,
			member.SortByName,
			member.SortByLevel,
			member.SortByXP,
		},
	}
}

// NewRebuildViewsJob creates the view pre-warm job.
func NewRebuildViewsJob(
	repo member.Repository,
	views member.ViewCache,
	logger *slog.Logger,
	config RebuildViewsConfig,
) *RebuildViewsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ViewTTL <= 0 {
		config.ViewTTL = 10 * time.Minute
	}
	if len(config.SortKeys) == 0 {
		config.SortKeys = DefaultRebuildViewsConfig().SortKeys
	}

	j := &RebuildViewsJob{
		repo:   repo,
		views:  views,
		logger: logger,
		config: config,
	}
	// Stop hammering a down database mid-run; the breaker fails the
	// remaining rebuilds fast and the next run retries.
	j.breaker = circuitbreaker.DatabaseBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("database breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return j
}

// Name implements scheduler.Job.
func (j *RebuildViewsJob) Name() string {
	return "rebuild_views"
}

// Description implements scheduler.Job.
func (j *RebuildViewsJob) Description() string {
	return "Pre-warms cached leaderboard views for all guilds"
}

// Run implements scheduler.Job.
func (j *RebuildViewsJob) Run(ctx context.Context) error {
	guilds, err := j.activeGuilds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list guilds: %w", err)
	}

	var rebuilt, failed int
	for _, guildID := range guilds {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		for _, sortKey := range j.config.SortKeys {
			if err := j.rebuildView(ctx, guildID, sortKey); err != nil {
				failed++
				j.logger.Warn("failed to rebuild view",
					"guild_id", guildID.Int64(),
					"sort_key", string(sortKey),
					"error", err,
				)
				continue
			}
			rebuilt++
		}
	}

	j.logger.Info("views rebuilt",
		"guilds", len(guilds),
		"views", rebuilt,
		"failed", failed,
	)

	if failed > 0 && rebuilt == 0 {
		return fmt.Errorf("all %d view rebuilds failed", failed)
	}
	return nil
}

func (j *RebuildViewsJob) rebuildView(ctx context.Context, guildID shared.GuildID, sortKey member.SortKey) error {
	var records []*member.Record
	err := j.breaker.Execute(ctx, func(ctx context.Context) error {
		var listErr error
		records, listErr = j.repo.ListByGuild(ctx, guildID, member.ListOptions{SortKey: sortKey})
		return listErr
	})
	if err != nil {
		return err
	}
	return j.views.SetView(ctx, guildID, sortKey, records, j.config.ViewTTL)
}

// activeGuilds returns the distinct guild IDs that currently have records.
func (j *RebuildViewsJob) activeGuilds(ctx context.Context) ([]shared.GuildID, error) {
	records, err := j.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[shared.GuildID]struct{})
	guilds := make([]shared.GuildID, 0)
	for _, rec := range records {
		if _, ok := seen[rec.GuildID]; ok {
			continue
		}
		seen[rec.GuildID] = struct{}{}
		guilds = append(guilds, rec.GuildID)
	}
	return guilds, nil
}
