package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/partyq/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheClear removes every cached search result.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if r.config.Cache.RedisURL == "" {
		return fmt.Errorf("%w: cache.redis_url (or %s) is not set", shared.ErrNotConfigured, shared.EnvRedisURL)
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	if r.cache == nil {
		return fmt.Errorf("%w: redis at %s is unreachable", shared.ErrUpstream, r.config.Cache.RedisURL)
	}

	removed, err := r.cache.Clear(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %d cached searches\n", removed)
}
