package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DashboardTTL bounds how long a cached dashboard survives without a refresh
const DashboardTTL = 24 * time.Hour

// DashboardCache stores the latest all-time dashboard in Redis and announces
// every refresh on a pub/sub channel for out-of-process readers.
type DashboardCache struct {
	client  *redis.Client
	key     string
	channel string
	pending chan service.ChangeSource
}

// NewDashboardCache creates a new dashboard cache
func NewDashboardCache(client *redis.Client, key, channel string) *DashboardCache {
	return &DashboardCache{
		client:  client,
		key:     key,
		channel: channel,
		pending: make(chan service.ChangeSource, 1),
	}
}

// Write stores the dashboard and publishes it in one round trip
func (c *DashboardCache) Write(ctx context.Context, dashboard *models.Dashboard) error {
	data, err := json.Marshal(dashboard)
	if err != nil {
		return fmt.Errorf("marshaling dashboard: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key, data, DashboardTTL)
	pipe.Publish(ctx, c.channel, data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing dashboard to redis: %w", err)
	}
	return nil
}

// Read returns the cached dashboard, or nil when nothing is cached
func (c *DashboardCache) Read(ctx context.Context) (*models.Dashboard, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading dashboard from redis: %w", err)
	}

	var dashboard models.Dashboard
	if err := json.Unmarshal(data, &dashboard); err != nil {
		return nil, fmt.Errorf("unmarshaling dashboard: %w", err)
	}
	return &dashboard, nil
}

// Refresh recomputes the all-time dashboard and writes it
func (c *DashboardCache) Refresh(ctx context.Context, provider service.DashboardProvider) error {
	dashboard, err := provider.Current(ctx, models.PeriodAll)
	if err != nil {
		return err
	}
	return c.Write(ctx, dashboard)
}

// OnChange is a dashboard listener. It only queues a refresh for Run;
// notifications arriving while one is queued collapse into it.
func (c *DashboardCache) OnChange(source service.ChangeSource) {
	select {
	case c.pending <- source:
	default:
	}
}

// Run refreshes the cache for queued changes until ctx is cancelled. Each
// refresh is bounded by timeout.
func (c *DashboardCache) Run(ctx context.Context, provider service.DashboardProvider, timeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case source := <-c.pending:
			refreshCtx, cancel := context.WithTimeout(ctx, timeout)
			if err := c.Refresh(refreshCtx, provider); err != nil {
				log.WithError(err).WithField("source", source).Warn("Failed to refresh cached dashboard")
			}
			cancel()
		}
	}
}
