package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"artbid-sync/pkg/logger"
)

// Refresher periodically re-fetches every subscribed artwork over REST.
// It is the polling fallback: if the push channel is down or an event was
// missed, snapshots converge on the next tick, and any result older than
// what push already delivered is discarded by the reconciler.
type Refresher struct {
	cron     *cron.Cron
	sync     *SyncService
	interval time.Duration
	timeout  time.Duration
	log      logger.Logger
}

func NewRefresher(sync *SyncService, interval time.Duration, log logger.Logger) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{
		cron:     cron.New(cron.WithSeconds()),
		sync:     sync,
		interval: interval,
		timeout:  10 * time.Second,
		log:      log,
	}
}

func (r *Refresher) Start(ctx context.Context) error {
	r.log.Info("Starting snapshot refresher", "interval", r.interval.String())

	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.refreshAll(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

func (r *Refresher) Stop() error {
	r.log.Info("Stopping snapshot refresher")
	r.cron.Stop()
	return nil
}

func (r *Refresher) refreshAll(ctx context.Context) {
	for _, id := range r.sync.SubscribedArtworks() {
		reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
		_, err := r.sync.RefreshArtwork(reqCtx, id)
		cancel()

		if err != nil {
			r.log.Warn("refresh failed", "artwork_id", id, "error", err)
			continue
		}
	}
}
