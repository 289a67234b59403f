// internal/app/system/workers/subscriptionexpiry.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/coursehub/internal/app/system/metrics"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// batchSize caps how many subscriptions one sweep pass loads at a time.
const batchSize = 500

// ExpiredSource lists and deactivates subscriptions. The subscription
// store implements it.
type ExpiredSource interface {
	ListExpired(ctx context.Context, now time.Time, limit int64) ([]models.Subscription, error)
	Deactivate(ctx context.Context, subID primitive.ObjectID) error
}

// ExpiryAuditor records each expired subscription.
type ExpiryAuditor interface {
	SubscriptionExpired(ctx context.Context, sub models.Subscription)
}

// SubscriptionExpiry is a background worker that deactivates subscriptions
// whose end date has passed. Deactivation frees the (user, course) pair
// and removes the user from their group's member count.
type SubscriptionExpiry struct {
	subs     ExpiredSource
	audit    ExpiryAuditor
	metrics  *metrics.Metrics
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSubscriptionExpiry creates a new expiry worker.
//
// Parameters:
//   - subs: the subscription store
//   - audit: optional audit sink for expired subscriptions
//   - m: optional metrics
//   - logger: zap logger for logging
//   - interval: how often to sweep (e.g., 10 minutes)
func NewSubscriptionExpiry(subs ExpiredSource, audit ExpiryAuditor, m *metrics.Metrics, logger *zap.Logger, interval time.Duration) *SubscriptionExpiry {
	return &SubscriptionExpiry{
		subs:     subs,
		audit:    audit,
		metrics:  m,
		log:      logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *SubscriptionExpiry) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("subscription expiry worker started",
		zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *SubscriptionExpiry) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("subscription expiry worker stopped")
}

func (w *SubscriptionExpiry) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			_, _ = w.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep deactivates every subscription that has expired as of now and
// returns how many it deactivated.
func (w *SubscriptionExpiry) Sweep(ctx context.Context) (int64, error) {
	now := w.now()
	var total int64

	for {
		batch, err := w.subs.ListExpired(ctx, now, batchSize)
		if err != nil {
			w.log.Error("failed to list expired subscriptions", zap.Error(err))
			return total, err
		}
		if len(batch) == 0 {
			break
		}

		var done int
		for _, sub := range batch {
			if err := w.subs.Deactivate(ctx, sub.ID); err != nil {
				w.log.Error("failed to deactivate expired subscription",
					zap.String("subscription_id", sub.ID.Hex()),
					zap.Error(err))
				continue
			}
			done++
			if w.audit != nil {
				w.audit.SubscriptionExpired(ctx, sub)
			}
		}
		total += int64(done)

		// Nothing in this batch could be deactivated; retrying would
		// load the same rows forever.
		if done == 0 || len(batch) < batchSize {
			break
		}
	}

	if total > 0 {
		w.metrics.Expired(total)
		w.log.Info("deactivated expired subscriptions", zap.Int64("count", total))
	}
	return total, nil
}
