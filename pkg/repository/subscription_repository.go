package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/feedbridge/feedbridge/pkg/domain"
)

// SubscriptionRepository owns the many-to-many relation between feed sources
// and remote subscriber actors.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Subscribe records a follower for a source. Re-following is a no-op thanks
// to the unique index, so a replayed Follow activity cannot cause duplicate
// deliveries.
func (r *SubscriptionRepository) Subscribe(ctx context.Context, hostname, subscriber string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO subscriptions (hostname, subscriber) VALUES (?, ?)",
			hostname, subscriber)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("subscribe: %w", err)}
		}
		return nil
	})
}

// Unsubscribe removes a follower from a source.
func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, hostname, subscriber string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			"DELETE FROM subscriptions WHERE hostname = ? AND subscriber = ?",
			hostname, subscriber)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("unsubscribe: %w", err)}
		}
		return nil
	})
}

// ListSourceHostnames returns every hostname with at least one subscriber.
// This projection is what the polling cycle iterates over.
func (r *SubscriptionRepository) ListSourceHostnames(ctx context.Context) ([]string, error) {
	var hostnames []string
	err := r.db.SelectContext(ctx, &hostnames,
		"SELECT DISTINCT hostname FROM subscriptions ORDER BY hostname")
	if err != nil {
		return nil, fmt.Errorf("list source hostnames: %w", err)
	}
	return hostnames, nil
}

// ListSubscribers returns the current subscriber actor URIs for a source.
// An empty result is valid and means no delivery occurs.
func (r *SubscriptionRepository) ListSubscribers(ctx context.Context, hostname string) ([]string, error) {
	var subs []domain.Subscription
	err := r.db.SelectContext(ctx, &subs,
		"SELECT hostname, subscriber, created_at FROM subscriptions WHERE hostname = ? ORDER BY created_at",
		hostname)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return lo.Map(subs, func(s domain.Subscription, _ int) string { return s.Subscriber }), nil
}
