// Package scheduler drives the ingestion pipeline: it periodically polls
// every followed source, filters out items already seen, and fans new items
// out to the source's subscribers. Sources and items are processed strictly
// sequentially; failures are isolated at the source and subscriber
// boundaries so one broken feed or unreachable inbox never blocks the rest.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/samber/lo"

	"github.com/feedbridge/feedbridge/pkg/activity"
	"github.com/feedbridge/feedbridge/pkg/domain"
)

// Fetcher retrieves and normalizes a source's feed
type Fetcher interface {
	Fetch(ctx context.Context, hostname string) ([]domain.Item, error)
}

// SeenStore answers "is this item new?" atomically
type SeenStore interface {
	RecordIfNew(ctx context.Context, hostname string, item domain.Item) (bool, error)
}

// Registry resolves followed sources and their subscribers
type Registry interface {
	ListSourceHostnames(ctx context.Context) ([]string, error)
	ListSubscribers(ctx context.Context, hostname string) ([]string, error)
}

// Composer builds the notification payload for a new item
type Composer interface {
	Compose(hostname string, item domain.Item) activity.Activity
}

// Deliverer posts an activity to one subscriber
type Deliverer interface {
	Deliver(ctx context.Context, act any, subscriber string) error
}

// Params holds scheduler dependencies and settings
type Params struct {
	Fetcher   Fetcher
	Seen      SeenStore
	Registry  Registry
	Composer  Composer
	Deliverer Deliverer

	PollInterval time.Duration
	// OnError is invoked for every isolated per-source or per-subscriber
	// failure, in addition to logging. Optional.
	OnError func(hostname string, err error)
}

// Scheduler runs the polling cycle for the process lifetime.
type Scheduler struct {
	fetcher   Fetcher
	seen      SeenStore
	registry  Registry
	composer  Composer
	deliverer Deliverer

	interval time.Duration
	onError  func(hostname string, err error)
}

// NewScheduler creates a scheduler with the provided dependencies
func NewScheduler(p Params) *Scheduler {
	if p.PollInterval == 0 {
		p.PollInterval = 15 * time.Minute
	}
	return &Scheduler{
		fetcher:   p.Fetcher,
		seen:      p.Seen,
		registry:  p.Registry,
		composer:  p.Composer,
		deliverer: p.Deliverer,
		interval:  p.PollInterval,
		onError:   p.OnError,
	}
}

// Run executes a cycle immediately and then on every tick until the context
// is cancelled. Cycles run inline in this goroutine, so a slow cycle cannot
// overlap the next one; ticks arriving mid-cycle coalesce.
func (s *Scheduler) Run(ctx context.Context) error {
	lgr.Printf("[INFO] scheduler started, poll interval %v", s.interval)

	if err := s.FetchCycle(ctx); err != nil {
		lgr.Printf("[ERROR] polling cycle failed: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Printf("[INFO] scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.FetchCycle(ctx); err != nil {
				lgr.Printf("[ERROR] polling cycle failed: %v", err)
			}
		}
	}
}

// FetchCycle polls every followed source once, sequentially. A failing
// source is logged and reported, and the cycle moves on to the next one.
func (s *Scheduler) FetchCycle(ctx context.Context) error {
	hostnames, err := s.registry.ListSourceHostnames(ctx)
	if err != nil {
		return fmt.Errorf("list source hostnames: %w", err)
	}

	lgr.Printf("[DEBUG] polling %d sources", len(hostnames))
	for _, hostname := range hostnames {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.pollSource(ctx, hostname, ""); err != nil {
			lgr.Printf("[WARN] source %s: %v", hostname, err)
			s.report(hostname, err)
		}
	}
	return nil
}

// BootstrapSubscriber runs the fetch/dedup pass for one source, delivering
// only to the given subscriber. Used right after a follow is accepted so the
// new subscriber gets the current batch. Items recorded here are naturally
// skipped by the next full cycle, so a race with it delivers at most once.
func (s *Scheduler) BootstrapSubscriber(ctx context.Context, hostname, subscriber string) error {
	if err := s.pollSource(ctx, hostname, subscriber); err != nil {
		s.report(hostname, err)
		return fmt.Errorf("bootstrap %s for %s: %w", hostname, subscriber, err)
	}
	return nil
}

// pollSource fetches one source and fans out its unseen items. The fetcher
// returns newest-first, so the batch is reversed to record and deliver in
// publication order. With only set, delivery bypasses the registry and goes
// to that single subscriber.
func (s *Scheduler) pollSource(ctx context.Context, hostname, only string) error {
	items, err := s.fetcher.Fetch(ctx, hostname)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	for _, item := range lo.Reverse(items) {
		isNew, err := s.seen.RecordIfNew(ctx, hostname, item)
		if err != nil {
			return fmt.Errorf("record item: %w", err)
		}
		if !isNew {
			continue
		}

		subscribers := []string{only}
		if only == "" {
			if subscribers, err = s.registry.ListSubscribers(ctx, hostname); err != nil {
				return fmt.Errorf("list subscribers: %w", err)
			}
		}
		if len(subscribers) == 0 {
			continue
		}

		act := s.composer.Compose(hostname, item)
		for _, subscriber := range subscribers {
			if err := s.deliverer.Deliver(ctx, act, subscriber); err != nil {
				lgr.Printf("[WARN] delivery to %s for %s failed: %v", subscriber, hostname, err)
				s.report(hostname, err)
			}
		}
	}
	return nil
}

func (s *Scheduler) report(hostname string, err error) {
	if s.onError != nil {
		s.onError(hostname, err)
	}
}
