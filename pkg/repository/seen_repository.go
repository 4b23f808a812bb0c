package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/feedbridge/feedbridge/pkg/domain"
)

// SeenRepository persists which (source, item identity) pairs have already
// been notified. Rows are insert-only; existence of a row is the sole signal
// of "already seen".
type SeenRepository struct {
	db *sqlx.DB
}

// NewSeenRepository creates a new seen-records repository
func NewSeenRepository(db *sqlx.DB) *SeenRepository {
	return &SeenRepository{db: db}
}

// RecordIfNew atomically records the item's identity for the given source.
// Returns true iff the insert created a new row, i.e. the item has not been
// seen before. INSERT OR IGNORE against the unique index guarantees that
// concurrent calls for the same key cannot both report the item as new.
func (r *SeenRepository) RecordIfNew(ctx context.Context, hostname string, item domain.Item) (bool, error) {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	var isNew bool
	err := retrier.Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO seen (hostname, item_identity) VALUES (?, ?)",
			hostname, item.Identity())
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("record seen item: %w", err)}
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		isNew = affected == 1
		return nil
	})
	return isNew, err
}

// Count returns the number of recorded items for a source, used by the status
// endpoint.
func (r *SeenRepository) Count(ctx context.Context, hostname string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM seen WHERE hostname = ?", hostname); err != nil {
		return 0, fmt.Errorf("count seen items: %w", err)
	}
	return n, nil
}
