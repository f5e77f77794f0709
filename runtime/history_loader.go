// Package runtime owns the lifetime of a live scope: history loading,
// live subscription and the switch from one scope to the next.
package runtime

import (
	"classroom-live/contract"
	"classroom-live/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// HistoryLoader turns the server's newest-first pages into the oldest-first
// pages a timeline prepends.
type HistoryLoader[T any] struct {
	log     *slog.Logger
	fetcher contract.PageFetcher[T]
}

func NewHistoryLoader[T any](log *slog.Logger, fetcher contract.PageFetcher[T]) *HistoryLoader[T] {
	return &HistoryLoader[T]{log: log, fetcher: fetcher}
}

// Load fetches the page at cursor. Every failure is reported as
// errors.ErrHistoryUnavailable so callers stop paginating.
func (l *HistoryLoader[T]) Load(ctx context.Context, scope string, cursor, size int) ([]T, error) {
	page, err := l.fetcher.FetchPage(ctx, scope, cursor, size)
	if err != nil {
		l.log.Warn("History page unavailable", "scope", scope, "cursor", cursor, "error", err)
		return nil, fmt.Errorf("%w: %w", errors.ErrHistoryUnavailable, err)
	}
	l.log.Debug("History page loaded", "scope", scope, "cursor", cursor, "size", len(page))
	return lo.Reverse(page), nil
}
