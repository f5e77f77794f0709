//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=../mocks/mock_history.go -package=mocks
package contract

import (
	"context"
)

// PageFetcher returns one page of a scope's history, newest-first,
// exactly as the server delivers it. Cursor 0 is the most recent page.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, scope string, cursor, size int) ([]T, error)
}
