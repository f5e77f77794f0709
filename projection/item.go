// Package projection builds the local timeline of a scope from history pages
// and live deliveries. Handles ordering, deduplication and optimistic entries.
// Does not talk to the network or render anything.
package projection

import (
	"fmt"
	"time"
)

// FirstIndex is the sentinel position given to the oldest loaded item of a
// fresh timeline. Prepending older items moves the anchor below it so that
// already rendered items keep their absolute position.
const FirstIndex = 1_000_000

const DefaultPageSize = 10

// Item is anything a timeline can order and deduplicate.
type Item interface {
	ItemID() string
	OccurredAt() time.Time
	// FallbackKey identifies the item when no server id is known yet
	FallbackKey() string
}

// FallbackKey builds the identity used to reconcile an optimistic entry or an
// id-less live payload with its server copy.
func FallbackKey(actor string, at time.Time, text string) string {
	return fmt.Sprintf("%s|%d|%s", actor, at.UnixMilli(), text)
}
