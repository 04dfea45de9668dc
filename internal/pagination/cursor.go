// Package pagination implements the shared cursor contract used by
// both the thread list and the message list: pages are ordered
// newest-first by an epoch-seconds ordering key, and the cursor for
// the next page is the key of the oldest item already returned.
package pagination

import "time"

const (
	// DefaultLimit matches the page size clients were built against.
	DefaultLimit = 20
	// MaxLimit caps a client-supplied limit.
	MaxLimit = 100
)

// NoCursor is the "start from the newest" sentinel. A cursor of zero
// and an absent cursor are deliberately equivalent: epoch-zero is not
// a reachable ordering key for rows stamped with now(), so the
// precision loss is theoretical.
const NoCursor int64 = 0

// Time converts a cursor into the exclusive upper bound for the next
// page. ok is false for NoCursor, meaning no bound applies.
func Time(cursor int64) (upper time.Time, ok bool) {
	if cursor <= NoCursor {
		return time.Time{}, false
	}
	return time.Unix(cursor, 0), true
}

// FromTime derives the cursor value for an ordering key: floor to
// whole epoch seconds, matching what Time parses back.
func FromTime(t time.Time) int64 {
	return t.Unix()
}

// Next computes the next-page cursor from a returned page, given an
// accessor for each item's ordering key. Items must already be in
// descending key order, so the last item is the oldest. A nil return
// signals end of data (empty page).
func Next[T any](items []T, key func(T) time.Time) *int64 {
	if len(items) == 0 {
		return nil
	}
	c := FromTime(key(items[len(items)-1]))
	return &c
}

// ClampLimit normalizes a client-supplied page size.
func ClampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
