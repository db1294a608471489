package movement

import (
	"slices"
	"time"
)

// Summary is a merged, newest-first movement feed.
type Summary struct {
	Movements []Movement `json:"movements"`
	Added     []Movement `json:"-"`
	Unread    int        `json:"unread"`
}

// Summarize merges fetched into stored. A fetched movement with an ID is
// new when that ID is not stored; one without an ID is new when its
// (Code, Date) pair is not stored. New movements start Unread, get RecordedAt = now and, if they have none, an ID from newID.
// Stored movements keep their state. The result is sorted by Date descending,
// ties keeping stored order followed by fetch order.
//
// Neither input slice is modified.
func Summarize(stored, fetched []Movement, now time.Time, newID func() string) Summary {
	merged := make([]Movement, 0, len(stored)+len(fetched))
	merged = append(merged, stored...)

	ids := make(map[string]struct{}, len(stored))
	keys := make(map[compositeKey]struct{}, len(stored))
	for _, m := range stored {
		if m.ID != "" {
			ids[m.ID] = struct{}{}
		}
		keys[m.composite()] = struct{}{}
	}

	var added []Movement
	for _, m := range fetched {
		k := m.composite()
		if m.ID != "" {
			if _, ok := ids[m.ID]; ok {
				continue
			}
		} else {
			if _, ok := keys[k]; ok {
				continue
			}
			if newID != nil {
				m.ID = newID()
			}
		}
		m.State = Unread
		m.RecordedAt = now
		if m.ID != "" {
			ids[m.ID] = struct{}{}
		}
		keys[k] = struct{}{}
		merged = append(merged, m)
		added = append(added, m)
	}

	SortNewestFirst(merged)
	return Summary{Movements: merged, Added: added, Unread: CountUnread(merged)}
}

// SortNewestFirst orders ms by Date descending, stable.
func SortNewestFirst(ms []Movement) {
	slices.SortStableFunc(ms, func(a, b Movement) int {
		return b.Date.Compare(a.Date)
	})
}

// CountUnread counts movements not yet acknowledged.
func CountUnread(ms []Movement) int {
	n := 0
	for _, m := range ms {
		if !m.State.IsRead() {
			n++
		}
	}
	return n
}

// MarkRead acknowledges every unread movement of caseID in place and
// returns how many changed.
func MarkRead(ms []Movement, caseID string) int {
	n := 0
	for i := range ms {
		if ms[i].CaseID != caseID {
			continue
		}
		if ms[i].State.MarkRead() {
			n++
		}
	}
	return n
}
