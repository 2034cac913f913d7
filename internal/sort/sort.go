// Package sort implements the CoarseSorter stage (§4.4): within each
// buffer, reorder RawHits by ascending time. Adjacent buffers are never
// cross-sorted; the OVERLAP tolerance downstream stages apply absorbs the
// resulting frame-boundary coarseness.
package sort

import (
	stdsort "sort"

	"github.com/petsys-go/petsipipe/internal/event"
)

// SortBuffer reorders b's events in place by ascending Time and returns b.
// Stability is not required per §4.4, so sort.Slice (not SliceStable) is
// the idiomatic and faster choice here.
func SortBuffer(b *event.Buffer[event.RawHit]) *event.Buffer[event.RawHit] {
	events := b.Events()
	stdsort.Slice(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
	return b
}
