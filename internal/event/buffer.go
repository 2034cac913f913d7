package event

import "github.com/rs/xid"

// Buffer is an ordered, fixed-type batch of records flowing between pipeline
// stages. It carries the sequence number and time-range bookkeeping a
// downstream stage needs without inspecting individual records, and it
// keeps its parent buffer alive so that weak back-references held by its
// own records (Hit.Raw, GammaPhoton.Hits) stay valid for as long as this
// buffer itself is alive.
type Buffer[T any] struct {
	ID   xid.ID
	SeqN uint64

	// TMin, TMax bound (in clock units) the time range this buffer claims
	// responsibility for; they may only be tightened, never widened, by
	// downstream stages.
	TMin, TMax int64

	events []T

	// parent is the buffer this one was derived from, kept alive to back
	// weak references into it. It is opaque here (any) because a Buffer[T]
	// may parent a Buffer[U] of a different record type.
	parent any
}

// NewBuffer allocates an empty buffer with the given initial capacity and
// sequence number. capacity is a hint only: Append grows the backing slice
// the way append() does when it is exceeded.
func NewBuffer[T any](seqN uint64, capacity int) *Buffer[T] {
	return &Buffer[T]{
		ID:     xid.New(),
		SeqN:   seqN,
		events: make([]T, 0, capacity),
	}
}

// WithParent attaches a parent buffer whose lifetime this buffer extends.
// Releasing b releases its whole parent chain (Go's GC does this for free
// once nothing else references the parent; the field exists so the chain
// is explicit and inspectable, mirroring the ownership invariant in the
// data model).
func (b *Buffer[T]) WithParent(parent any) *Buffer[T] {
	b.parent = parent
	return b
}

// Parent returns the buffer this one was derived from, or nil for a buffer
// produced directly by the reader.
func (b *Buffer[T]) Parent() any {
	return b.parent
}

// Append adds one record, growing the backing storage by reallocation if
// the buffer is at capacity.
func (b *Buffer[T]) Append(e T) {
	b.events = append(b.events, e)
}

// Len returns the number of records currently used.
func (b *Buffer[T]) Len() int {
	return len(b.events)
}

// Cap returns the buffer's current backing capacity.
func (b *Buffer[T]) Cap() int {
	return cap(b.events)
}

// Free returns the number of additional records that fit before Append
// triggers a reallocation.
func (b *Buffer[T]) Free() int {
	return cap(b.events) - len(b.events)
}

// Events exposes the underlying slice for read/write in place (stages like
// the CoarseSorter reorder in place rather than copying).
func (b *Buffer[T]) Events() []T {
	return b.events
}

// Truncate shrinks Used to n, discarding the tail. It never widens the
// buffer and never reorders the surviving events.
func (b *Buffer[T]) Truncate(n int) {
	if n < len(b.events) {
		b.events = b.events[:n]
	}
}

// Filter keeps only the events for which keep returns true, preserving
// relative order, and returns the number removed.
func (b *Buffer[T]) Filter(keep func(T) bool) int {
	out := b.events[:0]
	removed := 0
	for _, e := range b.events {
		if keep(e) {
			out = append(out, e)
		} else {
			removed++
		}
	}
	b.events = out
	return removed
}
