// Package pipeline defines the Sink/Source/Handler capability sets that
// compose the stage chain, and the two delivery disciplines (unordered and
// ordered) stages are built from. Stages are composed by holding the
// downstream capability rather than by subclassing, per the "policy
// object, not a base class" guidance for ordering discipline.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/petsys-go/petsipipe/internal/event"
)

// Sink is the downstream-facing contract every stage target implements:
// an epoch announcement, a stream of buffers, and a drain signal.
type Sink[T any] interface {
	PushT0(epoch int64)
	PushEvents(b *event.Buffer[T])
	Finish()
	Report() string
}

// Source owns exactly one downstream Sink and forwards lifecycle calls to
// it; concrete sources embed this to get PushT0/Finish for free while
// supplying their own PushEvents.
type Source[T any] struct {
	Next Sink[T]
}

func (s *Source[T]) PushT0(epoch int64) {
	if s.Next != nil {
		s.Next.PushT0(epoch)
	}
}

func (s *Source[T]) Finish() {
	if s.Next != nil {
		s.Next.Finish()
	}
}

// Handle is the per-stage transform: given an input buffer, produce the
// corresponding output buffer (or nil to drop it, e.g. an all-invalid
// buffer that a stage chooses not to forward).
type Handle[I, O any] func(b *event.Buffer[I]) *event.Buffer[O]

// UnorderedHandler calls Handle on the calling goroutine and forwards the
// result immediately. It is safe for concurrent PushEvents calls from
// distinct pool workers as long as Handle itself touches no shared mutable
// state beyond what SystemConfig and friends already guarantee read-only.
type UnorderedHandler[I, O any] struct {
	Source[O]
	Handle Handle[I, O]
}

func NewUnorderedHandler[I, O any](next Sink[O], handle Handle[I, O]) *UnorderedHandler[I, O] {
	return &UnorderedHandler[I, O]{Source: Source[O]{Next: next}, Handle: handle}
}

func (h *UnorderedHandler[I, O]) PushEvents(b *event.Buffer[I]) {
	out := h.Handle(b)
	if out == nil {
		return
	}
	if h.Next != nil {
		h.Next.PushEvents(out)
	}
}

func (h *UnorderedHandler[I, O]) Report() string {
	if h.Next != nil {
		return h.Next.Report()
	}
	return ""
}

// OrderedHandler blocks push_events(b) until b.SeqN == nextExpected, then
// processes, forwards and releases, signalling whichever waiter is now next. It
// mirrors OrderedEventHandler.hpp's wait-map discipline, specialised to Go:
// each caller already owns its own buffer on its own goroutine stack, so
// there is no need for a pending map keyed by seq_n — the calling goroutine
// simply waits for its turn, does the work and the downstream forward
// itself, then advances and wakes every other waiter to re-check.
type OrderedHandler[I, O any] struct {
	Source[O]
	Handle Handle[I, O]

	mu           sync.Mutex
	cond         *sync.Cond
	nextExpected uint64
}

func NewOrderedHandler[I, O any](next Sink[O], handle Handle[I, O]) *OrderedHandler[I, O] {
	h := &OrderedHandler[I, O]{
		Source: Source[O]{Next: next},
		Handle: handle,
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// PushEvents blocks the calling goroutine until b.SeqN == next_expected,
// invokes Handle on the calling goroutine (per spec.md's "worker thread
// that delivered the buffer" model), forwards the result downstream, and
// only then advances, so downstream sees buffers in seq_n order.
func (h *OrderedHandler[I, O]) PushEvents(b *event.Buffer[I]) {
	h.mu.Lock()
	for b.SeqN != h.nextExpected {
		h.cond.Wait()
	}
	h.mu.Unlock()

	out := h.Handle(b)
	if out != nil && h.Next != nil {
		h.Next.PushEvents(out)
	}

	h.mu.Lock()
	h.nextExpected++
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Finish forwards Finish downstream without waiting for any buffer; it
// assumes every buffer has already been delivered. Callers that know the
// last seq_n use FinishAt, which waits for it first.
func (h *OrderedHandler[I, O]) Finish() {
	if h.Next != nil {
		h.Next.Finish()
	}
}

// FinishAt blocks until next_expected has passed lastSeqN, i.e. every
// buffer up to and including lastSeqN has been processed, then drains
// downstream. Use this when the producer knows the final sequence number.
func (h *OrderedHandler[I, O]) FinishAt(lastSeqN uint64) {
	h.mu.Lock()
	for h.nextExpected <= lastSeqN {
		h.cond.Wait()
	}
	h.mu.Unlock()
	if h.Next != nil {
		h.Next.Finish()
	}
}

func (h *OrderedHandler[I, O]) Report() string {
	if h.Next != nil {
		return h.Next.Report()
	}
	return ""
}

// String satisfies fmt.Stringer for diagnostics in logs.
func (h *OrderedHandler[I, O]) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("OrderedHandler{next_expected=%d}", h.nextExpected)
}
