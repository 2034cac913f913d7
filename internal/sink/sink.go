// Package sink provides terminal pipeline.Sink implementations: the
// discard sink used for dry runs or benchmarking, and the counting sink
// that actually accumulates coincidences for the CLI to report.
package sink

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petsys-go/petsipipe/internal/event"
)

// Null discards everything pushed to it, mirroring the source's
// NullSink<T>: PushEvents just drops the buffer, letting Go's GC reclaim
// it once this call returns.
type Null[T any] struct{}

func (Null[T]) PushT0(int64)                {}
func (Null[T]) PushEvents(*event.Buffer[T]) {}
func (Null[T]) Finish()                     {}
func (Null[T]) Report() string              { return "" }

// Counting accumulates coincidences and basic size accounting, acting as
// the default terminal stage for a run: enough to answer "how many
// coincidences came out the other end" without requiring a full output
// writer.
type Counting struct {
	mu sync.Mutex

	t0 int64

	coincidences uint64
	buffers      uint64

	OnBuffer func(b *event.Buffer[event.Coincidence])
}

// NewCounting builds a Counting sink. onBuffer, if non-nil, is invoked for
// every pushed buffer (e.g. to stream records to an output writer) before
// the buffer's count is folded into the running total.
func NewCounting(onBuffer func(b *event.Buffer[event.Coincidence])) *Counting {
	return &Counting{OnBuffer: onBuffer}
}

func (c *Counting) PushT0(epoch int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t0 = epoch
}

func (c *Counting) PushEvents(b *event.Buffer[event.Coincidence]) {
	if c.OnBuffer != nil {
		c.OnBuffer(b)
	}
	atomic.AddUint64(&c.coincidences, uint64(b.Len()))
	atomic.AddUint64(&c.buffers, 1)
}

func (c *Counting) Finish() {}

// Report summarizes the run the way the source's report() hooks print a
// one-line accounting summary to stderr at shutdown.
func (c *Counting) Report() string {
	return fmt.Sprintf("coincidences=%d buffers=%d t0=%d",
		atomic.LoadUint64(&c.coincidences), atomic.LoadUint64(&c.buffers), c.t0)
}

// Coincidences returns the running coincidence count.
func (c *Counting) Coincidences() uint64 {
	return atomic.LoadUint64(&c.coincidences)
}
