package main

import (
	"sync"
	"time"

	"github.com/petsys-go/petsipipe/internal/decode"
	"github.com/petsys-go/petsipipe/internal/event"
	"github.com/petsys-go/petsipipe/internal/metrics"
	"github.com/petsys-go/petsipipe/internal/pipeline"
	"github.com/petsys-go/petsipipe/internal/pool"
)

// poolDecodeSink is the reader's downstream target: it submits each
// UndecodedHit buffer's decode work to the pool so multiple buffers decode
// concurrently, then forwards the decoded RawHit buffer to next on
// whichever pool worker finished it. Buffers may therefore arrive at next
// out of sequence order — the first stage downstream of the pool that
// needs order restored (the coincidence grouper) is wrapped in an
// OrderedHandler for exactly this reason.
type poolDecodeSink struct {
	pool   *pool.Pool
	mode   decode.ChannelMode
	next   pipeline.Sink[event.RawHit]
	timers *metrics.StageTimers

	mu       sync.Mutex
	handles  []*pool.Handle
	lastSeen uint64
	sawAny   bool
}

func newPoolDecodeSink(p *pool.Pool, mode decode.ChannelMode, next pipeline.Sink[event.RawHit], timers *metrics.StageTimers) *poolDecodeSink {
	return &poolDecodeSink{pool: p, mode: mode, next: next, timers: timers}
}

func (d *poolDecodeSink) PushT0(epoch int64) {
	d.next.PushT0(epoch)
}

func (d *poolDecodeSink) PushEvents(b *event.Buffer[event.UndecodedHit]) {
	d.mu.Lock()
	if !d.sawAny || b.SeqN > d.lastSeen {
		d.lastSeen = b.SeqN
		d.sawAny = true
	}
	d.mu.Unlock()

	h := d.pool.QueueJob(func() {
		start := time.Now()
		out := decode.DecodeBuffer(b, d.mode)
		d.timers.Observe("decode", time.Since(start))
		d.next.PushEvents(out)
	})

	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.mu.Unlock()
}

func (d *poolDecodeSink) Finish() {}

func (d *poolDecodeSink) Report() string { return d.next.Report() }

// wait blocks until every dispatched decode job has completed.
func (d *poolDecodeSink) wait() {
	d.mu.Lock()
	handles := d.handles
	d.mu.Unlock()
	for _, h := range handles {
		h.Wait()
	}
}

// lastSeqN returns the highest sequence number pushed to this sink.
func (d *poolDecodeSink) lastSeqN() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeen
}
