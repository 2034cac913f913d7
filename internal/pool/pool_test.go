package pool

import (
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllJobs(t *testing.T) {
	p := New(4)
	p.ClientIncrease()
	defer p.ClientDecrease()

	var n int64
	handles := make([]*Handle, 0, 100)
	for i := 0; i < 100; i++ {
		handles = append(handles, p.QueueJob(func() {
			atomic.AddInt64(&n, 1)
		}))
	}
	for _, h := range handles {
		h.Wait()
	}
	if got := atomic.LoadInt64(&n); got != 100 {
		t.Fatalf("n = %d, want 100", got)
	}
}

func TestPoolWorkerCountClampedToRequested(t *testing.T) {
	p := New(1)
	if p.Workers() != 1 {
		t.Fatalf("Workers() = %d, want 1", p.Workers())
	}
}

func TestPoolQueueLengthClampedToAtLeastOne(t *testing.T) {
	p := New(1)
	if cap(p.queue) < 1 {
		t.Fatalf("queue capacity = %d, want >= 1", cap(p.queue))
	}
}

func TestPoolReferenceCountedLifetimeAllowsSharedUse(t *testing.T) {
	p := New(2)
	p.ClientIncrease()
	p.ClientIncrease()

	h := p.QueueJob(func() {})
	h.Wait()

	p.ClientDecrease() // still one client left, pool must keep running
	h2 := p.QueueJob(func() {})
	h2.Wait()

	p.ClientDecrease() // now drains for real
}
