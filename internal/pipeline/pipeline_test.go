package pipeline

import (
	"sync"
	"testing"

	"github.com/petsys-go/petsipipe/internal/event"
)

type recordingSink[T any] struct {
	mu    sync.Mutex
	seqNs []uint64
}

func (s *recordingSink[T]) PushT0(epoch int64) {}
func (s *recordingSink[T]) PushEvents(b *event.Buffer[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqNs = append(s.seqNs, b.SeqN)
}
func (s *recordingSink[T]) Finish()        {}
func (s *recordingSink[T]) Report() string { return "" }

func TestUnorderedHandlerForwardsImmediately(t *testing.T) {
	sink := &recordingSink[int]{}
	h := NewUnorderedHandler[int, int](sink, func(b *event.Buffer[int]) *event.Buffer[int] {
		return b
	})
	b := event.NewBuffer[int](7, 1)
	b.Append(1)
	h.PushEvents(b)
	if len(sink.seqNs) != 1 || sink.seqNs[0] != 7 {
		t.Fatalf("sink.seqNs = %v, want [7]", sink.seqNs)
	}
}

func TestOrderedHandlerRestoresReverseSubmission(t *testing.T) {
	sink := &recordingSink[int]{}
	h := NewOrderedHandler[int, int](sink, func(b *event.Buffer[int]) *event.Buffer[int] {
		return b
	})

	b0 := event.NewBuffer[int](0, 1)
	b1 := event.NewBuffer[int](1, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.PushEvents(b1)
	}()
	go func() {
		defer wg.Done()
		h.PushEvents(b0)
	}()
	wg.Wait()
	h.FinishAt(1)

	if len(sink.seqNs) != 2 || sink.seqNs[0] != 0 || sink.seqNs[1] != 1 {
		t.Fatalf("sink.seqNs = %v, want [0 1]", sink.seqNs)
	}
}

func TestOrderedHandlerPreservesOrderAcrossManyBuffers(t *testing.T) {
	sink := &recordingSink[int]{}
	h := NewOrderedHandler[int, int](sink, func(b *event.Buffer[int]) *event.Buffer[int] {
		return b
	})

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := n - 1; i >= 0; i-- {
		seq := uint64(i)
		go func() {
			defer wg.Done()
			h.PushEvents(event.NewBuffer[int](seq, 1))
		}()
	}
	wg.Wait()
	h.FinishAt(n - 1)

	if len(sink.seqNs) != n {
		t.Fatalf("got %d buffers, want %d", len(sink.seqNs), n)
	}
	for i, s := range sink.seqNs {
		if s != uint64(i) {
			t.Fatalf("sink.seqNs[%d] = %d, want %d; full=%v", i, s, i, sink.seqNs)
		}
	}
}
