package sort

import (
	"math/rand"
	"testing"

	"github.com/petsys-go/petsipipe/internal/event"
)

func TestSortBufferIsAscendingAndPreservesMultiset(t *testing.T) {
	b := event.NewBuffer[event.RawHit](0, 8)
	times := []int64{50, 10, 30, 10, 90, 0, 20, 5}
	for _, tm := range times {
		b.Append(event.RawHit{Time: tm, ChannelID: uint64(tm)})
	}

	SortBuffer(b)

	out := b.Events()
	for i := 1; i < len(out); i++ {
		if out[i-1].Time > out[i].Time {
			t.Fatalf("not sorted at %d: %v", i, out)
		}
	}

	seen := map[int64]int{}
	for _, h := range out {
		seen[h.Time]++
	}
	for _, tm := range times {
		seen[tm]--
	}
	for tm, n := range seen {
		if n != 0 {
			t.Fatalf("multiset mismatch for time %d: delta %d", tm, n)
		}
	}
}

func TestSortBufferRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	b := event.NewBuffer[event.RawHit](0, 200)
	for i := 0; i < 200; i++ {
		b.Append(event.RawHit{Time: int64(r.Intn(1000))})
	}
	SortBuffer(b)
	out := b.Events()
	for i := 1; i < len(out); i++ {
		if out[i-1].Time > out[i].Time {
			t.Fatalf("not sorted at %d", i)
		}
	}
}
