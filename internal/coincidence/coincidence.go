// Package coincidence implements the CoincidenceGrouper stage (§4.8):
// forms two-photon coincidences within a buffer by a pairwise time-window
// scan gated by the region coincidence policy, with an early break once
// photons (already time-sorted) fall outside the window plus OVERLAP
// slop.
package coincidence

import (
	"sync/atomic"

	"github.com/petsys-go/petsipipe/internal/config"
	"github.com/petsys-go/petsipipe/internal/event"
)

// Counters accumulates accounting for the coincidence stage; the
// "-1 sentinel for no second photon tried yet" from CoincidenceGrouper.hpp
// is not represented here, since nothing downstream inspects it — only
// Prompts (coincidences formed) is load-bearing per §8.4.
type Counters struct {
	Prompts uint64
}

// Grouper forms Coincidences from time-sorted GammaPhoton buffers.
type Grouper struct {
	cfg      *config.SystemConfig
	counters *Counters
}

// New builds a Grouper reading coincidence_time_window from cfg.
func New(cfg *config.SystemConfig, counters *Counters) *Grouper {
	return &Grouper{cfg: cfg, counters: counters}
}

// GroupBuffer scans in for coincident photon pairs and emits one
// Coincidence per accepted pair, ordered so photon[0] has the higher
// region id.
func (g *Grouper) GroupBuffer(in *event.Buffer[event.GammaPhoton]) *event.Buffer[event.Coincidence] {
	cWindow := g.cfg.SWCoincidenceTimeWindow
	photons := in.Events()
	n := len(photons)

	out := event.NewBuffer[event.Coincidence](in.SeqN, n).WithParent(in)
	out.TMin, out.TMax = in.TMin, in.TMax

	var prompts uint64

	for i := 0; i < n; i++ {
		p1 := &photons[i]
		for j := i + 1; j < n; j++ {
			p2 := &photons[j]
			if p2.Time-p1.Time > cWindow+event.Overlap {
				break
			}
			if !g.cfg.IsCoincidenceAllowed(p1.Region, p2.Region) {
				continue
			}
			if abs(p1.Time-p2.Time) > cWindow {
				continue
			}

			c := event.Coincidence{Valid: true, NPhotons: 2}
			if p1.Region > p2.Region {
				c.Photons[0], c.Photons[1] = p1, p2
			} else {
				c.Photons[0], c.Photons[1] = p2, p1
			}
			out.Append(c)
			prompts++
		}
	}

	if g.counters != nil {
		atomic.AddUint64(&g.counters.Prompts, prompts)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
