// Package group implements the SimpleGrouper stage (§4.7): clusters
// time-sorted Hits within a buffer into GammaPhotons using a taken bitmap,
// a region-policy-gated forward scan, and a bubble sort by descending
// energy.
package group

import (
	"sync/atomic"

	"github.com/petsys-go/petsipipe/internal/config"
	"github.com/petsys-go/petsipipe/internal/event"
)

// Counters accumulates the accounting histogram §4.7 step 7 describes.
// Every field is updated with atomic add so concurrent unordered workers
// can share one Counters instance without a lock.
type Counters struct {
	HitsReceived        uint64
	HitsReceivedValid   uint64
	PhotonsFound        uint64
	PhotonsHitsOverflow uint64
	PhotonsHitsUnderflow uint64
	PhotonsLowEnergy    uint64
	PhotonsHighEnergy   uint64
	PhotonsPassed       uint64

	// PhotonsByHitCount[k] counts non-overflow photons with k+1 hits.
	PhotonsByHitCount [event.MaxHitsPerPhoton]uint64
}

// Grouper clusters Hits into GammaPhotons per the parameters held by a
// SystemConfig snapshot.
type Grouper struct {
	cfg      *config.SystemConfig
	counters *Counters
}

// New builds a Grouper reading its parameters from cfg and accumulating
// into counters (create one Counters per Grouper unless sharing stats
// across a fan-out is intended).
func New(cfg *config.SystemConfig, counters *Counters) *Grouper {
	return &Grouper{cfg: cfg, counters: counters}
}

func (g *Grouper) maxHits() int {
	m := g.cfg.SWTriggerGroupMaxHits
	if m <= 0 || m > event.MaxHitsPerPhoton {
		m = event.MaxHitsPerPhoton
	}
	return m
}

// GroupBuffer clusters in's hits into GammaPhotons, emitting one output
// record per cluster whose flags (§4.7 step 6) are all clear.
func (g *Grouper) GroupBuffer(in *event.Buffer[event.Hit]) *event.Buffer[event.GammaPhoton] {
	n := in.Len()
	hits := in.Events()

	timeWindow := g.cfg.SWTriggerGroupTimeWin
	radius2 := g.cfg.SWTriggerGroupMaxDist * g.cfg.SWTriggerGroupMaxDist
	minEnergy := g.cfg.SWTriggerGroupMinEnergy
	maxEnergy := g.cfg.SWTriggerGroupMaxEnergy
	maxHits := g.maxHits()
	minHits := g.cfg.SWTriggerGroupMinHits

	out := event.NewBuffer[event.GammaPhoton](in.SeqN, n).WithParent(in)
	out.TMin, out.TMax = in.TMin, in.TMax

	taken := make([]bool, n)
	cluster := make([]*event.Hit, maxHits)

	var local Counters

	for i := 0; i < n; i++ {
		local.HitsReceived++
		if !hits[i].Valid {
			continue
		}
		local.HitsReceivedValid++
		if taken[i] {
			continue
		}
		taken[i] = true

		seed := &hits[i]
		cluster[0] = seed
		nHits := 1
		var flags uint8

		for j := i + 1; j < n; j++ {
			h2 := &hits[j]
			if !h2.Valid || taken[j] {
				continue
			}
			if h2.Time-seed.Time > timeWindow+event.Overlap/2 {
				break
			}
			if !g.cfg.IsMultiHitAllowed(h2.Region, seed.Region) {
				continue
			}
			if abs(seed.Time-h2.Time) > timeWindow {
				continue
			}
			du, dv, dw := seed.X-h2.X, seed.Y-h2.Y, seed.Z-h2.Z
			if du*du+dv*dv+dw*dw > radius2 {
				continue
			}

			taken[j] = true
			if nHits < maxHits {
				cluster[nHits] = h2
			}
			nHits++
		}

		if nHits > maxHits {
			flags |= 0x1
			nHits = maxHits
		} else if nHits < minHits {
			flags |= 0x8
		}

		bubbleSortDescendingEnergy(cluster[:nHits])

		photon := event.GammaPhoton{
			NHits:  nHits,
			Region: cluster[0].Region,
			Time:   cluster[0].Time,
			X:      cluster[0].X,
			Y:      cluster[0].Y,
			Z:      cluster[0].Z,
			Energy: cluster[0].Energy,
			Hits:   append([]*event.Hit(nil), cluster[:nHits]...),
		}
		if photon.Energy < minEnergy {
			flags |= 0x2
		}
		if photon.Energy > maxEnergy {
			flags |= 0x4
		}

		local.PhotonsFound++
		if flags&0x1 == 0 {
			local.PhotonsByHitCount[photon.NHits-1]++
		} else {
			local.PhotonsHitsOverflow++
		}
		if flags&0x8 != 0 {
			local.PhotonsHitsUnderflow++
		}
		if flags&0x2 != 0 {
			local.PhotonsLowEnergy++
		}
		if flags&0x4 != 0 {
			local.PhotonsHighEnergy++
		}

		if flags == 0 {
			local.PhotonsPassed++
			photon.Valid = true
			out.Append(photon)
		}
	}

	g.merge(&local)
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// bubbleSortDescendingEnergy matches the source's explicit bubble sort:
// cluster sizes are bounded by max_hits (<=256), so a simple O(n^2) pass
// is both correct and fast enough, and keeps the algorithm legible.
func bubbleSortDescendingEnergy(hits []*event.Hit) {
	for {
		sorted := true
		for k := 1; k < len(hits); k++ {
			if hits[k-1].Energy < hits[k].Energy {
				hits[k-1], hits[k] = hits[k], hits[k-1]
				sorted = false
			}
		}
		if sorted {
			return
		}
	}
}

func (g *Grouper) merge(local *Counters) {
	if g.counters == nil {
		return
	}
	atomic.AddUint64(&g.counters.HitsReceived, local.HitsReceived)
	atomic.AddUint64(&g.counters.HitsReceivedValid, local.HitsReceivedValid)
	atomic.AddUint64(&g.counters.PhotonsFound, local.PhotonsFound)
	atomic.AddUint64(&g.counters.PhotonsHitsOverflow, local.PhotonsHitsOverflow)
	atomic.AddUint64(&g.counters.PhotonsHitsUnderflow, local.PhotonsHitsUnderflow)
	atomic.AddUint64(&g.counters.PhotonsLowEnergy, local.PhotonsLowEnergy)
	atomic.AddUint64(&g.counters.PhotonsHighEnergy, local.PhotonsHighEnergy)
	atomic.AddUint64(&g.counters.PhotonsPassed, local.PhotonsPassed)
	for i := range local.PhotonsByHitCount {
		if local.PhotonsByHitCount[i] != 0 {
			atomic.AddUint64(&g.counters.PhotonsByHitCount[i], local.PhotonsByHitCount[i])
		}
	}
}
