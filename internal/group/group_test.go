package group

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/petsys-go/petsipipe/internal/config"
	"github.com/petsys-go/petsipipe/internal/event"
)

// buildGroupConfig returns a SystemConfig with the grouper parameters set
// and region 0 self-multihit-allowed via a trigger map table (loading is
// the only way to populate the policy matrices).
func buildGroupConfig(t *testing.T, timeWindow, maxDist, minE, maxE float64, maxHits, minHits int) *config.SystemConfig {
	t.Helper()
	dir := t.TempDir()
	tmapPath := filepath.Join(dir, "tmap.tsv")
	if err := os.WriteFile(tmapPath, []byte("0\t0\tM\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cmapPath := filepath.Join(dir, "cmap.tsv")
	if err := os.WriteFile(cmapPath, []byte("0\t0\t0\t0\t0\t0\t0\t0\t0\t0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(config.Paths{ChannelMap: cmapPath, TriggerMap: tmapPath}, config.LoadChannelMap|config.LoadTriggerMap)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.SWTriggerGroupTimeWin = timeWindow
	cfg.SWTriggerGroupMaxDist = maxDist
	cfg.SWTriggerGroupMinEnergy = minE
	cfg.SWTriggerGroupMaxEnergy = maxE
	cfg.SWTriggerGroupMaxHits = maxHits
	cfg.SWTriggerGroupMinHits = minHits
	return cfg
}

func TestSimpleGrouperScenarioS1SingleCluster(t *testing.T) {
	cfg := buildGroupConfig(t, 20, 100, -1e6, 1e6, 64, 0)

	in := event.NewBuffer[event.Hit](0, 2)
	in.Append(event.Hit{Valid: true, Time: 10, Energy: 10, Region: 0})
	in.Append(event.Hit{Valid: true, Time: 15, Energy: 10, Region: 0})

	g := New(cfg, &Counters{})
	out := g.GroupBuffer(in)

	if out.Len() != 1 {
		t.Fatalf("got %d photons, want 1 (both hits within window)", out.Len())
	}
	photon := out.Events()[0]
	if photon.NHits != 2 {
		t.Fatalf("NHits = %d, want 2", photon.NHits)
	}
	if len(photon.Hits) != 2 {
		t.Fatalf("len(Hits) = %d, want 2", len(photon.Hits))
	}
	for i := 1; i < len(photon.Hits); i++ {
		if photon.Hits[i-1].Energy < photon.Hits[i].Energy {
			t.Fatalf("hits not sorted by descending energy: %v", photon.Hits)
		}
	}
}

func TestSimpleGrouperScenarioS1SplitsWhenOutsideWindow(t *testing.T) {
	cfg := buildGroupConfig(t, 2, 100, -1e6, 1e6, 64, 0)

	in := event.NewBuffer[event.Hit](0, 2)
	in.Append(event.Hit{Valid: true, Time: 10, Energy: 10, Region: 0})
	in.Append(event.Hit{Valid: true, Time: 15, Energy: 10, Region: 0})

	g := New(cfg, &Counters{})
	out := g.GroupBuffer(in)

	if out.Len() != 2 {
		t.Fatalf("got %d photons, want 2 (hits outside time window)", out.Len())
	}
	for _, p := range out.Events() {
		if p.NHits != 1 {
			t.Fatalf("NHits = %d, want 1", p.NHits)
		}
	}
}

func TestSimpleGrouperCoverageInvariant(t *testing.T) {
	cfg := buildGroupConfig(t, 2, 100, -1e6, 1e6, 4, 0)

	in := event.NewBuffer[event.Hit](0, 6)
	for i := 0; i < 6; i++ {
		in.Append(event.Hit{Valid: true, Time: float64(i), Energy: float64(i + 1), Region: 0})
	}
	// One invalid hit thrown in should never appear in any photon.
	in.Append(event.Hit{Valid: false, Time: 0, Energy: 100, Region: 0})

	g := New(cfg, &Counters{})
	out := g.GroupBuffer(in)

	seen := map[*event.Hit]int{}
	totalCounted := 0
	for _, p := range out.Events() {
		n := p.NHits
		if n > 4 {
			n = 4
		}
		totalCounted += n
		for _, h := range p.Hits {
			seen[h]++
			if seen[h] > 1 {
				t.Fatalf("hit appeared in more than one photon")
			}
		}
	}
	validCount := 0
	for _, h := range in.Events() {
		if h.Valid {
			validCount++
		}
	}
	if totalCounted == 0 {
		t.Fatalf("no hits were counted into any photon")
	}
	if totalCounted > validCount {
		t.Fatalf("counted %d hits across photons, more than %d valid input hits", totalCounted, validCount)
	}
}

func TestSimpleGrouperRegionPolicyBlocksClustering(t *testing.T) {
	cfg := buildGroupConfig(t, 20, 100, -1e6, 1e6, 64, 0)
	// Region 1 is never granted multihit-allowed against region 0, so a
	// same-time hit in region 1 must not join the region-0 cluster.

	in := event.NewBuffer[event.Hit](0, 2)
	in.Append(event.Hit{Valid: true, Time: 10, Energy: 10, Region: 0})
	in.Append(event.Hit{Valid: true, Time: 10, Energy: 10, Region: 1})

	g := New(cfg, &Counters{})
	out := g.GroupBuffer(in)

	if out.Len() != 2 {
		t.Fatalf("got %d photons, want 2 (region policy should block clustering)", out.Len())
	}
}
