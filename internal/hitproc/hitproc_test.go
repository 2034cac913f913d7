package hitproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/petsys-go/petsipipe/internal/config"
	"github.com/petsys-go/petsipipe/internal/event"
)

func writeTable(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestHitProcessorScenarioS1(t *testing.T) {
	dir := t.TempDir()
	tdcPath := writeTable(t, dir, "tdc.tsv",
		"0\t0\t0\t0\t0\tT\t0\t0\t0\t1\n0\t0\t0\t0\t0\tE\t0\t0\t0\t1\n")

	cfg, err := config.Load(config.Paths{TDCCalibration: tdcPath}, config.LoadTDCCalibration)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := New(cfg, false, false)

	raw1 := event.RawHit{Valid: true, ChannelID: 0, TacID: 0, FrameID: 0, TCoarse: 10, ECoarse: 20, Time: 10, TimeEnd: 20}
	raw2 := event.RawHit{Valid: true, ChannelID: 0, TacID: 0, FrameID: 0, TCoarse: 15, ECoarse: 25, Time: 15, TimeEnd: 25}

	h1 := p.Process(&raw1)
	h2 := p.Process(&raw2)

	if !h1.Valid || h1.Time != 10 || h1.TimeEnd != 20 || h1.Energy != 10 {
		t.Fatalf("h1 = %+v, want valid time=10 time_end=20 energy=10", h1)
	}
	if !h2.Valid || h2.Time != 15 || h2.TimeEnd != 25 || h2.Energy != 10 {
		t.Fatalf("h2 = %+v, want valid time=15 time_end=25 energy=10", h2)
	}
}

func TestHitProcessorScenarioS5NegativeRegionDisablesChannel(t *testing.T) {
	dir := t.TempDir()
	cmapPath := writeTable(t, dir, "cmap.tsv", "0\t0\t0\t0\t-1\t0\t0\t0\t0\t0\n")

	cfg, err := config.Load(config.Paths{ChannelMap: cmapPath}, config.LoadChannelMap)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := New(cfg, false, false)
	raw := event.RawHit{Valid: true, ChannelID: 0}
	h := p.Process(&raw)

	if h.Region >= 0 {
		t.Fatalf("Region = %d, want negative (disabled)", h.Region)
	}
	if !cfg.HasChannelMap {
		t.Fatalf("expected channel map to be loaded")
	}
	if cfg.IsMultiHitAllowed(h.Region, h.Region) {
		t.Fatalf("negative region must never be multihit-allowed")
	}
	if cfg.IsCoincidenceAllowed(h.Region, h.Region) {
		t.Fatalf("negative region must never be coincidence-allowed")
	}
}

func TestHitProcessorMarksInvalidWhenRequiredCalibrationMissing(t *testing.T) {
	cfg := config.New()
	p := New(cfg, true, true)

	raw := event.RawHit{Valid: true, ChannelID: 7, QDCMode: true}
	h := p.Process(&raw)
	if h.Valid {
		t.Fatalf("expected Hit to be invalidated by missing required QDC calibration")
	}
}
