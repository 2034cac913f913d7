package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCollectorExportsTaggedFields(t *testing.T) {
	c := NewCollector("petsipipe", prometheus.Labels{"run": "test"}, func() Stats {
		return Stats{FramesRead: 42, PhotonsFound: 7}
	})

	descs := make(chan *prometheus.Desc, 32)
	c.Describe(descs)
	close(descs)
	var nDescs int
	for range descs {
		nDescs++
	}
	if nDescs != 10 {
		t.Fatalf("got %d descriptors, want 10 tagged fields", nDescs)
	}

	metrics := make(chan prometheus.Metric, 32)
	c.Collect(metrics)
	close(metrics)

	var sawFrames, sawPhotons bool
	for m := range metrics {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("Write: %v", err)
		}
		desc := m.Desc().String()
		switch {
		case contains(desc, "frames_read"):
			sawFrames = true
			if pb.GetCounter().GetValue() != 42 {
				t.Fatalf("frames_read = %v, want 42", pb.GetCounter().GetValue())
			}
		case contains(desc, "photons_found"):
			sawPhotons = true
			if pb.GetCounter().GetValue() != 7 {
				t.Fatalf("photons_found = %v, want 7", pb.GetCounter().GetValue())
			}
		}
	}
	if !sawFrames || !sawPhotons {
		t.Fatalf("missing expected metrics: frames=%v photons=%v", sawFrames, sawPhotons)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

func TestParseTagHandlesQuotedCommas(t *testing.T) {
	got := parseTag("name=foo,prom_type=gauge,prom_help='a, b, c'")
	if got["name"] != "foo" {
		t.Fatalf("name = %q", got["name"])
	}
	if got["prom_help"] != "a, b, c" {
		t.Fatalf("prom_help = %q", got["prom_help"])
	}
}
