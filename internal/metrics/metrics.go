// Package metrics exposes pipeline accounting as Prometheus metrics,
// following the teacher's tag-driven reflection style for turning a plain
// Go struct into a set of described metrics without hand-writing one
// Describe/Collect case per field.
package metrics

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the accounting snapshot a Collector publishes. Fields are
// tagged with `stat:"name=...,prom_type=gauge|counter,prom_help='...'"`,
// mirroring RawTCPInfo/TCPInfo's `tcpi:"..."` tag grammar.
type Stats struct {
	FramesRead        uint64  `stat:"name=frames_read,prom_type=counter,prom_help='Frames read from the raw acquisition file.'"`
	FramesLostAll     uint64  `stat:"name=frames_lost_all,prom_type=counter,prom_help='Frames reported entirely lost by the DAQ.'"`
	FramesLostPartial uint64  `stat:"name=frames_lost_partial,prom_type=counter,prom_help='Frames reported partially lost by the DAQ.'"`
	EventsDecoded     uint64  `stat:"name=events_decoded,prom_type=counter,prom_help='Raw hardware event words decoded.'"`
	HitsValid         uint64  `stat:"name=hits_valid,prom_type=counter,prom_help='Hits that passed calibration validity checks.'"`
	PhotonsFound      uint64  `stat:"name=photons_found,prom_type=counter,prom_help='Gamma photon clusters formed by the grouper.'"`
	PhotonsOverflow   uint64  `stat:"name=photons_hits_overflow,prom_type=counter,prom_help='Photon clusters truncated at the maximum hit count.'"`
	PhotonsUnderflow  uint64  `stat:"name=photons_hits_underflow,prom_type=counter,prom_help='Photon clusters rejected for having too few hits.'"`
	CoincidencesFound uint64  `stat:"name=coincidences_found,prom_type=counter,prom_help='Two-photon coincidences formed.'"`
	QueueDepth        float64 `stat:"name=pool_queue_depth,prom_type=gauge,prom_help='Current depth of the worker pool job queue.'"`
}

type fieldInfo struct {
	index   int
	desc    *prometheus.Desc
	valType prometheus.ValueType
}

// Collector adapts a Stats-producing callback into a prometheus.Collector,
// the way the teacher's TCPInfoCollector adapts a per-connection
// GetTCPInfo call: Collect is invoked synchronously by the Prometheus
// registry's scrape, not on a background ticker.
type Collector struct {
	mu     sync.Mutex
	prefix string
	labels prometheus.Labels
	source func() Stats
	fields []fieldInfo
}

// NewCollector builds a Collector that calls source on every scrape to
// obtain the current Stats snapshot.
func NewCollector(prefix string, constLabels prometheus.Labels, source func() Stats) *Collector {
	c := &Collector{prefix: prefix, labels: constLabels, source: source}
	c.buildFields()
	return c
}

func (c *Collector) buildFields() {
	t := reflect.TypeOf(Stats{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("stat")
		if tag == "" {
			continue
		}
		opts := parseTag(tag)
		name := opts["name"]
		if name == "" {
			continue
		}
		vt := prometheus.GaugeValue
		if opts["prom_type"] == "counter" {
			vt = prometheus.CounterValue
		}
		help := strings.Trim(opts["prom_help"], "'")
		desc := prometheus.NewDesc(c.prefix+"_"+name, help, nil, c.labels)
		c.fields = append(c.fields, fieldInfo{index: i, desc: desc, valType: vt})
	}
}

// parseTag splits a "k=v,k2=v2" tag body, tolerating single-quoted values
// that themselves contain commas (the help strings do).
func parseTag(tag string) map[string]string {
	out := make(map[string]string)
	var key, val strings.Builder
	inVal, inQuote := false, false
	flush := func() {
		if key.Len() > 0 {
			out[key.String()] = val.String()
		}
		key.Reset()
		val.Reset()
		inVal = false
	}
	for _, r := range tag {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == '=' && !inVal && !inQuote:
			inVal = true
		case r == ',' && !inQuote:
			flush()
		default:
			if inVal {
				val.WriteRune(r)
			} else {
				key.WriteRune(r)
			}
		}
	}
	flush()
	return out
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, f := range c.fields {
		descs <- f.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.source()
	v := reflect.ValueOf(snap)
	for _, f := range c.fields {
		val := valueOf(v.Field(f.index))
		ch <- prometheus.MustNewConstMetric(f.desc, f.valType, val)
	}
}

func valueOf(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		f, _ := strconv.ParseFloat(v.String(), 64)
		return f
	}
}
