// Package event defines the record types that flow through the pipeline
// stages (reader -> decoder -> coarse sorter -> hit processor -> grouper ->
// coincidence grouper) and the buffer abstraction that carries them.
package event

// MaxHitsPerPhoton bounds how many hits a single GammaPhoton stores;
// clusters larger than this are truncated and flagged as overflow.
const MaxHitsPerPhoton = 256

// MaxTriggerRegions bounds the region ids accepted by the multihit and
// coincidence policy matrices.
const MaxTriggerRegions = 4096

// Overlap is the clock-tick tolerance the coarse sorter leaves unresolved
// across buffer boundaries; grouping and coincidence windows are widened
// by this amount (or half of it) when scanning across that slop.
const Overlap = 200

// UndecodedHit is the Reader's output record: a frame id paired with the
// raw 64-bit event word, not yet bit-unpacked.
type UndecodedHit struct {
	FrameID   uint64
	EventWord uint64
}

// RawHit is a decoded hardware event: coarse/fine timestamps and a
// channel identity, with no calibration applied.
type RawHit struct {
	Valid     bool
	QDCMode   bool
	ChannelID uint64
	TacID     uint8
	FrameID   uint64
	TCoarse   uint16
	ECoarse   uint16
	TFine     uint16
	EFine     uint16
	Time      int64
	TimeEnd   int64
}

// Hit is a calibrated physical hit derived from a RawHit.
type Hit struct {
	Valid   bool
	Raw     *RawHit
	Time    float64
	TimeEnd float64
	Energy  float64
	Region  int32
	Xi, Yi  int32
	X, Y, Z float64
}

// GammaPhoton is a cluster of hits attributed to one gamma interaction.
// Hits is sorted by descending energy and holds at most MaxHitsPerPhoton
// entries; NHits is the cluster's hit count. The grouper clamps NHits to
// its hit limit for a cluster over that limit and flags it as overflow, so
// such a cluster is not emitted.
type GammaPhoton struct {
	Valid  bool
	Time   float64
	Energy float64
	Region int32
	X, Y, Z float64
	NHits  int
	Hits   []*Hit
}

// Coincidence is exactly two gamma photons within a time window, ordered
// so that the higher-region photon comes first.
type Coincidence struct {
	Valid     bool
	NPhotons  int
	Photons   [2]*GammaPhoton
}
