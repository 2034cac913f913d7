// Package config loads the process-wide immutable snapshot of calibration
// tables and trigger policy that the hit processor, grouper, and
// coincidence grouper consume (§4.9), plus a YAML-driven pipeline config
// layer for the operational knobs (buffer sizing, time windows, thread
// pool size) a production deployment needs.
package config

// TableMask selects which calibration tables a Load call requires. Bit
// values are carried unchanged from the source's LOAD_* constants: §4.9
// only specifies the behaviour of a configurable bitmask, not its bit
// assignment, so the original assignment is as good as any and lets
// operators reuse existing config files verbatim.
type TableMask uint64

const (
	LoadTDCCalibration TableMask = 1 << iota
	LoadQDCCalibration
	LoadEnergyCalibration
	LoadTimeOffsetCalibration
	LoadChannelMap
	LoadTriggerMap
)

// LoadAll requires every table.
const LoadAll TableMask = ^TableMask(0)

func (m TableMask) has(bit TableMask) bool { return m&bit != 0 }

// MaxTriggerRegions bounds the region ids accepted by the policy matrices;
// the matrices are held as sparse maps keyed by region pair, so this is a
// ceiling rather than an up-front allocation.
const MaxTriggerRegions = 4096

// TacConfig holds one TAC's TDC quadratic-inverse coefficients. T0 is
// carried for table fidelity; the calibration formula itself only uses
// M (=A0), TB (=A1), A2, per the "(t0, a0=m, a1=tB, a2)" naming in the
// spec and the p2/tB/m naming in ProcessHit.cpp.
type TacConfig struct {
	T0, M, TB, A2 float64
}

// QacConfig holds one TAC's QDC charge-linearisation polynomial
// coefficients, p0..p9 as stored by the table format; the energy formula
// uses only p0..p4.
type QacConfig struct {
	P [10]float64
}

// EnergyConfig holds the optional energy-linearisation polynomial for a
// channel/tac, loaded alongside QDC calibration when present.
type EnergyConfig struct {
	P [4]float64
}

// ChannelConfig is the per-global-channel-id bundle of spatial mapping,
// per-tac calibration, and time alignment.
type ChannelConfig struct {
	Region     int32
	Xi, Yi     int32
	X, Y, Z    float64
	TimeOffset float64

	TacT [4]TacConfig
	TacE [4]TacConfig
	Qac  [4]QacConfig
	ECal [4]EnergyConfig
}

func newNullChannelConfig() ChannelConfig {
	return ChannelConfig{Region: -1}
}

// SystemConfig is the read-only, freely-shared snapshot consumed by
// HitProcessor, SimpleGrouper, and CoincidenceGrouper.
type SystemConfig struct {
	HasTDCCalibration        bool
	HasQDCCalibration        bool
	HasEnergyCalibration     bool
	HasTimeOffsetCalibration bool
	HasChannelMap            bool

	SWTriggerGroupMaxHits   int
	SWTriggerGroupMinHits   int
	SWTriggerGroupMinEnergy float64
	SWTriggerGroupMaxEnergy float64
	SWTriggerGroupMaxDist   float64
	SWTriggerGroupTimeWin   float64
	SWCoincidenceTimeWindow float64

	channels map[uint64]*ChannelConfig

	coincidenceTriggerMap map[uint64]bool
	multihitTriggerMap    map[uint64]bool
}

// New returns an empty SystemConfig with defaults matching the source's
// iniparser fallbacks (sw_trigger section) and no channel/trigger data
// loaded; Load* calls populate it.
func New() *SystemConfig {
	return &SystemConfig{
		SWTriggerGroupMaxHits:   64,
		SWTriggerGroupMinEnergy: -1e6,
		SWTriggerGroupMaxEnergy: +1e6,
		SWTriggerGroupMaxDist:   100.0,
		SWTriggerGroupTimeWin:   20.0,
		SWCoincidenceTimeWindow: 2.0,
		channels:                make(map[uint64]*ChannelConfig),
		coincidenceTriggerMap:   make(map[uint64]bool),
		multihitTriggerMap:      make(map[uint64]bool),
	}
}

// MakeGID composes a global channel id the way the .modf and calibration
// tables identify a channel: channel | (chip<<6) | (slave<<12) | (port<<17).
func MakeGID(port, slave, chip, channel uint64) uint64 {
	return channel | (chip << 6) | (slave << 12) | (port << 17)
}

func (c *SystemConfig) touch(gid uint64) *ChannelConfig {
	cc, ok := c.channels[gid]
	if !ok {
		v := newNullChannelConfig()
		cc = &v
		c.channels[gid] = cc
	}
	return cc
}

// ChannelConfig returns the configuration for a global channel id, or a
// zero-value config with Region -1 (disabling it from grouping and
// coincidence) if no table entry touched it.
func (c *SystemConfig) ChannelConfig(channelID uint64) ChannelConfig {
	if cc, ok := c.channels[channelID]; ok {
		return *cc
	}
	return newNullChannelConfig()
}

func triggerKey(r1, r2 int32) uint64 {
	return uint64(uint32(r1))<<32 | uint64(uint32(r2))
}

// IsCoincidenceAllowed reports whether photons in regions r1/r2 may form a
// Coincidence; negative region ids always short-circuit to false.
func (c *SystemConfig) IsCoincidenceAllowed(r1, r2 int32) bool {
	if r1 < 0 || r2 < 0 {
		return false
	}
	return c.coincidenceTriggerMap[triggerKey(r1, r2)]
}

// IsMultiHitAllowed reports whether hits in regions r1/r2 may be clustered
// into the same GammaPhoton; negative region ids always short-circuit to
// false.
func (c *SystemConfig) IsMultiHitAllowed(r1, r2 int32) bool {
	if r1 < 0 || r2 < 0 {
		return false
	}
	return c.multihitTriggerMap[triggerKey(r1, r2)]
}

func (c *SystemConfig) setTriggerPair(r1, r2 int32, coincidence, multihit bool) {
	c.coincidenceTriggerMap[triggerKey(r1, r2)] = coincidence
	c.coincidenceTriggerMap[triggerKey(r2, r1)] = coincidence
	c.multihitTriggerMap[triggerKey(r1, r2)] = multihit
	c.multihitTriggerMap[triggerKey(r2, r1)] = multihit
}
