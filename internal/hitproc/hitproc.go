// Package hitproc implements the HitProcessor stage (§4.5): applies the
// per-channel TDC/QDC calibration and the channel map's spatial
// coordinates to each RawHit, producing a Hit that is never dropped but
// may be marked invalid when a required calibration is missing.
package hitproc

import (
	"math"

	"github.com/petsys-go/petsipipe/internal/config"
	"github.com/petsys-go/petsipipe/internal/event"
)

// Processor holds the read-only SystemConfig snapshot applied to every
// buffer it processes.
type Processor struct {
	cfg        *config.SystemConfig
	requireTDC bool
	requireQDC bool
}

// New builds a Processor; requireTDC/requireQDC mirror the mask bits the
// SystemConfig was loaded with, so a missing per-channel calibration entry
// (rather than a missing table altogether) only invalidates the
// individual hit instead of aborting the run.
func New(cfg *config.SystemConfig, requireTDC, requireQDC bool) *Processor {
	return &Processor{cfg: cfg, requireTDC: requireTDC, requireQDC: requireQDC}
}

// quadraticInverse evaluates the TDC quadratic-inverse formula from §4.5:
// q = (2*a2*tB + sqrt(4*a2*raw + m^2) - m) / (2*a2).
func quadraticInverse(raw uint16, tac config.TacConfig) (q float64, calibrated bool) {
	if tac.A2 == 0 {
		return 0, tac.M != 0
	}
	disc := 4*tac.A2*float64(raw) + tac.M*tac.M
	if disc < 0 {
		disc = 0
	}
	q = (2*tac.A2*tac.TB + math.Sqrt(disc) - tac.M) / (2 * tac.A2)
	return q, tac.M != 0
}

// Process calibrates one RawHit into a Hit.
func (p *Processor) Process(raw *event.RawHit) event.Hit {
	out := event.Hit{Valid: raw.Valid, Raw: raw}

	cc := p.cfg.ChannelConfig(raw.ChannelID)
	tacT := cc.TacT[raw.TacID]
	tacE := cc.TacE[raw.TacID]
	qac := cc.Qac[raw.TacID]

	qT, tdcOK := quadraticInverse(raw.TFine, tacT)
	out.Time = float64(raw.Time) - qT
	if p.requireTDC && !tdcOK {
		out.Valid = false
	}

	if !raw.QDCMode {
		qE, eOK := quadraticInverse(raw.EFine, tacE)
		out.TimeEnd = float64(raw.TimeEnd) - qE
		out.Energy = out.TimeEnd - out.Time
		if p.requireTDC && !eOK {
			out.Valid = false
		}
	} else {
		out.TimeEnd = float64(raw.TimeEnd)
		ti := out.TimeEnd - out.Time
		q0 := qac.P[0] + qac.P[1]*ti + qac.P[2]*ti*ti + qac.P[3]*ti*ti*ti + qac.P[4]*ti*ti*ti*ti
		out.Energy = float64(raw.EFine) - q0
		if p.requireQDC && qac.P[1] == 0 {
			out.Valid = false
		}
	}

	if p.cfg.HasChannelMap {
		out.Region = cc.Region
		out.Xi, out.Yi = cc.Xi, cc.Yi
		out.X, out.Y, out.Z = cc.X, cc.Y, cc.Z
	} else {
		out.Region = int32(raw.ChannelID / 128)
		out.X, out.Y, out.Z = 0, 0, 0
		out.Xi, out.Yi = 0, 0
	}

	return out
}

// ProcessBuffer calibrates every RawHit in in, producing an output buffer
// of the same length parented on in.
func (p *Processor) ProcessBuffer(in *event.Buffer[event.RawHit]) *event.Buffer[event.Hit] {
	out := event.NewBuffer[event.Hit](in.SeqN, in.Len()).WithParent(in)
	out.TMin, out.TMax = in.TMin, in.TMax
	for i := range in.Events() {
		out.Append(p.Process(&in.Events()[i]))
	}
	return out
}
