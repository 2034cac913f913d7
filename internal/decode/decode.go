// Package decode bit-unpacks raw hardware event words into RawHit records
// (stage 1, §4.3), grounded exactly on event_decode.hpp's field widths and
// the +27 mod 1024 fine-interpolator rotation.
package decode

import (
	"github.com/petsys-go/petsipipe/internal/event"
)

const fineRotation = 27

// ChannelMode reports whether a channel digitises charge (qdc_mode=true)
// or time-over-threshold (false).
type ChannelMode func(channelID uint64) bool

// AllChargeMode and AllTimeOverThreshold are the two single-mode-for-file
// ChannelMode values used when no per-channel .modf mode table is present.
func AllChargeMode(uint64) bool         { return true }
func AllTimeOverThreshold(uint64) bool  { return false }

// Decode converts one UndecodedHit into a RawHit, applying the fixed bit
// layout from §4.3/§6 and the fine-interpolator rotation.
func Decode(u event.UndecodedHit, mode ChannelMode) event.RawHit {
	w := u.EventWord

	eFine := uint16((w + fineRotation) % 1024)
	tFine := uint16(((w >> 10) + fineRotation) % 1024)
	eCoarse := uint16((w >> 20) % 1024)
	tCoarse := uint16((w >> 30) % 1024)
	tacID := uint8((w >> 40) % 4)
	channelID := w >> 42

	frameID := u.FrameID
	t := int64(frameID)*1024 + int64(tCoarse)
	tEnd := int64(frameID)*1024 + int64(eCoarse)
	if tEnd-t < -256 {
		tEnd += 1024
	}

	return event.RawHit{
		Valid:     true,
		QDCMode:   mode(channelID),
		ChannelID: channelID,
		TacID:     tacID,
		FrameID:   frameID,
		TCoarse:   tCoarse,
		ECoarse:   eCoarse,
		TFine:     tFine,
		EFine:     eFine,
		Time:      t,
		TimeEnd:   tEnd,
	}
}

// DecodeBuffer decodes every record of in into a freshly allocated output
// buffer parented on in, preserving seq_n and the buffer's time bounds
// unchanged (the decoder neither reorders nor drops records).
func DecodeBuffer(in *event.Buffer[event.UndecodedHit], mode ChannelMode) *event.Buffer[event.RawHit] {
	out := event.NewBuffer[event.RawHit](in.SeqN, in.Len()).WithParent(in)
	out.TMin, out.TMax = in.TMin, in.TMax
	for _, u := range in.Events() {
		out.Append(Decode(u, mode))
	}
	return out
}
