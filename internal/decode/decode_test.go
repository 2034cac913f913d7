package decode

import (
	"testing"

	"github.com/petsys-go/petsipipe/internal/event"
)

func packWord(channelID uint64, tacID uint8, tCoarse, eCoarse, tFineRaw, eFineRaw uint16) uint64 {
	var w uint64
	w |= uint64(eFineRaw) % 1024
	w |= (uint64(tFineRaw) % 1024) << 10
	w |= (uint64(eCoarse) % 1024) << 20
	w |= (uint64(tCoarse) % 1024) << 30
	w |= uint64(tacID%4) << 40
	w |= channelID << 42
	return w
}

func TestDecoderRoundTrip(t *testing.T) {
	tests := []struct {
		name                          string
		channelID                     uint64
		tacID                         uint8
		tCoarse, eCoarse              uint16
		tFineRaw, eFineRaw            uint16
	}{
		{"zeros", 0, 0, 0, 0, 0, 0},
		{"max fields", 1<<20 - 1, 3, 1023, 1023, 1023, 1023},
		{"mixed", 42, 2, 10, 20, 100, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word := packWord(tt.channelID, tt.tacID, tt.tCoarse, tt.eCoarse, tt.tFineRaw, tt.eFineRaw)
			raw := Decode(event.UndecodedHit{FrameID: 5, EventWord: word}, AllTimeOverThreshold)

			if raw.ChannelID != tt.channelID {
				t.Errorf("ChannelID = %d, want %d", raw.ChannelID, tt.channelID)
			}
			if raw.TacID != tt.tacID {
				t.Errorf("TacID = %d, want %d", raw.TacID, tt.tacID)
			}
			if raw.TCoarse != tt.tCoarse {
				t.Errorf("TCoarse = %d, want %d", raw.TCoarse, tt.tCoarse)
			}
			if raw.ECoarse != tt.eCoarse {
				t.Errorf("ECoarse = %d, want %d", raw.ECoarse, tt.eCoarse)
			}
			wantTFine := (tt.tFineRaw + fineRotation) % 1024
			wantEFine := (tt.eFineRaw + fineRotation) % 1024
			if raw.TFine != wantTFine {
				t.Errorf("TFine = %d, want %d", raw.TFine, wantTFine)
			}
			if raw.EFine != wantEFine {
				t.Errorf("EFine = %d, want %d", raw.EFine, wantEFine)
			}
		})
	}
}

func TestDecoderTimeWrapAdjustment(t *testing.T) {
	// tCoarse near the end of the cycle, eCoarse wrapped to the start: the
	// trailing edge should be pushed into the next coarse cycle.
	word := packWord(0, 0, 1000, 10, 0, 0)
	raw := Decode(event.UndecodedHit{FrameID: 0, EventWord: word}, AllTimeOverThreshold)

	wantTime := int64(1000)
	wantTimeEnd := int64(10) + 1024
	if raw.Time != wantTime {
		t.Fatalf("Time = %d, want %d", raw.Time, wantTime)
	}
	if raw.TimeEnd != wantTimeEnd {
		t.Fatalf("TimeEnd = %d, want %d", raw.TimeEnd, wantTimeEnd)
	}
	if raw.TimeEnd-raw.Time < -256 {
		t.Fatalf("wrap invariant violated: time_end - time = %d", raw.TimeEnd-raw.Time)
	}
}

func TestDecodeBufferPreservesSeqNAndParentsInput(t *testing.T) {
	in := event.NewBuffer[event.UndecodedHit](3, 2)
	in.Append(event.UndecodedHit{FrameID: 1, EventWord: packWord(1, 0, 5, 5, 0, 0)})
	in.Append(event.UndecodedHit{FrameID: 1, EventWord: packWord(2, 0, 6, 6, 0, 0)})

	out := DecodeBuffer(in, AllChargeMode)
	if out.SeqN != 3 {
		t.Fatalf("SeqN = %d, want 3", out.SeqN)
	}
	if out.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", out.Len())
	}
	if out.Parent() != in {
		t.Fatalf("DecodeBuffer did not parent its input buffer")
	}
	if !out.Events()[0].QDCMode {
		t.Fatalf("QDCMode not propagated from ChannelMode")
	}
}
