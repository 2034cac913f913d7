// Package raw implements the Reader stage (§4.1): it turns a PETsys raw
// acquisition file (data + .idxf/.tmpf step index + optional .modf
// per-channel QDC-mode table) into a stream of event.UndecodedHit buffers
// pushed to a downstream Sink.
package raw

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/petsys-go/petsipipe/internal/config"
	"github.com/petsys-go/petsipipe/internal/event"
	"github.com/petsys-go/petsipipe/internal/pipeline"
)

const (
	headerWords     = 8
	frameAllocFloor = 2048
	maxTickSpan     = 1 << 32
)

// Counters tallies frame-level bookkeeping the way RawReader.cpp's
// nFrames/nFramesLost0/nFramesLostN/nEventsNoLost/nEventsSomeLost fields
// do, so an operator can tell a clean run from one riddled with dropped
// frames without re-reading the raw file.
type Counters struct {
	Frames         uint64
	FramesLost0    uint64
	FramesLostN    uint64
	EventsNoLost   uint64
	EventsSomeLost uint64
	Malformed      uint64
}

// Header is the 64-byte file header.
type Header struct {
	Frequency               float64
	TriggerID               int32
	DAQSynchronizationEpoch float64
	FileCreationDAQTime     uint64
	uniformQDCMode          bool
}

// Reader drives one raw acquisition file through its configured steps,
// decoding frame headers and pushing undecoded hits downstream.
type Reader struct {
	file   *os.File
	src    *frameSource
	header Header
	mode   []bool // per-channel QDC mode from .modf, nil if uniform
	idx    stepIndex

	timeRef config.TimeReference

	counters Counters

	lastFrameWasLost0 bool
	haveLastFrameID   bool
	lastFrameID       uint64
	nextSeqN          uint64
}

// Options configures Open.
type Options struct {
	DataPath       string
	IdxfPath       string
	TmpfPath       string
	ModfPath       string
	ReadAheadBytes int
	TimeReference  config.TimeReference
}

// Open opens the data file, parses its header, loads the step index
// (preferring a .idxf if given, else an incremental .tmpf), and loads the
// optional per-channel QDC mode table.
func Open(opts Options) (*Reader, error) {
	f, err := os.Open(opts.DataPath)
	if err != nil {
		return nil, fmt.Errorf("raw: opening data file: %w", err)
	}

	r := &Reader{
		file:    f,
		src:     newFrameSource(f, opts.ReadAheadBytes),
		timeRef: opts.TimeReference,
	}

	hdrBytes := make([]byte, headerWords*8)
	if err := r.src.ReadFull(hdrBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("raw: reading header: %w", err)
	}
	var words [headerWords]uint64
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(hdrBytes[i*8:])
	}
	r.header = parseHeader(words)

	if opts.ModfPath != "" {
		mode, err := loadModf(opts.ModfPath)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.mode = mode
	}

	switch {
	case opts.IdxfPath != "":
		idx, err := openIdxf(opts.IdxfPath)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.idx = idx
	case opts.TmpfPath != "":
		idx, err := openTmpf(opts.TmpfPath)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.idx = idx
	default:
		f.Close()
		return nil, fmt.Errorf("raw: no step index given (need .idxf or .tmpf)")
	}

	return r, nil
}

// parseHeader decodes the 8-word header per the source's
// RawReader::openFile: word[0] low 32 bits is the clock frequency in Hz,
// bit 32 is the uniform QDC-mode flag; word[1] is a double-bit-pattern
// multiplied by frequency to get the DAQ synchronization epoch in clock
// ticks; word[2] bit 15 marks a present trigger id in bits[0..14]; word[4]
// is the file creation DAQ time.
func parseHeader(w [headerWords]uint64) Header {
	h := Header{
		Frequency:           float64(w[0] & 0xFFFFFFFF),
		FileCreationDAQTime: w[4],
		uniformQDCMode:      w[0]&(1<<32) != 0,
	}
	h.DAQSynchronizationEpoch = math.Float64frombits(w[1]) * h.Frequency
	if w[2]&(1<<15) != 0 {
		h.TriggerID = int32(w[2] & 0x7FFF)
	} else {
		h.TriggerID = -1
	}
	return h
}

// ChannelMode reports whether channelID is in charge-integration (QDC)
// mode, from the .modf table if one was given, else uniformly from the
// header bit.
func (r *Reader) ChannelMode(channelID uint64) bool {
	if r.mode != nil && channelID < uint64(len(r.mode)) {
		return r.mode[channelID]
	}
	return r.header.uniformQDCMode
}

// Header returns the parsed file header.
func (r *Reader) Header() Header { return r.header }

// Counters returns the reader's frame-accounting snapshot.
func (r *Reader) Counters() Counters { return r.counters }

// FrameID returns the id of the most recently processed frame, or false
// if no frame has been processed yet. It mirrors RawReader::getFrameID's
// random-access query used by the source's print_raw/merge_raw tools.
func (r *Reader) FrameID() (uint64, bool) {
	return r.lastFrameID, r.haveLastFrameID
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.file.Close() }

// Run drives every step of the acquisition through sink until the step
// index is exhausted, announcing an epoch per epochFor before the
// first step and calling Finish once done.
func (r *Reader) Run(sink pipeline.Sink[event.UndecodedHit]) error {
	announced := false
	for {
		step, ok, err := r.idx.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if !announced {
			sink.PushT0(r.epochFor(step))
			announced = true
		}
		if err := r.processStep(step, sink); err != nil {
			return err
		}
	}
	sink.Finish()
	return nil
}

// epochFor resolves the t0 epoch (in clock ticks) to announce per the
// configured time reference: "sync" announces 0, "wall" the header's DAQ
// synchronization epoch, "step" minus the step's first-frame tick, and
// "user" minus the header's file creation DAQ time. An unset reference
// behaves like "sync".
func (r *Reader) epochFor(step Step) int64 {
	switch r.timeRef {
	case config.TimeReferenceWall:
		return int64(r.header.DAQSynchronizationEpoch)
	case config.TimeReferenceStep:
		return -int64(step.FirstFrameID) * 1024
	case config.TimeReferenceUser:
		return -int64(r.header.FileCreationDAQTime)
	default:
		return 0
	}
}

// processStep seeks to the step's byte range and decodes frames until the
// range is exhausted, emitting UndecodedHit buffers to sink. The
// allocation decision (start a fresh buffer or keep appending to the
// current one) is made once per frame, before any of that frame's events
// are appended, matching RawReader.cpp's outBuffer->getFree() < N check —
// a frame is never split across two buffers. A fresh buffer is sized to
// hold at least the triggering frame's own event count, floored at
// frameAllocFloor. TMin/TMax track the tick range the buffer is
// responsible for: TMin is fixed at the first frame's tick on creation,
// TMax advances to the tick past the end of every frame appended to it.
func (r *Reader) processStep(step Step, sink pipeline.Sink[event.UndecodedHit]) error {
	r.src.Seek(step.BeginOffset)
	remaining := step.EndOffset - step.BeginOffset

	var buf *event.Buffer[event.UndecodedHit]
	var bufFirstFrame uint64
	seqN := r.nextSeqN

	flush := func() {
		if buf != nil && buf.Len() > 0 {
			sink.PushEvents(buf)
			seqN++
		}
		buf = nil
	}

	for remaining > 0 {
		head := make([]byte, 16)
		if err := r.src.ReadFull(head); err != nil {
			flush()
			return fmt.Errorf("raw: reading frame header: %w", err)
		}
		remaining -= 16

		w0 := binary.LittleEndian.Uint64(head[0:8])
		w1 := binary.LittleEndian.Uint64(head[8:16])

		frameID := w0 & 0xFFFFFFFFF
		frameSizeWords := (w0 >> 36) & 0x7FFF
		eventCount := w1 & 0x7FFF
		frameLost := w1&(1<<16) != 0

		payloadWords := int64(0)
		if frameSizeWords > 0 {
			payloadWords = int64(frameSizeWords) - 2
		}
		if payloadWords < 0 {
			payloadWords = 0
		}
		payloadBytes := payloadWords * 8

		malformed := !frameLost && uint64(payloadWords) != eventCount
		if malformed {
			if err := r.src.Skip(payloadBytes); err != nil {
				flush()
				return fmt.Errorf("raw: skipping malformed frame payload: %w", err)
			}
			remaining -= payloadBytes
			r.counters.Malformed++
			slog.Warn("raw: dropping malformed frame",
				"frame_id", frameID, "declared_events", eventCount, "payload_words", payloadWords)
			r.lastFrameWasLost0 = false
			continue
		}

		// A gap between consecutive frame ids (frames dropped so completely
		// the file has no record of them at all) is folded into
		// FramesLost0 only when the frame immediately preceding the gap was
		// itself an all-lost frame, matching the source's accounting: an
		// isolated gap after a normal frame is not assumed to be loss.
		if r.haveLastFrameID && frameID > r.lastFrameID+1 && r.lastFrameWasLost0 {
			r.counters.FramesLost0 += frameID - r.lastFrameID - 1
		}
		r.lastFrameID = frameID
		r.haveLastFrameID = true

		r.counters.Frames++
		switch {
		case frameLost && eventCount == 0:
			r.counters.FramesLost0++
			r.lastFrameWasLost0 = true
		case frameLost:
			r.counters.FramesLostN++
			r.counters.EventsSomeLost += eventCount
			r.lastFrameWasLost0 = false
		default:
			r.counters.EventsNoLost += eventCount
			r.lastFrameWasLost0 = false
		}

		payload := make([]byte, payloadBytes)
		if err := r.src.ReadFull(payload); err != nil {
			flush()
			return fmt.Errorf("raw: reading frame payload: %w", err)
		}
		remaining -= payloadBytes

		if buf == nil || buf.Free() < int(eventCount) || (frameID-bufFirstFrame)*1024 > maxTickSpan {
			flush()
			size := int(eventCount)
			if size < frameAllocFloor {
				size = frameAllocFloor
			}
			buf = event.NewBuffer[event.UndecodedHit](seqN, size)
			bufFirstFrame = frameID
			buf.TMin = int64(frameID) * 1024
		}

		for i := uint64(0); i < eventCount; i++ {
			word := binary.LittleEndian.Uint64(payload[i*8:])
			buf.Append(event.UndecodedHit{FrameID: frameID, EventWord: word})
		}
		buf.TMax = int64(frameID+1) * 1024
	}

	flush()
	r.nextSeqN = seqN
	return nil
}
