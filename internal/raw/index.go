package raw

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Step describes one acquisition step: the byte range in the data file
// that holds its frames, the first frame id in that range, and the two
// user-supplied step values (the "turntable angle, bed position" pair in
// a typical acquisition, but opaque here).
type Step struct {
	ID            int
	Step1, Step2  float64
	FirstFrameID  uint64
	BeginOffset   int64
	EndOffset     int64
	endUnresolved bool
}

// stepIndex enumerates the steps of an acquisition in order.
type stepIndex interface {
	// Next returns the next step, or ok=false once exhausted (or, for a
	// live/follow index, once no further step is yet available).
	Next() (Step, bool, error)
}

// idxfIndex reads a complete, closed-out .idxf file: each line is
// "stepBegin stepEnd firstFrameID lastFrameID step1 step2" (tab or
// whitespace separated); lastFrameID is not read here, since
// frame loss accounting during ProcessStep recomputes coverage directly
// from the frames actually present.
type idxfIndex struct {
	sc  *bufio.Scanner
	id  int
}

func openIdxf(path string) (*idxfIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(f)
	return &idxfIndex{sc: sc}, nil
}

func (x *idxfIndex) Next() (Step, bool, error) {
	for x.sc.Scan() {
		line := normalizeLine(x.sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			return Step{}, false, fmt.Errorf("raw: malformed .idxf line %q", line)
		}
		stepBegin, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .idxf stepBegin: %w", err)
		}
		stepEnd, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .idxf stepEnd: %w", err)
		}
		firstFrameID, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .idxf firstFrameID: %w", err)
		}
		step1, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .idxf step1: %w", err)
		}
		step2, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .idxf step2: %w", err)
		}
		s := Step{ID: x.id, Step1: step1, Step2: step2, FirstFrameID: firstFrameID, BeginOffset: stepBegin, EndOffset: stepEnd}
		x.id++
		return s, true, nil
	}
	if err := x.sc.Err(); err != nil {
		return Step{}, false, err
	}
	return Step{}, false, nil
}

// tmpfIndex reads an in-progress .tmpf index: each step writes
// "step1 step2 stepBegin firstFrameID" as soon as it opens, and a single
// trailing value (stepEnd, shared with the next step's stepBegin) once it
// closes. A step whose closing value hasn't been written yet is returned
// with endUnresolved set and ok=false, so Reader.Run stops before it; the
// reader does not wait for or re-read the index to resolve that step.
type tmpfIndex struct {
	sc      *bufio.Scanner
	id      int
	pending *Step
}

func openTmpf(path string) (*tmpfIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &tmpfIndex{sc: bufio.NewScanner(f)}, nil
}

func (x *tmpfIndex) Next() (Step, bool, error) {
	if x.pending != nil {
		if !x.sc.Scan() {
			if err := x.sc.Err(); err != nil {
				return Step{}, false, err
			}
			s := *x.pending
			return s, false, nil
		}
		end, err := strconv.ParseInt(normalizeLine(x.sc.Text()), 10, 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .tmpf stepEnd: %w", err)
		}
		s := *x.pending
		s.EndOffset = end
		s.endUnresolved = false
		x.pending = nil
		return s, true, nil
	}

	for x.sc.Scan() {
		line := normalizeLine(x.sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return Step{}, false, fmt.Errorf("raw: malformed .tmpf line %q", line)
		}
		step1, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .tmpf step1: %w", err)
		}
		step2, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .tmpf step2: %w", err)
		}
		stepBegin, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .tmpf stepBegin: %w", err)
		}
		firstFrameID, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return Step{}, false, fmt.Errorf("raw: .tmpf firstFrameID: %w", err)
		}
		s := Step{ID: x.id, Step1: step1, Step2: step2, FirstFrameID: firstFrameID, BeginOffset: stepBegin, endUnresolved: true}
		x.id++
		x.pending = &s
		return x.Next()
	}
	if err := x.sc.Err(); err != nil {
		return Step{}, false, err
	}
	return Step{}, false, nil
}

// normalizeLine strips a trailing "#" comment and collapses internal
// whitespace runs to single tabs, matching the table-file convention used
// across the calibration and index formats.
func normalizeLine(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	return strings.Join(fields, "\t")
}
