package raw

import (
	"io"
	"os"
)

// DefaultReadAheadBytes is the reader's read-ahead buffer size (§4.2).
const DefaultReadAheadBytes = 128 * 1024

// frameSource is a forward-only, positioned-read byte source over the
// data file: it refills its buffer with preadAt starting at filePos,
// rather than relying on the file's own cursor, so a Seek to a new step's
// begin offset never has to worry about stale buffered bytes from a
// previous sequential read.
type frameSource struct {
	file    *os.File
	buf     []byte
	pos     int
	end     int
	filePos int64
}

func newFrameSource(file *os.File, readAheadBytes int) *frameSource {
	if readAheadBytes <= 0 {
		readAheadBytes = DefaultReadAheadBytes
	}
	return &frameSource{file: file, buf: make([]byte, readAheadBytes)}
}

// Seek discards any buffered bytes and resumes reading from off.
func (s *frameSource) Seek(off int64) {
	s.filePos = off
	s.pos, s.end = 0, 0
}

func (s *frameSource) refill() error {
	n, err := preadAt(s.file, s.buf, s.filePos)
	if n == 0 {
		if err == nil || err == io.EOF {
			return io.EOF
		}
		return err
	}
	s.pos, s.end = 0, n
	s.filePos += int64(n)
	return nil
}

// ReadFull reads exactly len(dst) bytes, refilling from the underlying
// file as needed. Returns io.EOF (possibly io.ErrUnexpectedEOF) when the
// file ends before dst is filled.
func (s *frameSource) ReadFull(dst []byte) error {
	copied := 0
	for copied < len(dst) {
		if s.pos == s.end {
			if err := s.refill(); err != nil {
				if copied > 0 {
					return io.ErrUnexpectedEOF
				}
				return err
			}
		}
		n := copy(dst[copied:], s.buf[s.pos:s.end])
		s.pos += n
		copied += n
	}
	return nil
}

// Skip advances n bytes without copying them out, still going through the
// positioned-read buffer so file position bookkeeping stays correct.
func (s *frameSource) Skip(n int64) error {
	for n > 0 {
		if s.pos == s.end {
			if err := s.refill(); err != nil {
				return err
			}
		}
		avail := int64(s.end - s.pos)
		if avail > n {
			avail = n
		}
		s.pos += int(avail)
		n -= avail
	}
	return nil
}
