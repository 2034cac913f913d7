//go:build !unix

package raw

import "os"

// preadAt falls back to os.File's portable ReadAt on non-unix GOOS,
// mirroring the teacher's own tcpinfo_other.go/tcpinfo_windows.go
// build-tag split for platform-specific read paths.
func preadAt(f *os.File, buf []byte, off int64) (int, error) {
	return f.ReadAt(buf, off)
}
