//go:build unix

package raw

import (
	"os"

	"golang.org/x/sys/unix"
)

// preadAt issues a positioned read via unix.Pread, following the teacher's
// own direct-syscall style (pkg/tcpinfo/tcpinfo_linux.go's
// unix.GetsockoptTCPInfo) rather than going through a higher-level
// buffered abstraction for the hot read-ahead refill path.
func preadAt(f *os.File, buf []byte, off int64) (int, error) {
	return unix.Pread(int(f.Fd()), buf, off)
}
