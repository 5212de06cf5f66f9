//go:build unix

package simcore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// outputHandle is the minimal interface FileOutputCommunicator's write
// goroutine needs from an opened output file.
type outputHandle interface {
	Write([]byte) (int, error)
	Close() error
}

// openOutputFile opens path for writing with OS-level write buffering
// disabled (O_SYNC), truncating any existing contents, matching the
// source's setvbuf(handle, nullptr, _IONBF, 0) on a freshly fopen'd "wb" handle.
func openOutputFile(path string) (outputHandle, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_SYNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("simcore: file output open %q: %w", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}
