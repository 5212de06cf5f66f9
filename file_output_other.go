//go:build !unix

package simcore

import (
	"fmt"
	"os"
)

// outputHandle is the minimal interface FileOutputCommunicator's write
// goroutine needs from an opened output file.
type outputHandle interface {
	Write([]byte) (int, error)
	Close() error
}

// syncingFile wraps an *os.File opened without an OS-level unbuffered
// mode, forcing a Sync after every write so data is committed to the
// device before Write returns — the closest portable equivalent of
// O_SYNC on platforms where golang.org/x/sys/unix is unavailable.
type syncingFile struct {
	f *os.File
}

func (s *syncingFile) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	if err != nil {
		return n, err
	}
	if serr := s.f.Sync(); serr != nil {
		return n, serr
	}
	return n, nil
}

func (s *syncingFile) Close() error { return s.f.Close() }

// openOutputFile opens path for writing, truncating any existing
// contents, with every write forcibly synced to disk.
func openOutputFile(path string) (outputHandle, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("simcore: file output open %q: %w", path, err)
	}
	return &syncingFile{f: f}, nil
}
