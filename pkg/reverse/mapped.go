package reverse

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/downfa11-org/revread/pkg/metrics"
	"github.com/downfa11-org/revread/pkg/types"
	"github.com/downfa11-org/revread/pkg/zopen"
	"golang.org/x/exp/mmap"
)

var (
	ErrNotRegular = errors.New("not a regular file")
	ErrCompressed = errors.New("compressed files cannot be memory mapped")
)

// mapError marks failures of the mapping itself, after which the chunked
// reader can still serve the file.
type mapError struct {
	path string
	err  error
}

func (e *mapError) Error() string { return fmt.Sprintf("mmap %s: %v", e.path, e.err) }

func (e *mapError) Unwrap() error { return e.err }

// MappedReader walks a memory-mapped file backward. Bytes are only copied
// out of the mapping once a whole line has been located.
type MappedReader struct {
	path string
	ra   *mmap.ReaderAt // nil for empty files
	sep  []byte
	text bool
	off  int // bytes in [0, off) have not been emitted
	err  error
}

func OpenMapped(path string, opts ...Option) (*MappedReader, error) {
	return openMapped(path, buildOptions(opts))
}

func openMapped(path string, o *options) (*MappedReader, error) {
	if zopen.CodecFor(path).Compressed() {
		return nil, fmt.Errorf("%s: %w", path, ErrCompressed)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	ending, err := o.sniffer().DetectPath(path)
	if err != nil {
		return nil, err
	}

	m := &MappedReader{
		path: path,
		sep:  ending.Terminator(),
		text: o.modeSet && o.mode == zopen.ModeText,
	}
	metrics.ReverseSessions.WithLabelValues("mapped").Inc()

	if info.Size() == 0 {
		o.warn(types.Warning{
			Kind:    types.WarnMmapSkipped,
			Source:  path,
			Message: "trying to mmap an empty file, skipping the mapping",
		})
		return m, nil
	}

	ra, err := mmap.Open(path)
	if err != nil {
		return nil, &mapError{path: path, err: err}
	}
	if ra.Len() == 0 {
		// truncated since the stat
		_ = ra.Close()
		return m, nil
	}

	m.ra = ra
	m.off = ra.Len()
	return m, nil
}

func (m *MappedReader) ReadLine() ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.off == 0 {
		return nil, io.EOF
	}

	end := m.off
	start := m.lineStart(end)

	line := make([]byte, end-start)
	if _, err := m.ra.ReadAt(line, int64(start)); err != nil && err != io.EOF {
		m.err = err
		return nil, err
	}
	m.off = start

	if m.text && !utf8.Valid(line) {
		m.err = ErrInvalidUTF8
		return nil, m.err
	}
	metrics.ReverseLines.WithLabelValues("mapped").Inc()
	metrics.ReverseBytes.WithLabelValues("mapped").Add(float64(len(line)))
	return line, nil
}

// lineStart finds where the line ending at end begins: right after the last
// separator that finishes before end-1, or at 0.
func (m *MappedReader) lineStart(end int) int {
	last := m.sep[len(m.sep)-1]
	for start := end - 1; start >= len(m.sep); start-- {
		if m.ra.At(start-1) != last {
			continue
		}
		if len(m.sep) == 1 || m.matchesAt(start-len(m.sep)) {
			return start
		}
	}
	return 0
}

func (m *MappedReader) matchesAt(pos int) bool {
	for i, b := range m.sep {
		if m.ra.At(pos+i) != b {
			return false
		}
	}
	return true
}

func (m *MappedReader) Close() error {
	if m.err == nil {
		m.err = errClosed
	}
	if m.ra == nil {
		return nil
	}
	ra := m.ra
	m.ra = nil
	return ra.Close()
}
