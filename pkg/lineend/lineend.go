// Package lineend detects whether a text stream terminates lines with "\n" or "\r\n".
package lineend

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/downfa11-org/revread/pkg/metrics"
	"github.com/downfa11-org/revread/pkg/types"
	"github.com/downfa11-org/revread/pkg/zopen"
)

// DefaultProbeSize caps how much of a stream is inspected.
const DefaultProbeSize = 64 << 10

const probeStep = 4096

var (
	ErrUnknownLineEnding = errors.New("unknown line ending")

	// ErrUnseekableStream is returned by Detect for a reader that could not be
	// put back after sniffing. Wrap it in a bufio.Reader and use DetectBuffered.
	ErrUnseekableStream = errors.New("stream cannot restore its position after sniffing; use DetectBuffered")
)

type UnsupportedInputTypeError struct {
	Type string
}

func (e *UnsupportedInputTypeError) Error() string {
	return fmt.Sprintf("unknown file type %s: expected a path, an io.ReadSeeker, a *bufio.Reader or []byte", e.Type)
}

type LineEnding int

const (
	Unix LineEnding = iota
	Windows
)

var (
	lf   = []byte("\n")
	crlf = []byte("\r\n")
)

// Terminator returns the byte sequence ending each line. Callers must not modify it.
func (l LineEnding) Terminator() []byte {
	if l == Windows {
		return crlf
	}
	return lf
}

func (l LineEnding) String() string {
	if l == Windows {
		return "windows"
	}
	return "unix"
}

type Sniffer struct {
	probeSize int
	warn      types.WarnFunc
}

type Option func(*Sniffer)

// WithProbeSize bounds the inspected prefix. Values below one are ignored.
func WithProbeSize(n int) Option {
	return func(s *Sniffer) {
		if n > 0 {
			s.probeSize = n
		}
	}
}

func WithWarnFunc(fn types.WarnFunc) Option {
	return func(s *Sniffer) {
		if fn != nil {
			s.warn = fn
		}
	}
}

func NewSniffer(opts ...Option) *Sniffer {
	s := &Sniffer{
		probeSize: DefaultProbeSize,
		warn:      metrics.ReportWarning,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect dispatches on the kind of src: a path, an io.ReadSeeker, a
// *bufio.Reader or a byte slice. Any other io.Reader fails with
// ErrUnseekableStream, since sniffing it would consume data. Prefer the typed
// Detect* methods when the kind is known at compile time.
func (s *Sniffer) Detect(src any) (LineEnding, error) {
	switch v := src.(type) {
	case string:
		return s.DetectPath(v)
	case *bufio.Reader:
		return s.DetectBuffered(v)
	case io.ReadSeeker:
		return s.DetectReader(v)
	case []byte:
		return s.DetectBytes(v, "")
	case io.Reader:
		return Unix, fmt.Errorf("%T: %w", v, ErrUnseekableStream)
	default:
		return Unix, &UnsupportedInputTypeError{Type: fmt.Sprintf("%T", src)}
	}
}

// DetectPath opens path through zopen, so compressed files are sniffed on
// their decoded content.
func (s *Sniffer) DetectPath(path string) (LineEnding, error) {
	f, err := zopen.Open(path, zopen.ModeBinary)
	if err != nil {
		return Unix, err
	}
	defer f.Close()

	prefix, err := s.probe(f)
	if err != nil {
		return Unix, fmt.Errorf("probe %s: %w", path, err)
	}
	return s.classify(prefix, path)
}

// DetectReader reads a prefix from the current position and seeks back to it.
func (s *Sniffer) DetectReader(rs io.ReadSeeker) (LineEnding, error) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return Unix, fmt.Errorf("stream position: %w", err)
	}

	prefix, err := s.probe(rs)
	if err != nil {
		return Unix, err
	}
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return Unix, fmt.Errorf("restore stream position %d: %w", pos, err)
	}
	return s.classify(prefix, sourceName(rs))
}

// DetectBuffered peeks into br without consuming anything. The probe is
// further capped by the buffer size of br.
func (s *Sniffer) DetectBuffered(br *bufio.Reader) (LineEnding, error) {
	limit := s.probeSize
	if br.Size() < limit {
		limit = br.Size()
	}

	n := min(probeStep, limit)
	for {
		prefix, err := br.Peek(n)
		if err != nil && err != io.EOF {
			return Unix, err
		}
		if err == io.EOF || n == limit || bytes.IndexByte(prefix, '\n') >= 0 {
			return s.classify(prefix, "")
		}
		n = min(n*2, limit)
	}
}

// DetectBytes classifies an in-memory prefix, looking at most at the probe size.
func (s *Sniffer) DetectBytes(p []byte, source string) (LineEnding, error) {
	if len(p) > s.probeSize {
		p = p[:s.probeSize]
	}
	return s.classify(p, source)
}

// probe reads until a '\n' shows up, the probe size is reached or the stream ends.
func (s *Sniffer) probe(r io.Reader) ([]byte, error) {
	buf := make([]byte, 0, min(probeStep, s.probeSize))
	for len(buf) < s.probeSize {
		step := min(probeStep, s.probeSize-len(buf))
		start := len(buf)
		buf = append(buf, make([]byte, step)...)
		n, err := io.ReadFull(r, buf[start:])
		buf = buf[:start+n]
		if bytes.IndexByte(buf[start:], '\n') >= 0 {
			return buf, nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (s *Sniffer) classify(prefix []byte, source string) (LineEnding, error) {
	var ending LineEnding
	switch {
	case len(prefix) == 0:
		s.warn(types.Warning{
			Kind:    types.WarnEmptyFile,
			Source:  source,
			Message: "file is empty, defaulting to Unix line ending",
		})
		ending = Unix
	case bytes.Contains(prefix, crlf):
		ending = Windows
	case bytes.IndexByte(prefix, '\n') >= 0:
		ending = Unix
	default:
		if source != "" {
			return Unix, fmt.Errorf("%w in %s", ErrUnknownLineEnding, source)
		}
		return Unix, ErrUnknownLineEnding
	}

	metrics.LineEndings.WithLabelValues(ending.String()).Inc()
	return ending, nil
}

func sourceName(v any) string {
	switch f := v.(type) {
	case *zopen.File:
		return f.Path()
	case *os.File:
		return f.Name()
	default:
		return ""
	}
}

var defaultSniffer = NewSniffer()

func Detect(src any) (LineEnding, error) {
	return defaultSniffer.Detect(src)
}

func DetectPath(path string) (LineEnding, error) {
	return defaultSniffer.DetectPath(path)
}

func DetectReader(rs io.ReadSeeker) (LineEnding, error) {
	return defaultSniffer.DetectReader(rs)
}

func DetectBuffered(br *bufio.Reader) (LineEnding, error) {
	return defaultSniffer.DetectBuffered(br)
}

func DetectBytes(p []byte) (LineEnding, error) {
	return defaultSniffer.DetectBytes(p, "")
}
