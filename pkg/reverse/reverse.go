// Package reverse reads the lines of a file or stream from last to first
// without holding more than a bounded window of it in memory.
//
// Two strategies implement Reader: LineReader works on any io.Reader,
// compressed or not, seekable or not; MappedReader memory-maps plain on-disk
// files. OpenFile picks between them for a path.
package reverse

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/downfa11-org/revread/pkg/lineend"
	"github.com/downfa11-org/revread/pkg/metrics"
	"github.com/downfa11-org/revread/pkg/types"
	"github.com/downfa11-org/revread/pkg/zopen"
)

const (
	DefaultMaxMem    = 4_000_000
	DefaultBlockSize = 4096
)

// advise hints the kernel about the access pattern of files opened by OpenFile.
var advise = adviseReverse

var (
	ErrExpectedStreamGotPath = errors.New("expect a file stream, not file name")
	ErrInvalidUTF8           = errors.New("line is not valid UTF-8")
)

// Reader yields lines last to first. Each line keeps its terminator, except
// the first line of a source that does not end with one. ReadLine returns
// io.EOF once the start of the source is reached.
type Reader interface {
	ReadLine() ([]byte, error)
	Close() error
}

type Strategy int

const (
	StrategyAuto Strategy = iota
	StrategyMapped
	StrategyChunked
)

func (s Strategy) String() string {
	switch s {
	case StrategyMapped:
		return "mapped"
	case StrategyChunked:
		return "chunked"
	default:
		return "auto"
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "mapped", "mmap":
		return StrategyMapped, nil
	case "chunked":
		return StrategyChunked, nil
	default:
		return StrategyAuto, fmt.Errorf("unknown strategy %q (want auto, mapped or chunked)", s)
	}
}

type options struct {
	maxMem    int
	blockSize int
	probeSize int
	warn      types.WarnFunc
	mode      zopen.Mode
	modeSet   bool
	strategy  Strategy
}

type Option func(*options)

// WithMaxMem sets the memory budget in bytes. Sources no larger than it are
// read in one piece; non-seekable sources are buffered in blocks of this size.
// A budget below the block size is raised to it with a warning.
func WithMaxMem(n int) Option {
	return func(o *options) { o.maxMem = n }
}

// WithBlockSize sets the size of backward reads on seekable sources.
// Non-positive values keep the default.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockSize = n
		}
	}
}

func WithProbeSize(n int) Option {
	return func(o *options) { o.probeSize = n }
}

func WithWarnFunc(fn types.WarnFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.warn = fn
		}
	}
}

// WithMode overrides the access mode otherwise inherited from the stream.
func WithMode(m zopen.Mode) Option {
	return func(o *options) {
		o.mode = m
		o.modeSet = true
	}
}

func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

func buildOptions(opts []Option) *options {
	o := &options{
		maxMem:    DefaultMaxMem,
		blockSize: DefaultBlockSize,
		probeSize: lineend.DefaultProbeSize,
		warn:      metrics.ReportWarning,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) clampMaxMem() {
	if o.maxMem >= o.blockSize {
		return
	}
	o.warn(types.Warning{
		Kind:    types.WarnMaxMemTooSmall,
		Message: fmt.Sprintf("max_mem=%d smaller than block size=%d; using block size instead", o.maxMem, o.blockSize),
	})
	o.maxMem = o.blockSize
}

func (o *options) sniffer() *lineend.Sniffer {
	return lineend.NewSniffer(lineend.WithProbeSize(o.probeSize), lineend.WithWarnFunc(o.warn))
}

// textMode resolves the access mode: explicit option first, then the mode the
// stream was opened with, binary otherwise.
func (o *options) textMode(src any) bool {
	if o.modeSet {
		return o.mode == zopen.ModeText
	}
	if m, ok := src.(interface{ Mode() zopen.Mode }); ok {
		return m.Mode() == zopen.ModeText
	}
	return false
}

// All ranges over the remaining lines of r. Iteration stops after the first error.
func All(r Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			line, err := r.ReadLine()
			if err == io.EOF {
				return
			}
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}

// Text is All with lines converted to strings.
func Text(r Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for line, err := range All(r) {
			if !yield(string(line), err) {
				return
			}
		}
	}
}

// Collect drains r into a slice, last line first.
func Collect(r Reader) ([][]byte, error) {
	var lines [][]byte
	for line, err := range All(r) {
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
