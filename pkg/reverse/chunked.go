package reverse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/downfa11-org/revread/pkg/lineend"
	"github.com/downfa11-org/revread/pkg/metrics"
)

// blockSource hands out the source backward, one block at a time.
type blockSource interface {
	// next reports the size of the block just before everything read so
	// far, or 0 once the start has been reached.
	next() int
	// read fills p, sized by next, with that block.
	read(p []byte) error
}

// seekSource reads backward with absolute positioning.
type seekSource struct {
	rs    io.ReadSeeker
	start int64 // position the session began at; bytes before it are not ours
	off   int64 // bytes in [start, off) have not been read yet
	chunk int64
}

func (s *seekSource) next() int {
	return int(min(s.chunk, s.off-s.start))
}

func (s *seekSource) read(p []byte) error {
	from := s.off - int64(len(p))
	if err := s.readAt(p, from); err != nil {
		return err
	}
	s.off = from
	return nil
}

// inBlocks reports whether the session needs more than one backward read.
func (s *seekSource) inBlocks() bool {
	return s.chunk < s.off-s.start
}

func (s *seekSource) readAt(p []byte, off int64) error {
	if ra, ok := s.rs.(io.ReaderAt); ok {
		n, err := ra.ReadAt(p, off)
		if n == len(p) {
			return nil
		}
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read %d bytes at %d: %w", len(p), off, err)
	}
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(s.rs, p); err != nil {
		return fmt.Errorf("read %d bytes at %d: %w", len(p), off, err)
	}
	return nil
}

// memSource holds a sequential stream that was buffered forward in blocks,
// since a stream that cannot seek can only be reversed after reading all of it.
type memSource struct {
	blocks [][]byte
}

// readStep is the first allocation for a buffered block. Blocks grow from it
// up to the memory budget, so small streams never cost the whole budget.
const readStep = 64 << 10

func bufferBlocks(r io.Reader, blockSize int) (*memSource, int64, error) {
	var (
		blocks [][]byte
		block  []byte
		total  int64
	)
	for {
		if len(block) == blockSize {
			blocks = append(blocks, block)
			block = nil
		}
		if len(block) == cap(block) {
			block = growBlock(block, blockSize)
		}

		n, err := r.Read(block[len(block):cap(block)])
		block = block[:len(block)+n]
		total += int64(n)
		if err == io.EOF {
			if len(block) > 0 {
				blocks = append(blocks, block)
			}
			return &memSource{blocks: blocks}, total, nil
		}
		if err != nil {
			return nil, total, err
		}
	}
}

// growBlock doubles the capacity of block, starting at readStep and never
// going past limit.
func growBlock(block []byte, limit int) []byte {
	size := min(max(2*cap(block), readStep), limit)
	grown := make([]byte, len(block), size)
	copy(grown, block)
	return grown
}

func (m *memSource) next() int {
	if len(m.blocks) == 0 {
		return 0
	}
	return len(m.blocks[len(m.blocks)-1])
}

func (m *memSource) read(p []byte) error {
	last := len(m.blocks) - 1
	copy(p, m.blocks[last])
	m.blocks[last] = nil
	m.blocks = m.blocks[:last]
	return nil
}

// LineReader is the general reverse reader. Seekable sources are read
// backward in blocks, or in one piece when they fit in the memory budget.
// Other sources, decompression pipes in particular, are first buffered
// completely: the caller pays memory proportional to the decoded size.
//
// The reader borrows its source and does not close it.
type LineReader struct {
	src      blockSource
	sep      []byte
	text     bool
	strategy string

	// buf[head:tail] is the pending tail of the session: every line after
	// it has been emitted, everything before it is still in src. Blocks are
	// copied in front of head; buf doubles when head runs out of room.
	buf        []byte
	head, tail int
	// bytes after head that may still hold a separator; the rest was scanned
	searchEnd int

	closer io.Closer
	err    error
}

func NewLineReader(r io.Reader, opts ...Option) (*LineReader, error) {
	if r == nil {
		return nil, errors.New("reverse: nil reader")
	}
	return newLineReader(r, buildOptions(opts))
}

// StreamLines is NewLineReader for callers holding an untyped value. Paths
// are rejected: reversing a path is OpenFile's job.
func StreamLines(src any, opts ...Option) (*LineReader, error) {
	switch v := src.(type) {
	case string:
		return nil, fmt.Errorf("%w %q", ErrExpectedStreamGotPath, v)
	case io.Reader:
		return NewLineReader(v, opts...)
	default:
		return nil, &lineend.UnsupportedInputTypeError{Type: fmt.Sprintf("%T", src)}
	}
}

func newLineReader(r io.Reader, o *options) (*LineReader, error) {
	o.clampMaxMem()
	sniffer := o.sniffer()

	lr := &LineReader{text: o.textMode(r)}

	if rs, ok := r.(io.ReadSeeker); ok {
		if start, end, ok := extent(rs); ok {
			ending, err := sniffer.DetectReader(rs)
			if err != nil {
				return nil, err
			}
			chunk := int64(o.blockSize)
			if end-start <= int64(o.maxMem) {
				chunk = max(end-start, 1)
			}
			lr.src = &seekSource{rs: rs, start: start, off: end, chunk: chunk}
			lr.sep = ending.Terminator()
			lr.strategy = "chunked"
			metrics.ReverseSessions.WithLabelValues(lr.strategy).Inc()
			return lr, nil
		}
	}

	br := bufio.NewReaderSize(r, o.probeSize)
	ending, err := sniffer.DetectBuffered(br)
	if err != nil {
		return nil, err
	}
	src, total, err := bufferBlocks(br, o.maxMem)
	if err != nil {
		return nil, fmt.Errorf("buffer stream: %w", err)
	}

	lr.src = src
	lr.sep = ending.Terminator()
	lr.strategy = "buffered"
	metrics.ReverseSessions.WithLabelValues(lr.strategy).Inc()
	metrics.ReverseBytes.WithLabelValues(lr.strategy).Add(float64(total))
	return lr, nil
}

// extent reports the session range [start, end) when rs can seek to its end.
// The stream position is left unchanged.
func extent(rs io.ReadSeeker) (int64, int64, bool) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, false
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		_, _ = rs.Seek(start, io.SeekStart)
		return 0, 0, false
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return 0, 0, false
	}
	if end < start {
		end = start
	}
	return start, end, true
}

func (r *LineReader) ReadLine() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	for {
		if r.searchEnd > 0 {
			if i := bytes.LastIndex(r.buf[r.head:r.head+r.searchEnd], r.sep); i >= 0 {
				return r.emit(r.head + i + len(r.sep))
			}
		}

		n := r.src.next()
		if n == 0 {
			if r.head == r.tail {
				r.err = io.EOF
				return nil, io.EOF
			}
			return r.emit(r.head)
		}

		r.reserve(n)
		if err := r.src.read(r.buf[r.head-n : r.head]); err != nil {
			return nil, r.fail(err)
		}
		r.head -= n

		if r.strategy == "chunked" {
			metrics.ReverseBytes.WithLabelValues(r.strategy).Add(float64(n))
		}
		// Only the new block and a separator straddling its end are unscanned.
		r.searchEnd = min(n+len(r.sep)-1, r.tail-r.head-1)
	}
}

// reserve makes room for n bytes in front of head. The pending bytes move
// to a buffer with as much free room again in front of them, so a line
// spanning many blocks is copied a logarithmic number of times.
func (r *LineReader) reserve(n int) {
	if r.head >= n {
		return
	}
	size := r.tail - r.head
	capacity := n
	if size > 0 {
		capacity = 2 * (size + n)
	}
	grown := make([]byte, capacity)
	head := capacity - size
	copy(grown[head:], r.buf[r.head:r.tail])
	r.buf, r.head, r.tail = grown, head, capacity
}

// emit returns buf[start:tail] as the next line and keeps the rest pending.
// Later blocks are only written in front of head, so the line stays intact.
func (r *LineReader) emit(start int) ([]byte, error) {
	line := r.buf[start:r.tail:r.tail]
	r.tail = start
	r.searchEnd = r.tail - r.head - 1

	if r.text && !utf8.Valid(line) {
		return nil, r.fail(ErrInvalidUTF8)
	}
	metrics.ReverseLines.WithLabelValues(r.strategy).Inc()
	return line, nil
}

// readsInBlocks reports whether the source is read back to front in more
// than one piece.
func (r *LineReader) readsInBlocks() bool {
	s, ok := r.src.(*seekSource)
	return ok && s.inBlocks()
}

func (r *LineReader) fail(err error) error {
	r.err = err
	r.buf, r.head, r.tail = nil, 0, 0
	r.src = nil
	return err
}

// Close drops buffered data. It closes the source only when the reader was
// created by OpenFile.
func (r *LineReader) Close() error {
	r.buf, r.head, r.tail = nil, 0, 0
	r.src = nil
	if r.err == nil {
		r.err = errClosed
	}
	if r.closer != nil {
		c := r.closer
		r.closer = nil
		return c.Close()
	}
	return nil
}

var errClosed = errors.New("reverse: reader closed")
