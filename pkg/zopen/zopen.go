// Package zopen opens files for reading, transparently decoding the compression
// implied by the file suffix.
package zopen

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// ErrNotSeekable is returned when a decompressing stream is asked to seek
// relative to its end, which would require knowing the decoded size.
var ErrNotSeekable = errors.New("zopen: stream is not seekable")

// Mode is the access mode a stream was opened with. Readers built on top of a
// File inherit it: text mode streams yield validated UTF-8 lines.
type Mode int

const (
	ModeBinary Mode = iota
	ModeText
)

func (m Mode) String() string {
	if m == ModeText {
		return "text"
	}
	return "binary"
}

type Codec int

const (
	CodecNone Codec = iota
	CodecGzip
	CodecBzip2
	CodecXZ
	CodecLZMA
	CodecZstd
	CodecLZ4
	CodecSnappy
)

var suffixes = map[string]Codec{
	".gz":   CodecGzip,
	".bz2":  CodecBzip2,
	".xz":   CodecXZ,
	".lzma": CodecLZMA,
	".zst":  CodecZstd,
	".lz4":  CodecLZ4,
	".sz":   CodecSnappy,
}

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecBzip2:
		return "bzip2"
	case CodecXZ:
		return "xz"
	case CodecLZMA:
		return "lzma"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

func (c Codec) Compressed() bool {
	return c != CodecNone
}

// CodecFor picks the decoder by the path suffix. Unknown suffixes are read as is.
func CodecFor(path string) Codec {
	if c, ok := suffixes[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return CodecNone
}

// File is a read-only stream over a possibly compressed file.
type File struct {
	path  string
	codec Codec
	mode  Mode

	file    *os.File
	reader  io.Reader
	release func() error
	pos     int64 // decoded bytes consumed, compressed streams only
}

func Open(path string, mode Mode) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	codec := CodecFor(path)
	r, release, err := newDecoder(codec, f)
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, fmt.Errorf("open %s stream %s: %w", codec, path, err)
	}

	return &File{
		path:    path,
		codec:   codec,
		mode:    mode,
		file:    f,
		reader:  r,
		release: release,
	}, nil
}

func newDecoder(codec Codec, f *os.File) (io.Reader, func() error, error) {
	switch codec {
	case CodecNone:
		return f, nil, nil

	case CodecGzip:
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return gr, gr.Close, nil

	case CodecBzip2:
		return bzip2.NewReader(f), nil, nil

	case CodecXZ:
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return xr, nil, nil

	case CodecLZMA:
		lr, err := lzma.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return lr, nil, nil

	case CodecZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() error { zr.Close(); return nil }, nil

	case CodecLZ4:
		return lz4.NewReader(f), nil, nil

	case CodecSnappy:
		return snappy.NewReader(f), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

func (f *File) Read(p []byte) (int, error) {
	n, err := f.reader.Read(p)
	f.pos += int64(n)
	return n, err
}

// Seek is native on plain files. Compressed streams emulate it: moving forward
// decodes and discards, moving backward re-opens the decoder from the start.
// Seeking relative to the end of a compressed stream fails with ErrNotSeekable.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if !f.codec.Compressed() {
		return f.file.Seek(offset, whence)
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.pos + offset
	default:
		return f.pos, ErrNotSeekable
	}
	if target < 0 {
		return f.pos, fmt.Errorf("zopen: negative position %d", target)
	}

	if target < f.pos {
		if err := f.rewind(); err != nil {
			return 0, err
		}
	}
	if target > f.pos {
		if _, err := io.CopyN(io.Discard, f, target-f.pos); err != nil && err != io.EOF {
			return f.pos, err
		}
	}
	return f.pos, nil
}

func (f *File) rewind() error {
	if f.release != nil {
		if err := f.release(); err != nil {
			return err
		}
	}
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, release, err := newDecoder(f.codec, f.file)
	if err != nil {
		return fmt.Errorf("reopen %s stream %s: %w", f.codec, f.path, err)
	}
	f.reader, f.release, f.pos = r, release, 0
	return nil
}

// Seekable reports whether the stream supports cheap random access.
func (f *File) Seekable() bool {
	return !f.codec.Compressed()
}

// Stat reports the on-disk file, which for compressed files is the compressed size.
func (f *File) Stat() (os.FileInfo, error) {
	return f.file.Stat()
}

func (f *File) Mode() Mode { return f.mode }

func (f *File) Path() string { return f.path }

func (f *File) Codec() Codec { return f.codec }

// Fd exposes the descriptor of the underlying file, compressed or not.
func (f *File) Fd() uintptr { return f.file.Fd() }

func (f *File) Close() error {
	var errs []error
	if f.release != nil {
		if err := f.release(); err != nil {
			errs = append(errs, err)
		}
		f.release = nil
	}
	if err := f.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
