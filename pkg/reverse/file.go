package reverse

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/downfa11-org/revread/pkg/types"
	"github.com/downfa11-org/revread/pkg/zopen"
)

// OpenFile reverses the file at path. Plain regular files are memory mapped;
// compressed files, special files and files that fail to map are decoded
// through zopen and handed to a LineReader. WithStrategy forces either path.
func OpenFile(path string, opts ...Option) (Reader, error) {
	o := buildOptions(opts)
	codec := zopen.CodecFor(path)

	if o.strategy == StrategyMapped {
		return openMapped(path, o)
	}

	if o.strategy == StrategyAuto && !codec.Compressed() {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Mode().IsRegular() {
			mr, err := openMapped(path, o)
			if err == nil {
				return mr, nil
			}
			var me *mapError
			if !errors.As(err, &me) {
				return nil, err
			}
			o.warn(types.Warning{
				Kind:    types.WarnMmapFallback,
				Source:  path,
				Message: fmt.Sprintf("%v; falling back to chunked reading", err),
			})
		}
	}

	mode := zopen.ModeBinary
	if o.modeSet {
		mode = o.mode
	}
	f, err := zopen.Open(path, mode)
	if err != nil {
		return nil, err
	}
	lr, err := newLineReader(f, o)
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	lr.closer = f
	if lr.readsInBlocks() {
		advise(f)
	}
	return lr, nil
}

// Tail returns the last n lines of the file at path in file order.
// n <= 0 returns every line.
func Tail(path string, n int, opts ...Option) ([][]byte, error) {
	r, err := OpenFile(path, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var lines [][]byte
	for n <= 0 || len(lines) < n {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	slices.Reverse(lines)
	return lines, nil
}
