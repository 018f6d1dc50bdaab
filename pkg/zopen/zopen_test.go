package zopen_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/revread/pkg/zopen"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloWorld = "HelloWorld.\n\n"

func TestCodecFor(t *testing.T) {
	tests := []struct {
		path string
		want zopen.Codec
	}{
		{"run.log", zopen.CodecNone},
		{"run", zopen.CodecNone},
		{"run.log.gz", zopen.CodecGzip},
		{"RUN.LOG.GZ", zopen.CodecGzip},
		{"run.bz2", zopen.CodecBzip2},
		{"run.xz", zopen.CodecXZ},
		{"run.lzma", zopen.CodecLZMA},
		{"run.zst", zopen.CodecZstd},
		{"run.lz4", zopen.CodecLZ4},
		{"run.sz", zopen.CodecSnappy},
		{"archive.gz.txt", zopen.CodecNone},
	}

	for _, tt := range tests {
		if got := zopen.CodecFor(tt.path); got != tt.want {
			t.Errorf("CodecFor(%q) = %s; want %s", tt.path, got, tt.want)
		}
	}
}

func TestOpenFixtures(t *testing.T) {
	for _, name := range []string{
		"myfile",
		"myfile_gz.gz",
		"myfile_bz2.bz2",
		"myfile_xz.xz",
		"myfile_lzma.lzma",
	} {
		name := name
		t.Run(name, func(t *testing.T) {
			f, err := zopen.Open(filepath.Join("testdata", name), zopen.ModeText)
			require.NoError(t, err)
			defer f.Close()

			data, err := io.ReadAll(f)
			require.NoError(t, err)
			assert.Equal(t, helloWorld, string(data))
			assert.Equal(t, zopen.ModeText, f.Mode())
		})
	}
}

func TestOpenEncodedInTest(t *testing.T) {
	dir := t.TempDir()

	encoders := map[string]func(w io.Writer) (io.WriteCloser, error){
		"data.gz": func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
		"data.zst": func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
		"data.lz4": func(w io.Writer) (io.WriteCloser, error) {
			return lz4.NewWriter(w), nil
		},
		"data.sz": func(w io.Writer) (io.WriteCloser, error) {
			return snappy.NewBufferedWriter(w), nil
		},
	}

	payload := bytes.Repeat([]byte("line of text\r\n"), 500)

	for name, enc := range encoders {
		name, enc := name, enc
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := enc(&buf)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

			f, err := zopen.Open(path, zopen.ModeBinary)
			require.NoError(t, err)
			defer f.Close()

			got, err := io.ReadAll(f)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.False(t, f.Seekable())
		})
	}
}

func TestSeekOnlyOnPlainFiles(t *testing.T) {
	plain, err := zopen.Open(filepath.Join("testdata", "myfile"), zopen.ModeBinary)
	require.NoError(t, err)
	defer plain.Close()

	assert.True(t, plain.Seekable())
	pos, err := plain.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	rest, err := io.ReadAll(plain)
	require.NoError(t, err)
	assert.Equal(t, helloWorld[5:], string(rest))

	compressed, err := zopen.Open(filepath.Join("testdata", "myfile_gz.gz"), zopen.ModeBinary)
	require.NoError(t, err)
	defer compressed.Close()

	_, err = compressed.Seek(0, io.SeekEnd)
	assert.True(t, errors.Is(err, zopen.ErrNotSeekable))
}

func TestCompressedSeekEmulation(t *testing.T) {
	f, err := zopen.Open(filepath.Join("testdata", "myfile_bz2.bz2"), zopen.ModeBinary)
	require.NoError(t, err)
	defer f.Close()

	head := make([]byte, 5)
	_, err = io.ReadFull(f, head)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(head))

	pos, err := f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	pos, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pos)

	all, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, helloWorld, string(all))

	pos, err = f.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pos)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, helloWorld[2:], string(rest))
}

func TestOpenErrors(t *testing.T) {
	_, err := zopen.Open(filepath.Join(t.TempDir(), "missing.gz"), zopen.ModeBinary)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bogus := filepath.Join(t.TempDir(), "bogus.gz")
	require.NoError(t, os.WriteFile(bogus, []byte("not gzip at all"), 0o644))
	_, err = zopen.Open(bogus, zopen.ModeBinary)
	assert.Error(t, err)
}
