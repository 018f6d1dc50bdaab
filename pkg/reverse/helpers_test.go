package reverse_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/revread/pkg/reverse"
	"github.com/downfa11-org/revread/pkg/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// sequentialReader hides Seek and ReadAt, like a pipe would.
type sequentialReader struct {
	r io.Reader
}

func (s *sequentialReader) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// seekOnly hides ReadAt so reads go through Seek + Read.
type seekOnly struct {
	io.ReadSeeker
}

type warnings struct {
	got []types.Warning
}

func (w *warnings) record(warning types.Warning) {
	w.got = append(w.got, warning)
}

func (w *warnings) count(kind types.WarningKind) int {
	n := 0
	for _, warning := range w.got {
		if warning.Kind == kind {
			n++
		}
	}
	return n
}

func readAll(t *testing.T, r reverse.Reader) []string {
	t.Helper()
	var got []string
	for line, err := range reverse.Text(r) {
		require.NoError(t, err)
		got = append(got, line)
	}
	return got
}

// forwardLines splits content the way a forward reader would, keeping terminators.
func forwardLines(content, sep string) []string {
	var lines []string
	for len(content) > 0 {
		i := bytes.Index([]byte(content), []byte(sep))
		if i < 0 {
			lines = append(lines, content)
			break
		}
		lines = append(lines, content[:i+len(sep)])
		content = content[i+len(sep):]
	}
	return lines
}

func reversed(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[len(lines)-1-i] = l
	}
	return out
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeCompressed(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	var (
		buf bytes.Buffer
		w   io.WriteCloser
		err error
	)
	switch filepath.Ext(name) {
	case ".gz":
		w = gzip.NewWriter(&buf)
	case ".zst":
		w, err = zstd.NewWriter(&buf)
	case ".lz4":
		w = lz4.NewWriter(&buf)
	case ".xz":
		w, err = xz.NewWriter(&buf)
	default:
		t.Fatalf("no encoder for %s", name)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return writeFile(t, dir, name, buf.Bytes())
}
