package bench

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/downfa11-org/revread/pkg/reverse"
	"github.com/downfa11-org/revread/util"
)

// Method locates a line counted from the end of a file.
type Method struct {
	Name string
	// Find returns the line that is fromEnd lines before the end (1 = last).
	Find func(path string, total, fromEnd int) (string, error)
}

type Result struct {
	Method string
	Last   time.Duration
	P75    time.Duration
	P50    time.Duration
}

type BenchmarkRunner struct {
	Dir     string
	Sizes   []int64
	Methods []Method
	Out     io.Writer
	Keep    bool
}

func NewBenchmarkRunner(dir string, sizes []int64, opts ...reverse.Option) *BenchmarkRunner {
	return &BenchmarkRunner{
		Dir:     dir,
		Sizes:   sizes,
		Methods: DefaultMethods(opts...),
		Out:     os.Stdout,
	}
}

func DefaultMethods(opts ...reverse.Option) []Method {
	return []Method{
		{Name: "forward", Find: ForwardLine},
		{Name: "mapped", Find: reverseLine(append(slices.Clone(opts), reverse.WithStrategy(reverse.StrategyMapped)))},
		{Name: "chunked", Find: reverseLine(append(slices.Clone(opts), reverse.WithStrategy(reverse.StrategyChunked)))},
	}
}

// Run creates one test file per size and times every method on it.
func (b *BenchmarkRunner) Run() (map[int64][]Result, error) {
	results := make(map[int64][]Result, len(b.Sizes))
	for _, size := range b.Sizes {
		path := filepath.Join(b.Dir, fmt.Sprintf("revbench_%d.txt", size))
		start := time.Now()
		total, err := CreateTestFile(path, size)
		if err != nil {
			return nil, err
		}
		util.Info("Test file of %d bytes created with %d lines in %v", size, total, time.Since(start))

		for _, m := range b.Methods {
			r, err := b.measure(m, path, total)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", m.Name, path, err)
			}
			results[size] = append(results[size], r)
		}
		b.report(size, total, results[size])

		if !b.Keep {
			if err := os.Remove(path); err != nil {
				util.Warn("remove %s: %v", path, err)
			}
		}
	}
	return results, nil
}

func (b *BenchmarkRunner) measure(m Method, path string, total int) (Result, error) {
	res := Result{Method: m.Name}
	targets := []struct {
		dst     *time.Duration
		fromEnd int
	}{
		{&res.Last, 1},
		{&res.P75, total - int(0.75*float64(total))},
		{&res.P50, total - int(0.5*float64(total))},
	}
	for _, tg := range targets {
		start := time.Now()
		line, err := m.Find(path, total, tg.fromEnd)
		if err != nil {
			return res, err
		}
		*tg.dst = time.Since(start)

		if want := ForwardLineText(total - tg.fromEnd + 1); line != want {
			return res, fmt.Errorf("line %d from the end: got %q, want %q", tg.fromEnd, line, want)
		}
	}
	return res, nil
}

func (b *BenchmarkRunner) report(size int64, total int, results []Result) {
	fmt.Fprintf(b.Out, "\n🧪 BENCHMARK RESULT [%d bytes, %d lines] 🧪\n", size, total)
	fmt.Fprintf(b.Out, "-------------------------------------\n")
	for _, r := range results {
		fmt.Fprintf(b.Out, " %-8s last: %-12v 75%%: %-12v 50%%: %v\n", r.Method, r.Last, r.P75, r.P50)
	}
	fmt.Fprintf(b.Out, "-------------------------------------\n")
}

// CreateTestFile writes numbered lines until the next one would exceed size
// bytes and returns the number of lines written.
func CreateTestFile(path string, size int64) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriterSize(f, 1<<20)

	var written int64
	n := 0
	for {
		line := ForwardLineText(n + 1)
		if written+int64(len(line)) > size {
			break
		}
		if _, err := w.WriteString(line); err != nil {
			_ = f.Close()
			return 0, err
		}
		written += int64(len(line))
		n++
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return 0, err
	}
	return n, f.Close()
}

// ForwardLineText is line n (1-based) of a file made by CreateTestFile.
func ForwardLineText(n int) string {
	return fmt.Sprintf("This is line number %d\n", n)
}

// ForwardLine scans from the start of the file, the baseline the reverse
// readers are compared against.
func ForwardLine(path string, total, fromEnd int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	target := total - fromEnd
	br := bufio.NewReader(f)
	for i := 0; ; i++ {
		line, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		if i == target {
			return line, nil
		}
	}
}

func reverseLine(opts []reverse.Option) func(string, int, int) (string, error) {
	return func(path string, _, fromEnd int) (string, error) {
		r, err := reverse.OpenFile(path, opts...)
		if err != nil {
			return "", err
		}
		defer r.Close()

		i := 0
		for line, err := range reverse.Text(r) {
			if err != nil {
				return "", err
			}
			if i++; i == fromEnd {
				return line, nil
			}
		}
		return "", io.ErrUnexpectedEOF
	}
}
