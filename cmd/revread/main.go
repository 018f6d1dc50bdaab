package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/downfa11-org/revread/pkg/config"
	"github.com/downfa11-org/revread/pkg/filelock"
	"github.com/downfa11-org/revread/pkg/metrics"
	"github.com/downfa11-org/revread/pkg/reverse"
	"github.com/downfa11-org/revread/util"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if err == flag.ErrHelp {
			os.Exit(2)
		}
		util.Error("%v", err)
		os.Exit(1)
	}
}

// run prints each input last line first. "-" or no file reads stdin.
func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("revread", flag.ContinueOnError)
	limit := fs.Int("n", 0, "Print at most n lines per input (0 = all)")
	lockPath := fs.String("lock", "", "Hold an advisory lock on this marker path while reading")

	cfg, err := config.LoadConfig(fs, args)
	if err != nil {
		return err
	}
	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}

	w := bufio.NewWriter(stdout)
	emit := func() error {
		for _, in := range inputs {
			if err := printReversed(w, in, stdin, *limit, cfg.ReaderOptions()); err != nil {
				return err
			}
		}
		return w.Flush()
	}

	if *lockPath == "" {
		return emit()
	}
	return filelock.New(*lockPath, cfg.LockOptions()...).Do(emit)
}

func printReversed(w io.Writer, input string, stdin io.Reader, limit int, opts []reverse.Option) error {
	var (
		r   reverse.Reader
		err error
	)
	if input == "-" {
		r, err = reverse.NewLineReader(stdin, opts...)
	} else {
		r, err = reverse.OpenFile(input, opts...)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	defer r.Close()

	n := 0
	for line, err := range reverse.All(r) {
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		// the first line of a file may lack its terminator
		if len(line) > 0 && line[len(line)-1] != '\n' {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if n++; limit > 0 && n >= limit {
			break
		}
	}
	return nil
}
