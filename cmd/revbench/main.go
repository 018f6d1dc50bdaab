package main

import (
	"flag"
	"os"
	"strings"

	"github.com/downfa11-org/revread/pkg/bench"
	"github.com/downfa11-org/revread/pkg/config"
	"github.com/downfa11-org/revread/util"
)

func main() {
	fs := flag.NewFlagSet("revbench", flag.ExitOnError)
	sizesStr := fs.String("sizes", "1MB,10MB,100MB", "comma separated test file sizes")
	dir := fs.String("dir", os.TempDir(), "directory for the generated test files")
	keep := fs.Bool("keep", false, "keep the generated test files")

	cfg, err := config.LoadConfig(fs, os.Args[1:])
	if err != nil {
		util.Fatal("Failed to load config: %v", err)
	}

	var sizes []int64
	for _, s := range strings.Split(*sizesStr, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		n, err := util.ParseBytes(s)
		if err != nil {
			util.Fatal("-sizes: %v", err)
		}
		sizes = append(sizes, n)
	}

	runner := bench.NewBenchmarkRunner(*dir, sizes, cfg.ReaderOptions()...)
	runner.Keep = *keep
	if _, err := runner.Run(); err != nil {
		util.Fatal("benchmark failed: %v", err)
	}
}
