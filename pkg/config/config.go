package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/revread/pkg/filelock"
	"github.com/downfa11-org/revread/pkg/lineend"
	"github.com/downfa11-org/revread/pkg/reverse"
	"github.com/downfa11-org/revread/util"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables shared by the command line tools.
type Config struct {
	LogLevel util.LogLevel `yaml:"log_level" json:"log_level"`

	// Reverse reading
	MaxMem    util.ByteSize `yaml:"max_mem" json:"max_mem"`
	BlockSize util.ByteSize `yaml:"block_size" json:"block_size"`
	ProbeSize util.ByteSize `yaml:"probe_size" json:"probe_size"`
	Strategy  string        `yaml:"strategy" json:"strategy"`

	// Advisory lock; JSON files give durations in nanoseconds
	LockTimeout      time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
	LockPollInterval time.Duration `yaml:"lock_poll_interval" json:"lock_poll_interval"`

	// Metrics
	EnableExporter bool `yaml:"enable_exporter" json:"enable_exporter"`
	ExporterPort   int  `yaml:"exporter_port" json:"exporter_port"`
}

func Default() *Config {
	return &Config{
		LogLevel:         util.LogLevelInfo,
		MaxMem:           reverse.DefaultMaxMem,
		BlockSize:        reverse.DefaultBlockSize,
		ProbeSize:        lineend.DefaultProbeSize,
		Strategy:         "auto",
		LockTimeout:      filelock.DefaultTimeout,
		LockPollInterval: filelock.DefaultPollInterval,
		ExporterPort:     9100,
	}
}

// LoadConfig registers the configuration flags on fs and parses args.
// Values are layered: defaults, then the config file (-config or CONFIG_PATH),
// then REVREAD_* environment variables, then flags given explicitly.
// Callers register their own flags on fs first and read fs.Args() afterwards.
func LoadConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	logLevelStr := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	maxMemStr := fs.String("max-mem", "4000000", "Memory budget per reverse session (e.g. 4MB, 64KiB)")
	blockSizeStr := fs.String("block-size", "4096", "Backward read size on seekable sources")
	probeSizeStr := fs.String("probe-size", "64KiB", "Bytes inspected to detect the line ending")
	strategyStr := fs.String("strategy", "auto", "Reverse reading strategy (auto, mapped, chunked)")
	lockTimeout := fs.Duration("lock-timeout", filelock.DefaultTimeout, "Advisory lock wait limit")
	lockPoll := fs.Duration("lock-poll", filelock.DefaultPollInterval, "Advisory lock retry interval")
	exporter := fs.Bool("exporter", false, "Enable Prometheus exporter")
	exporterPort := fs.Int("exporter-port", 9100, "Exporter port")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}
	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "log-level":
			cfg.LogLevel = util.ParseLogLevel(*logLevelStr)
		case "max-mem":
			cfg.MaxMem, err = parseSize(*maxMemStr)
		case "block-size":
			cfg.BlockSize, err = parseSize(*blockSizeStr)
		case "probe-size":
			cfg.ProbeSize, err = parseSize(*probeSizeStr)
		case "strategy":
			cfg.Strategy = *strategyStr
		case "lock-timeout":
			cfg.LockTimeout = *lockTimeout
		case "lock-poll":
			cfg.LockPollInterval = *lockPoll
		case "exporter":
			cfg.EnableExporter = *exporter
		case "exporter-port":
			cfg.ExporterPort = *exporterPort
		}
		if err != nil && flagErr == nil {
			flagErr = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func parseSize(s string) (util.ByteSize, error) {
	n, err := util.ParseBytes(s)
	return util.ByteSize(n), err
}

func (cfg *Config) Normalize() {
	// reverse reading
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = reverse.DefaultBlockSize
	}
	if cfg.MaxMem <= 0 {
		util.Warn("Invalid max_mem (%d), defaulting to %d", cfg.MaxMem, reverse.DefaultMaxMem)
		cfg.MaxMem = reverse.DefaultMaxMem
	}
	if cfg.ProbeSize <= 0 {
		cfg.ProbeSize = lineend.DefaultProbeSize
	}
	if _, err := reverse.ParseStrategy(cfg.Strategy); err != nil {
		util.Warn("Invalid strategy '%s', defaulting to 'auto'", cfg.Strategy)
		cfg.Strategy = "auto"
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "auto"
	}

	// advisory lock
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = filelock.DefaultTimeout
	}
	if cfg.LockPollInterval <= 0 {
		cfg.LockPollInterval = filelock.DefaultPollInterval
	}
	if cfg.LockPollInterval > cfg.LockTimeout {
		util.Warn("lock_poll_interval (%s) > lock_timeout (%s), polling once per timeout", cfg.LockPollInterval, cfg.LockTimeout)
		cfg.LockPollInterval = cfg.LockTimeout
	}

	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}
}

// ReaderOptions turns the reverse reading settings into reverse options.
func (cfg *Config) ReaderOptions() []reverse.Option {
	strategy, _ := reverse.ParseStrategy(cfg.Strategy)
	return []reverse.Option{
		reverse.WithMaxMem(int(cfg.MaxMem)),
		reverse.WithBlockSize(int(cfg.BlockSize)),
		reverse.WithProbeSize(int(cfg.ProbeSize)),
		reverse.WithStrategy(strategy),
	}
}

func (cfg *Config) LockOptions() []filelock.Option {
	return []filelock.Option{
		filelock.WithTimeout(cfg.LockTimeout),
		filelock.WithPollInterval(cfg.LockPollInterval),
	}
}
