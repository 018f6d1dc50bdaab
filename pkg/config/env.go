package config

import (
	"os"
	"time"

	"github.com/downfa11-org/revread/util"
)

func (cfg *Config) applyEnv() {
	if v := os.Getenv("REVREAD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = util.ParseLogLevel(v)
	}
	overrideEnvSize(&cfg.MaxMem, "REVREAD_MAX_MEM")
	overrideEnvSize(&cfg.BlockSize, "REVREAD_BLOCK_SIZE")
	overrideEnvSize(&cfg.ProbeSize, "REVREAD_PROBE_SIZE")
	overrideEnvString(&cfg.Strategy, "REVREAD_STRATEGY")
	overrideEnvDuration(&cfg.LockTimeout, "REVREAD_LOCK_TIMEOUT")
	overrideEnvDuration(&cfg.LockPollInterval, "REVREAD_LOCK_POLL_INTERVAL")
	overrideEnvBool(&cfg.EnableExporter, "REVREAD_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "REVREAD_EXPORTER_PORT")
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvSize(target *util.ByteSize, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := util.ParseBytes(v)
		if err != nil {
			util.Warn("Ignoring %s: %v", key, err)
			return
		}
		*target = util.ByteSize(n)
	}
}

func overrideEnvDuration(target *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			util.Warn("Ignoring %s: %v", key, err)
			return
		}
		*target = d
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
