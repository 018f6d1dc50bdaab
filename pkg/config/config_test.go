package config_test

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/downfa11-org/revread/pkg/config"
	"github.com/downfa11-org/revread/pkg/filelock"
	"github.com/downfa11-org/revread/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("test", flag.ContinueOnError)
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &config.Config{LogLevel: util.LogLevelInfo}
	cfg.Normalize()

	assert.Equal(t, util.ByteSize(4_000_000), cfg.MaxMem)
	assert.Equal(t, util.ByteSize(4096), cfg.BlockSize)
	assert.Equal(t, util.ByteSize(64<<10), cfg.ProbeSize)
	assert.Equal(t, "auto", cfg.Strategy)
	assert.Equal(t, 10*time.Second, cfg.LockTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.LockPollInterval)
	assert.Equal(t, 9100, cfg.ExporterPort)

	assert.Equal(t, config.Default(), cfg)
}

func TestNormalizeFixesInvalidValues(t *testing.T) {
	cfg := &config.Config{
		Strategy:         "sideways",
		LockTimeout:      time.Second,
		LockPollInterval: time.Minute,
	}
	cfg.Normalize()

	assert.Equal(t, "auto", cfg.Strategy)
	assert.Equal(t, time.Second, cfg.LockPollInterval)
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	fs := newFlagSet()
	lines := fs.Int("n", 0, "lines")
	cfg, err := config.LoadConfig(fs, []string{
		"-n", "5", "-max-mem", "64KiB", "-strategy", "chunked", "-lock-timeout", "2s", "file.txt",
	})
	require.NoError(t, err)

	assert.Equal(t, 5, *lines)
	assert.Equal(t, []string{"file.txt"}, fs.Args())
	assert.Equal(t, util.ByteSize(64<<10), cfg.MaxMem)
	assert.Equal(t, util.ByteSize(4096), cfg.BlockSize)
	assert.Equal(t, "chunked", cfg.Strategy)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.False(t, cfg.EnableExporter)
}

func TestLoadConfigFileLayering(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "revread.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
log_level: warn
max_mem: 1MB
block_size: 512
strategy: mapped
lock_timeout: 3s
enable_exporter: true
exporter_port: 9200
`), 0o644))

	t.Run("yaml file", func(t *testing.T) {
		cfg, err := config.LoadConfig(newFlagSet(), []string{"-config", yamlPath})
		require.NoError(t, err)
		assert.Equal(t, util.LogLevelWarn, cfg.LogLevel)
		assert.Equal(t, util.ByteSize(1_000_000), cfg.MaxMem)
		assert.Equal(t, util.ByteSize(512), cfg.BlockSize)
		assert.Equal(t, "mapped", cfg.Strategy)
		assert.Equal(t, 3*time.Second, cfg.LockTimeout)
		assert.Equal(t, filelock.DefaultPollInterval, cfg.LockPollInterval)
		assert.True(t, cfg.EnableExporter)
		assert.Equal(t, 9200, cfg.ExporterPort)
	})

	t.Run("explicit flags win over the file", func(t *testing.T) {
		cfg, err := config.LoadConfig(newFlagSet(), []string{"-config", yamlPath, "-block-size", "1k", "-exporter=false"})
		require.NoError(t, err)
		assert.Equal(t, util.ByteSize(1024), cfg.BlockSize)
		assert.False(t, cfg.EnableExporter)
		assert.Equal(t, "mapped", cfg.Strategy)
	})

	t.Run("env wins over the file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", yamlPath)
		t.Setenv("REVREAD_STRATEGY", "chunked")
		t.Setenv("REVREAD_MAX_MEM", "2MB")

		cfg, err := config.LoadConfig(newFlagSet(), nil)
		require.NoError(t, err)
		assert.Equal(t, "chunked", cfg.Strategy)
		assert.Equal(t, util.ByteSize(2_000_000), cfg.MaxMem)
		assert.Equal(t, util.ByteSize(512), cfg.BlockSize)
	})

	util.SetLevel(util.LogLevelInfo)
}

func TestLoadConfigJSON(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	path := filepath.Join(t.TempDir(), "revread.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_mem":"8MB","probe_size":1024,"lock_poll_interval":1000000}`), 0o644))

	cfg, err := config.LoadConfig(newFlagSet(), []string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, util.ByteSize(8_000_000), cfg.MaxMem)
	assert.Equal(t, util.ByteSize(1024), cfg.ProbeSize)
	assert.Equal(t, time.Millisecond, cfg.LockPollInterval)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	_, err := config.LoadConfig(newFlagSet(), []string{"-max-mem", "lots"})
	assert.Error(t, err)

	_, err = config.LoadConfig(newFlagSet(), []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("max_mem: [1, 2]"), 0o644))
	_, err = config.LoadConfig(newFlagSet(), []string{"-config", bad})
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	cfg := config.Default()
	assert.Len(t, cfg.ReaderOptions(), 4)
	assert.Len(t, cfg.LockOptions(), 2)
}
