// Package config loads blockfs settings from defaults, an optional YAML file
// and the environment. Command-line flags are applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	platformerrors "github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"

	"blockfs/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("config")
)

// DefaultTotalBlocks is the pool size used when nothing else is configured.
const DefaultTotalBlocks = 100

// Config holds every tunable of the binary.
type Config struct {
	// Number of blocks in the pool
	TotalBlocks int `yaml:"total_blocks"`

	// Preferred I/O size reported to FUSE
	BlockSize uint32 `yaml:"block_size"`

	// ERROR, WARN, INFO, DEBUG or TRACE
	LogLevel string `yaml:"log_level"`

	// Ownership reported for FUSE nodes
	UID uint32 `yaml:"uid"`
	GID uint32 `yaml:"gid"`

	Mount MountConfig `yaml:"mount"`
}

// MountConfig controls the FUSE mount.
type MountConfig struct {
	FSName     string `yaml:"fsname"`
	AllowOther bool   `yaml:"allow_other"`
}

// Default returns the built-in configuration, owned by the current user.
func Default() *Config {
	return &Config{
		TotalBlocks: DefaultTotalBlocks,
		BlockSize:   4096,
		LogLevel:    "INFO",
		UID:         safeIntToUint32(os.Getuid()),
		GID:         safeIntToUint32(os.Getgid()),
		Mount: MountConfig{
			FSName: "blockfs",
		},
	}
}

// Load builds a configuration from defaults, then the YAML file at path
// (skipped when path is empty), then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		logger.Debug("Loading config file: %s", path)
		f, err := os.Open(path)
		if err != nil {
			return nil, platformerrors.Wrapf(err, platformerrors.CodeInvalidConfig, "failed to open config file %s", path)
		}
		defer f.Close()

		if err := cfg.Decode(f); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Config loaded: %d blocks, log level %s", cfg.TotalBlocks, cfg.LogLevel)
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "failed to read config")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "failed to parse config")
	}
	return nil
}

// ApplyEnv overrides fields from environment variables looked up through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("BLOCKFS_TOTAL_BLOCKS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("BLOCKFS_TOTAL_BLOCKS", v, err)
		}
		c.TotalBlocks = n
	}
	if v, ok := lookup("PUID"); ok && v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return envError("PUID", v, err)
		}
		c.UID = uint32(id)
		logger.Debug("Using PUID from environment: %d", c.UID)
	}
	if v, ok := lookup("PGID"); ok && v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return envError("PGID", v, err)
		}
		c.GID = uint32(id)
		logger.Debug("Using PGID from environment: %d", c.GID)
	}
	return nil
}

// Validate checks that the configuration can build a store and logger.
func (c *Config) Validate() error {
	if c.TotalBlocks <= 0 {
		return platformerrors.WithContext(
			platformerrors.Newf(platformerrors.CodeInvalidConfig, "total_blocks must be positive, got %d", c.TotalBlocks),
			"field", "total_blocks")
	}
	if c.BlockSize == 0 {
		return platformerrors.WithContext(
			platformerrors.New(platformerrors.CodeInvalidConfig, "block_size must be positive"),
			"field", "block_size")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return platformerrors.WithContext(
			platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "invalid log_level"),
			"field", "log_level")
	}
	return nil
}

// Level returns the parsed log level. Call Validate first.
func (c *Config) Level() logging.LogLevel {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

func envError(name, value string, err error) error {
	return platformerrors.WithContext(
		platformerrors.Wrapf(err, platformerrors.CodeInvalidConfig, "invalid %s=%q", name, value),
		"env", name)
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// String renders the configuration for debug logs.
func (c *Config) String() string {
	return fmt.Sprintf("blocks=%d block_size=%d log_level=%s uid=%d gid=%d fsname=%s allow_other=%v",
		c.TotalBlocks, c.BlockSize, c.LogLevel, c.UID, c.GID, c.Mount.FSName, c.Mount.AllowOther)
}
