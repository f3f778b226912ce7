package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jhump/infoproxy/processor"
)

const (
	flagConfig      = "config"
	flagVerbose     = "verbose"
	flagWorkers     = "workers"
	flagRegister    = "register"
	flagNoDiskCache = "no-disk-cache"
)

// Config is the command's configuration, read from infoproxygen.yaml, the
// environment and flags, in increasing order of precedence.
type Config struct {
	Marker   string         `mapstructure:"marker"`
	Registry RegistryConfig `mapstructure:"registry"`
	Register bool           `mapstructure:"register"`
	Workers  int            `mapstructure:"workers"`
	Verbose  bool           `mapstructure:"verbose"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// RegistryConfig names the registry that generated code refers to.
type RegistryConfig struct {
	Type     string `mapstructure:"type"`
	Instance string `mapstructure:"instance"`
	Lookup   string `mapstructure:"lookup"`
}

// CacheConfig controls the incremental cache.
type CacheConfig struct {
	Size int    `mapstructure:"size"`
	Dir  string `mapstructure:"dir"`
	Disk bool   `mapstructure:"disk"`
}

// loadConfig reads the configuration for cmd. The config file, if not given
// with --config, is infoproxygen.yaml in dir; it is fine for it not to exist.
func loadConfig(cmd *cobra.Command, dir string) (*Config, error) {
	v := viper.New()

	defaults := processor.DefaultSettings()
	v.SetDefault("marker", defaults.Marker)
	v.SetDefault("registry.type", defaults.RegistryType)
	v.SetDefault("registry.instance", defaults.RegistryInstance)
	v.SetDefault("registry.lookup", defaults.RegistryLookup)
	v.SetDefault("register", false)
	v.SetDefault("workers", 0)
	v.SetDefault("verbose", false)
	v.SetDefault("cache.size", processor.DefaultCacheSize)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.disk", true)

	configFile, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("infoproxygen")
		v.SetConfigType("yaml")
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("INFOPROXYGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"verbose":  flagVerbose,
		"workers":  flagWorkers,
		"register": flagRegister,
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("failed to bind flag --%s: %w", flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if noDisk, _ := cmd.Flags().GetBool(flagNoDiskCache); noDisk {
		cfg.Cache.Disk = false
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	return c.settings().Validate()
}

func (c *Config) settings() processor.Settings {
	return processor.Settings{
		Marker:           c.Marker,
		RegistryType:     c.Registry.Type,
		RegistryInstance: c.Registry.Instance,
		RegistryLookup:   c.Registry.Lookup,
		Register:         c.Register,
	}
}

// openCache opens the cache described by the config. The disk cache, when
// enabled, defaults to processor.DefaultCacheDir.
func (c *Config) openCache() (*processor.Cache, error) {
	var disk *processor.DiskCache
	if c.Cache.Disk {
		var err error
		if disk, err = processor.OpenDiskCache(c.Cache.Dir); err != nil {
			return nil, err
		}
	}
	return processor.NewCache(c.Cache.Size, disk)
}

func (c *Config) newLogger() (*zap.Logger, error) {
	if c.Verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// newGenerator creates a generator per cfg that reports diagnostics to r.
func (c *Config) newGenerator(logger *zap.Logger, r processor.Reporter) (*processor.Generator, error) {
	cache, err := c.openCache()
	if err != nil {
		return nil, err
	}
	return processor.NewGenerator(
		processor.WithSettings(c.settings()),
		processor.WithCache(cache),
		processor.WithWorkers(c.Workers),
		processor.WithLogger(logger),
		processor.WithReporter(r),
	)
}
