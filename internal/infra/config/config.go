package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch"`
	Ledger   LedgerConfig   `mapstructure:"ledger" yaml:"ledger"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type DownloadConfig struct {
	OutDir        string `mapstructure:"out_dir" yaml:"out_dir"`
	QueueCapacity int    `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	Discipline    string `mapstructure:"discipline" yaml:"discipline"`
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency"`
}

type FetchConfig struct {
	ConnectTimeoutMS   int `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	ChunkTimeoutMS     int `mapstructure:"chunk_timeout_ms" yaml:"chunk_timeout_ms"`
	StallWarnEvery     int `mapstructure:"stall_warn_every" yaml:"stall_warn_every"`
	StallAbandonAt     int `mapstructure:"stall_abandon_at" yaml:"stall_abandon_at"`
	MaxConnectAttempts int `mapstructure:"max_connect_attempts" yaml:"max_connect_attempts"`
	MaxRedirectHops    int `mapstructure:"max_redirect_hops" yaml:"max_redirect_hops"`
}

type LedgerConfig struct {
	// Path to the sqlite outcome ledger. Empty disables it.
	Path string `mapstructure:"path" yaml:"path"`
}

type StatusConfig struct {
	// Addr for the status/metrics HTTP server. Empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

// Load reads the YAML config at path and applies MEDIAMIRROR_* environment
// overrides. A missing file is fine: the defaults describe a working local
// setup, only the manifest and output directory come from flags.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("download.out_dir", "./mirror")
	v.SetDefault("download.queue_capacity", 10)
	v.SetDefault("download.discipline", "pool")
	v.SetDefault("download.concurrency", 20)
	v.SetDefault("fetch.connect_timeout_ms", 3000)
	v.SetDefault("fetch.chunk_timeout_ms", 5000)
	v.SetDefault("fetch.stall_warn_every", 20)
	v.SetDefault("fetch.stall_abandon_at", 60)
	v.SetDefault("fetch.max_connect_attempts", 10)
	v.SetDefault("fetch.max_redirect_hops", 5)
	v.SetDefault("log.path", "mediamirror.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("MEDIAMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Download.Discipline {
	case "eager", "pool":
	default:
		return fmt.Errorf("download.discipline must be \"eager\" or \"pool\", got %q", c.Download.Discipline)
	}

	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("download.concurrency must be positive, got %d", c.Download.Concurrency)
	}

	if c.Fetch.ConnectTimeoutMS <= 0 || c.Fetch.ChunkTimeoutMS <= 0 {
		return fmt.Errorf("fetch timeouts must be positive")
	}

	// The stall counter is modular over a byte; thresholds past 255 could
	// never fire.
	if c.Fetch.StallWarnEvery <= 0 || c.Fetch.StallWarnEvery > 255 {
		return fmt.Errorf("fetch.stall_warn_every must be in 1..255, got %d", c.Fetch.StallWarnEvery)
	}
	if c.Fetch.StallAbandonAt <= 0 || c.Fetch.StallAbandonAt > 255 {
		return fmt.Errorf("fetch.stall_abandon_at must be in 1..255, got %d", c.Fetch.StallAbandonAt)
	}

	if c.Fetch.MaxConnectAttempts <= 0 {
		return fmt.Errorf("fetch.max_connect_attempts must be positive, got %d", c.Fetch.MaxConnectAttempts)
	}
	if c.Fetch.MaxRedirectHops < 0 {
		return fmt.Errorf("fetch.max_redirect_hops must not be negative, got %d", c.Fetch.MaxRedirectHops)
	}

	return nil
}
