package config

import "time"

// Config holds reflector configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string        `mapstructure:"database_path" yaml:"database_path"`
	ProfileTTL   time.Duration `mapstructure:"profile_ttl" yaml:"profile_ttl"`

	// Empty groups older than GroupRetention are swept every GroupSweepEvery.
	GroupRetention  time.Duration `mapstructure:"group_retention" yaml:"group_retention"`
	GroupSweepEvery time.Duration `mapstructure:"group_sweep_every" yaml:"group_sweep_every"`

	// Subscriber tier lookup. Empty URL disables the lookup entirely.
	TierURL          string        `mapstructure:"tier_url" yaml:"tier_url"`
	TierToken        string        `mapstructure:"tier_token" yaml:"tier_token"`
	TierRefreshEvery time.Duration `mapstructure:"tier_refresh_every" yaml:"tier_refresh_every"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8088",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "reflector.db",
		ProfileTTL:        120 * 24 * time.Hour,
		GroupRetention:    6 * time.Hour,
		GroupSweepEvery:   time.Hour,
		TierRefreshEvery:  6 * time.Hour,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ProfileTTL != 0 {
		c.ProfileTTL = other.ProfileTTL
	}
	if other.GroupRetention != 0 {
		c.GroupRetention = other.GroupRetention
	}
	if other.GroupSweepEvery != 0 {
		c.GroupSweepEvery = other.GroupSweepEvery
	}
	if other.TierURL != "" {
		c.TierURL = other.TierURL
	}
	if other.TierToken != "" {
		c.TierToken = other.TierToken
	}
	if other.TierRefreshEvery != 0 {
		c.TierRefreshEvery = other.TierRefreshEvery
	}
}
