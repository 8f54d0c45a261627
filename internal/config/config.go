// Package config loads process configuration from environment variables,
// with defaults suitable for a local run against a feed file on disk.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the full set of process-level settings the bootstrap needs
// to wire a decoder, a persistence sink, and an optional delivery
// server around the replay engine.
type Config struct {
	FeedPath    string `mapstructure:"feed_path"`
	DBPath      string `mapstructure:"db_path"`
	BindAddress string `mapstructure:"bind_address"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// Load reads configuration from FEED_PATH, DB_PATH, BIND_ADDRESS, and
// BATCH_SIZE environment variables, falling back to defaults for any
// that are unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("feed_path", "assets/feed.dbn")
	v.SetDefault("db_path", "mbo_data.db")
	v.SetDefault("bind_address", "0.0.0.0:3000")
	v.SetDefault("batch_size", 1000)

	bindEnvs(v, "feed_path", "db_path", "bind_address", "batch_size")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvs maps each mapstructure key to its upper-cased environment
// variable name (feed_path -> FEED_PATH), since viper's automatic env
// matching alone does not reach nested Unmarshal targets reliably.
func bindEnvs(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
}
