// internal/config/config.go
// Package config loads linhashctl's store options from built-in defaults,
// the LINHASH_-prefixed environment, and an optional config file, the way
// a production CLI front end wires up viper for its store layer.
// Command-line flags are not read here; cmd/linhashctl applies them on
// top of the loaded Config.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the store options linhashctl needs to open an index.
type Config struct {
	// Path is the on-disk file for the index.
	Path string
	// KeySize and ValSize are the fixed record lengths, in bytes.
	KeySize uint64
	ValSize uint64
	// Lock requests the advisory single-writer flock on Open.
	Lock bool
}

// DefaultConfig returns the values used when no flag, environment
// variable, or config file sets them.
func DefaultConfig() Config {
	return Config{
		Path:    "linhash.db",
		KeySize: 8,
		ValSize: 8,
		Lock:    true,
	}
}

// Load builds a Config from (in ascending priority) built-in defaults, an
// optional config file at configPath, and the LINHASH_-prefixed
// environment. configPath may be empty, in which case only defaults and
// the environment apply.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINHASH")
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("path", def.Path)
	v.SetDefault("keysize", def.KeySize)
	v.SetDefault("valsize", def.ValSize)
	v.SetDefault("lock", def.Lock)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	return Config{
		Path:    v.GetString("path"),
		KeySize: v.GetUint64("keysize"),
		ValSize: v.GetUint64("valsize"),
		Lock:    v.GetBool("lock"),
	}, nil
}
