package config

import internalconfig "github.com/SmitUplenchwar2687/tickreplay/internal/config"

// Config is the top-level configuration of a tickreplay client.
type Config = internalconfig.Config

// ReplayConfig controls slice waiting.
type ReplayConfig = internalconfig.ReplayConfig

// ServerConfig holds HTTP server settings.
type ServerConfig = internalconfig.ServerConfig

// NotifyConfig selects how slice announcements travel.
type NotifyConfig = internalconfig.NotifyConfig

// RedisConfig configures the Redis notifier.
type RedisConfig = internalconfig.RedisConfig

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// Load reads defaults, the optional JSON file, .env and TICKREPLAY_* variables.
func Load(path string) (Config, error) {
	return internalconfig.Load(path)
}

// LoadFile reads a JSON config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
