// Package config holds the server settings parsed from command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"tttengine/internal/ai"
	"tttengine/internal/game"
	"tttengine/internal/session"
)

// Config is the complete server configuration
type Config struct {
	GRPCPort          int
	HTTPPort          int
	Shards            int
	ThinkDelay        time.Duration
	LogLevel          string
	LogFormat         string
	DefaultSize       int
	DefaultDifficulty string
}

// Default returns the settings used when no flags are given
func Default() Config {
	return Config{
		GRPCPort:          50051,
		HTTPPort:          8080,
		Shards:            64,
		ThinkDelay:        session.DefaultThinkDelay,
		LogLevel:          "info",
		LogFormat:         "json",
		DefaultSize:       game.DefaultBoardSize,
		DefaultDifficulty: ai.Medium.String(),
	}
}

// Parse reads flags from args into a validated Config
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Default()
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The gRPC server port")
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The HTTP/REST server port")
	fs.IntVar(&cfg.Shards, "shards", cfg.Shards, "Number of shards for data stores (higher = better concurrency)")
	fs.DurationVar(&cfg.ThinkDelay, "think-delay", cfg.ThinkDelay, "Pause before each computer move")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	fs.IntVar(&cfg.DefaultSize, "default-size", cfg.DefaultSize, "Board size for new sessions (3-5)")
	fs.StringVar(&cfg.DefaultDifficulty, "default-difficulty", cfg.DefaultDifficulty, "Computer difficulty for new sessions")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enum values
func (c Config) Validate() error {
	var errs []error
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("grpc-port %d out of range", c.GRPCPort))
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http-port %d out of range", c.HTTPPort))
	}
	if c.GRPCPort != 0 && c.GRPCPort == c.HTTPPort {
		errs = append(errs, errors.New("grpc-port and http-port must differ"))
	}
	if c.Shards < 1 {
		errs = append(errs, fmt.Errorf("shards must be positive, got %d", c.Shards))
	}
	if c.ThinkDelay < 0 {
		errs = append(errs, fmt.Errorf("think-delay must not be negative, got %s", c.ThinkDelay))
	}
	if !game.ValidSize(c.DefaultSize) {
		errs = append(errs, fmt.Errorf("default-size %d: %w", c.DefaultSize, game.ErrInvalidBoardSize))
	}
	if _, err := ai.ParseDifficulty(c.DefaultDifficulty); err != nil {
		errs = append(errs, fmt.Errorf("default-difficulty %q: %w", c.DefaultDifficulty, err))
	}
	return errors.Join(errs...)
}

// Difficulty returns the parsed default difficulty. Validate guarantees it
// parses.
func (c Config) Difficulty() ai.Difficulty {
	d, _ := ai.ParseDifficulty(c.DefaultDifficulty)
	return d
}
