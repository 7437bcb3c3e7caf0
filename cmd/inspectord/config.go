package main

import (
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// config holds the configuration of the inspector daemon.
// Configuration can be set via environment variables with the specified defaults.
type config struct {
	// Address the HTTP and websocket server listens on.
	Address string `env:"INSPECTOR_ADDRESS" envDefault:":15703"`

	// Number of steps per second.
	TickRate float64 `env:"INSPECTOR_TICK_RATE" envDefault:"30"`

	// Outbound messages queued per stream before a slow client is dropped.
	StreamBuffer int `env:"INSPECTOR_STREAM_BUFFER" envDefault:"16"`

	// Redis address for world snapshots. Snapshots are disabled when empty.
	RedisAddress string `env:"INSPECTOR_REDIS_ADDRESS"`

	// Key namespace for world snapshots.
	RedisNamespace string `env:"INSPECTOR_REDIS_NAMESPACE" envDefault:"inspector"`

	// Number of steps between snapshots.
	SnapshotEvery uint32 `env:"INSPECTOR_SNAPSHOT_EVERY" envDefault:"300"`
}

// loadConfig loads the daemon configuration from environment variables.
func loadConfig() (config, error) {
	cfg := config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse inspector config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

func (cfg *config) validate() error {
	if cfg.Address == "" {
		return eris.New("address cannot be empty")
	}
	if cfg.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if cfg.StreamBuffer <= 0 {
		return eris.New("stream buffer must be positive")
	}
	if cfg.RedisAddress != "" {
		if cfg.RedisNamespace == "" {
			return eris.New("redis namespace cannot be empty when snapshots are enabled")
		}
		if cfg.SnapshotEvery == 0 {
			return eris.New("snapshot interval cannot be 0 when snapshots are enabled")
		}
	}
	return nil
}

func (cfg *config) applyToOptions(opt *serveOptions) {
	opt.Address = cfg.Address
	opt.TickRate = cfg.TickRate
	opt.StreamBuffer = cfg.StreamBuffer
	opt.RedisAddress = cfg.RedisAddress
	opt.RedisNamespace = cfg.RedisNamespace
	opt.SnapshotEvery = cfg.SnapshotEvery
}

type serveOptions struct {
	Address        string  // Listen address
	TickRate       float64 // Number of steps per second
	StreamBuffer   int     // Per-client outbound queue size
	RedisAddress   string  // Snapshot store, empty to disable
	RedisNamespace string  // Snapshot key namespace
	SnapshotEvery  uint32  // Steps between snapshots
}

// validate checks the merged options with the same rules as the environment config.
func (opt *serveOptions) validate() error {
	cfg := config{
		Address:        opt.Address,
		TickRate:       opt.TickRate,
		StreamBuffer:   opt.StreamBuffer,
		RedisAddress:   opt.RedisAddress,
		RedisNamespace: opt.RedisNamespace,
		SnapshotEvery:  opt.SnapshotEvery,
	}
	return cfg.validate()
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *serveOptions) apply(newOpt serveOptions) {
	if newOpt.Address != "" {
		opt.Address = newOpt.Address
	}
	if newOpt.TickRate != 0 {
		opt.TickRate = newOpt.TickRate
	}
	if newOpt.StreamBuffer != 0 {
		opt.StreamBuffer = newOpt.StreamBuffer
	}
	if newOpt.RedisAddress != "" {
		opt.RedisAddress = newOpt.RedisAddress
	}
	if newOpt.RedisNamespace != "" {
		opt.RedisNamespace = newOpt.RedisNamespace
	}
	if newOpt.SnapshotEvery != 0 {
		opt.SnapshotEvery = newOpt.SnapshotEvery
	}
}
