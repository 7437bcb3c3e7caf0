package server

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultAddress      = ":15703"
	defaultStreamBuffer = 16
	defaultCallTimeout  = 5 * time.Second
	writeDeadline       = 5 * time.Second
	shutdownTimeout     = 5 * time.Second
)

type Options struct {
	Address      string          // Listen address used by Serve
	StreamBuffer int             // Outbound messages queued per stream before the client is dropped
	CallTimeout  time.Duration   // How long an HTTP request waits for the step loop
	Logger       *zerolog.Logger // Defaults to the global logger
}

func newDefaultOptions() Options {
	return Options{
		Address:      defaultAddress,
		StreamBuffer: defaultStreamBuffer,
		CallTimeout:  defaultCallTimeout,
	}
}

func (opt *Options) apply(other Options) {
	if other.Address != "" {
		opt.Address = other.Address
	}
	if other.StreamBuffer != 0 {
		opt.StreamBuffer = other.StreamBuffer
	}
	if other.CallTimeout != 0 {
		opt.CallTimeout = other.CallTimeout
	}
	if other.Logger != nil {
		opt.Logger = other.Logger
	}
}

func (opt *Options) validate() error {
	if opt.StreamBuffer <= 0 {
		return eris.New("stream buffer must be positive")
	}
	if opt.CallTimeout <= 0 {
		return eris.New("call timeout must be positive")
	}
	return nil
}

func (opt *Options) logger() zerolog.Logger {
	if opt.Logger != nil {
		return opt.Logger.With().Str("component", "server").Logger()
	}
	return log.Logger.With().Str("component", "server").Logger()
}
