package inspector

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"pkg.world.dev/world-engine/inspector/ecs"
)

type Options struct {
	TickRate    float64             // Number of steps per second
	TickChannel <-chan time.Time    // Drives Run instead of a ticker when set; used by tests
	Volatile    []ecs.ComponentID   // Kinds deduplicated by value, in addition to ViewVisibility
	Logger      *zerolog.Logger     // Defaults to the global logger
	Tracer      trace.Tracer        // Defaults to a noop tracer
	OnStep      func(tick ecs.Tick) // Called after every step, from the step loop
}

func newDefaultOptions() Options {
	return Options{
		TickRate: 30,
	}
}

// apply overrides the fields of opt that are set in other.
func (opt *Options) apply(other Options) {
	if other.TickRate != 0 {
		opt.TickRate = other.TickRate
	}
	if other.TickChannel != nil {
		opt.TickChannel = other.TickChannel
	}
	if other.Volatile != nil {
		opt.Volatile = other.Volatile
	}
	if other.Logger != nil {
		opt.Logger = other.Logger
	}
	if other.Tracer != nil {
		opt.Tracer = other.Tracer
	}
	if other.OnStep != nil {
		opt.OnStep = other.OnStep
	}
}

func (opt *Options) validate() error {
	if opt.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	return nil
}

func (opt *Options) logger(component string) zerolog.Logger {
	if opt.Logger != nil {
		return opt.Logger.With().Str("component", component).Logger()
	}
	return log.Logger.With().Str("component", component).Logger()
}

func (opt *Options) tracer() trace.Tracer {
	if opt.Tracer != nil {
		return opt.Tracer
	}
	return noop.NewTracerProvider().Tracer("inspector")
}
