// Package telemetry sets up logging and tracing for the inspector process. The environment
// (INSPECTOR_LOG_LEVEL, INSPECTOR_LOG_FORMAT, INSPECTOR_TRACING, INSPECTOR_OTLP_ENDPOINT,
// INSPECTOR_TRACE_SAMPLE_RATIO) provides the defaults and Options override them. Spans are exported
// over OTLP gRPC when tracing is enabled; otherwise the tracer is a noop.
package telemetry

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Telemetry struct {
	Logger zerolog.Logger
	Tracer trace.Tracer

	service  string
	provider *sdktrace.TracerProvider // nil when tracing is off
}

// Option overrides a setting read from the environment.
type Option func(*settings)

type settings struct {
	Config
	writer io.Writer
}

// WithWriter sends log output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.writer = w }
}

// WithLogLevel sets the minimum level that is logged.
func WithLogLevel(level zerolog.Level) Option {
	return func(s *settings) { s.LogLevel = level }
}

// WithLogFormat sets the log output format.
func WithLogFormat(format LogFormat) Option {
	return func(s *settings) { s.LogFormat = format }
}

// WithTracing enables span export to the collector at endpoint.
func WithTracing(endpoint string, sampleRatio float64) Option {
	return func(s *settings) {
		s.Tracing = true
		s.OTLPEndpoint = endpoint
		s.SampleRatio = sampleRatio
	}
}

// New builds the logger and tracer of a service.
func New(service string, opts ...Option) (*Telemetry, error) {
	if service == "" {
		return nil, eris.New("service name cannot be empty")
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := settings{Config: cfg, writer: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid telemetry config")
	}

	t := &Telemetry{
		Logger:  newLogger(s.writer, s.LogLevel, s.LogFormat),
		Tracer:  noop.NewTracerProvider().Tracer(service),
		service: service,
	}
	if s.Tracing {
		provider, err := newTracerProvider(context.Background(), service, s.OTLPEndpoint, s.SampleRatio)
		if err != nil {
			return nil, eris.Wrap(err, "failed to set up tracing")
		}
		t.provider = provider
		t.Tracer = provider.Tracer(service)
	}
	return t, nil
}

// Component returns a logger tagged with the service and the given component.
func (t *Telemetry) Component(name string) zerolog.Logger {
	return t.Logger.With().Str("component", t.service+"."+name).Logger()
}

// Install makes this telemetry the process default: the global zerolog logger and, when tracing,
// the global tracer provider and propagator.
func (t *Telemetry) Install() {
	log.Logger = t.Logger //nolint:reassign // the global logger is meant to be replaced
	if t.provider != nil {
		otel.SetTracerProvider(t.provider)
		otel.SetTextMapPropagator(newPropagator())
	}
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return eris.Wrap(t.provider.Shutdown(ctx), "failed to shut down tracer provider")
}
