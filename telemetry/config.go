package telemetry

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const envPrefix = "INSPECTOR_"

// Config is the telemetry configuration read from INSPECTOR_* environment variables.
type Config struct {
	// Tracing exports spans to an OTLP collector. Logging is always set up.
	Tracing bool `env:"TRACING" envDefault:"false"`

	// OTLPEndpoint is the gRPC address of the collector.
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`

	// SampleRatio is the fraction of root spans that are sampled (0.0 to 1.0).
	SampleRatio float64 `env:"TRACE_SAMPLE_RATIO" envDefault:"1.0"`

	LogLevel  zerolog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat LogFormat     `env:"LOG_FORMAT" envDefault:"pretty"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, eris.Wrap(err, "failed to parse telemetry config")
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.LogFormat == LogFormatUndefined {
		return eris.New("log format must be 'json' or 'pretty'")
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return eris.Errorf("trace sample ratio %g is outside [0, 1]", cfg.SampleRatio)
	}
	if cfg.Tracing && cfg.OTLPEndpoint == "" {
		return eris.New("an OTLP endpoint is required when tracing is enabled")
	}
	return nil
}

// LogFormat is the log output format.
type LogFormat uint8

const (
	LogFormatUndefined LogFormat = iota
	LogFormatJSON                // One JSON object per line
	LogFormatPretty              // Colored console output
)

func (f LogFormat) String() string {
	switch f {
	case LogFormatJSON:
		return "json"
	case LogFormatPretty:
		return "pretty"
	case LogFormatUndefined:
		return "undefined"
	default:
		return "undefined"
	}
}

// UnmarshalText parses a format name, case insensitively.
func (f *LogFormat) UnmarshalText(text []byte) error {
	*f = ParseLogFormat(string(text))
	if *f == LogFormatUndefined {
		return eris.Errorf("unknown log format %q", string(text))
	}
	return nil
}

// ParseLogFormat returns the format with the given name, or LogFormatUndefined.
func ParseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	case "pretty":
		return LogFormatPretty
	default:
		return LogFormatUndefined
	}
}
