// Package config loads the service configuration from struct defaults, an
// optional YAML file and STARFLEET_ environment variables, in that order of
// precedence, and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/signalsfoundry/starfleet/camera"
	"github.com/signalsfoundry/starfleet/core"
	"github.com/signalsfoundry/starfleet/feed/natsfeed"
	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/internal/observability"
	"github.com/signalsfoundry/starfleet/model"
	"github.com/signalsfoundry/starfleet/scene"
	"github.com/signalsfoundry/starfleet/timectrl"
)

const (
	// PathEnvVar names the config file when no -config flag is given.
	PathEnvVar = "CONFIG_PATH"
	// EnvPrefix prefixes every environment override. Nested keys are
	// separated by a double underscore: STARFLEET_SCENE__TICK_RATE.
	EnvPrefix = "STARFLEET_"
)

// Feed modes.
const (
	FeedSupabase = "supabase"
	FeedNATS     = "nats"
	FeedNone     = "none"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full service configuration.
type Config struct {
	Scene   SceneConfig                 `koanf:"scene"`
	Camera  camera.Settings             `koanf:"camera"`
	Feed    FeedConfig                  `koanf:"feed"`
	Models  ModelsConfig                `koanf:"models"`
	Server  ServerConfig                `koanf:"server"`
	Logging LoggingConfig               `koanf:"logging"`
	Tracing observability.TracingConfig `koanf:"tracing"`
	// Assets extends or overrides the stock vehicle catalog.
	Assets []model.Asset `koanf:"assets" validate:"dive"`
}

// SceneConfig tunes the frame loop.
type SceneConfig struct {
	PlanetRadius    float64 `koanf:"planet_radius" validate:"gt=0"`
	SafetyMargin    float64 `koanf:"safety_margin" validate:"gte=0"`
	MinAngularSpeed float64 `koanf:"min_angular_speed" validate:"gt=0"`
	LookAhead       float64 `koanf:"look_ahead" validate:"gt=0"`
	BankAmplitude   float64 `koanf:"bank_amplitude" validate:"gte=0"`
	TickRate        float64 `koanf:"tick_rate" validate:"gt=0,lte=240"`
	MaxInstances    int     `koanf:"max_instances" validate:"gt=0"`
	TLETimeScale    float64 `koanf:"tle_time_scale" validate:"gt=0"`
}

// FeedConfig selects and configures the ship data source.
type FeedConfig struct {
	Mode        string `koanf:"mode" validate:"oneof=supabase nats none"`
	RESTURL     string `koanf:"rest_url" validate:"required_if=Mode supabase"`
	APIKey      string `koanf:"api_key"`
	RealtimeURL string `koanf:"realtime_url" validate:"omitempty,url"`
	Table       string `koanf:"table" validate:"required"`
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject" validate:"required"`

	// EmbeddedNATS starts an in-process NATS server on NATSPort.
	EmbeddedNATS bool `koanf:"embedded_nats"`
	NATSPort     int  `koanf:"nats_port" validate:"gte=0,lte=65535"`

	// RelayToNATS republishes supabase inserts onto NATSSubject.
	RelayToNATS bool `koanf:"relay_to_nats"`
}

// ModelsConfig configures vehicle model loading.
type ModelsConfig struct {
	LocalRoot       string        `koanf:"local_root"`
	HTTPTimeout     time.Duration `koanf:"http_timeout" validate:"gt=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerOpen     time.Duration `koanf:"breaker_open" validate:"gt=0"`
	RetryAfter      time.Duration `koanf:"retry_after" validate:"gt=0"`
	Preload         bool          `koanf:"preload"`
	PreloadParallel int           `koanf:"preload_parallel" validate:"gte=1"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	HTTPAddr    string  `koanf:"http_addr" validate:"required"`
	GRPCAddr    string  `koanf:"grpc_addr"`
	StreamRate  float64 `koanf:"stream_rate" validate:"gt=0,lte=120"`
	MetricsPath string  `koanf:"metrics_path" validate:"startswith=/"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json text"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scene: SceneConfig{
			PlanetRadius:    core.PlanetRadius,
			SafetyMargin:    core.SafetyMargin,
			MinAngularSpeed: core.MinAngularSpeed,
			LookAhead:       scene.DefaultLookAhead,
			BankAmplitude:   scene.DefaultBankAmplitude,
			TickRate:        60,
			MaxInstances:    scene.DefaultMaxInstances,
			TLETimeScale:    1,
		},
		Camera: camera.DefaultSettings(),
		Feed: FeedConfig{
			Mode:        FeedNone,
			Table:       "ships",
			NATSSubject: natsfeed.DefaultSubject,
			NATSPort:    4222,
		},
		Models: ModelsConfig{
			LocalRoot:       "public",
			HTTPTimeout:     30 * time.Second,
			BreakerFailures: 3,
			BreakerOpen:     30 * time.Second,
			RetryAfter:      scene.DefaultModelRetry,
			Preload:         true,
			PreloadParallel: 4,
		},
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			GRPCAddr:    ":9090",
			StreamRate:  30,
			MetricsPath: "/metrics",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Tracing: observability.TracingConfig{
			ServiceName: "starfleet",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// Load layers defaults, the YAML file at path (or $CONFIG_PATH when path is
// empty) and environment overrides, then validates. A named file that does
// not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps STARFLEET_FEED__REST_URL to feed.rest_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field constraints and cross-section rules.
func (c *Config) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Feed.Mode == FeedNATS && c.Feed.NATSURL == "" && !c.Feed.EmbeddedNATS {
		return fmt.Errorf("%w: feed.nats_url is required unless feed.embedded_nats is set", ErrInvalid)
	}
	if c.Feed.RelayToNATS && c.Feed.Mode != FeedSupabase {
		return fmt.Errorf("%w: feed.relay_to_nats needs feed.mode=supabase", ErrInvalid)
	}
	if c.Feed.RelayToNATS && c.Feed.NATSURL == "" && !c.Feed.EmbeddedNATS {
		return fmt.Errorf("%w: feed.relay_to_nats needs feed.nats_url or feed.embedded_nats", ErrInvalid)
	}
	return nil
}

// LoopConfig converts the scene section for the frame loop.
func (s SceneConfig) LoopConfig() scene.Config {
	cfg := scene.DefaultConfig()
	cfg.PlanetRadius = s.PlanetRadius
	cfg.MinAngularSpeed = s.MinAngularSpeed
	cfg.MaxInstances = s.MaxInstances
	cfg.TLETimeScale = s.TLETimeScale
	cfg.Updater.LookAhead = s.LookAhead
	cfg.Updater.BankAmplitude = s.BankAmplitude
	cfg.Updater.MinSafeDistance = s.PlanetRadius + s.SafetyMargin
	return cfg
}

// TickInterval is the frame period.
func (s SceneConfig) TickInterval() time.Duration {
	return timectrl.RateToInterval(s.TickRate)
}

// StreamInterval is the frame stream period.
func (s ServerConfig) StreamInterval() time.Duration {
	return timectrl.RateToInterval(s.StreamRate)
}

// Logger builds the process logger.
func (l LoggingConfig) Logger() logging.Logger {
	return logging.New(logging.Config{Level: l.Level, Format: l.Format, AddSource: true})
}
