package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/jonwraymond/healthmon/observe"
	"github.com/jonwraymond/healthmon/recovery"
	"github.com/jonwraymond/healthmon/secret"
)

// EnvPrefix prefixes every environment override, e.g. HEALTHMON_SERVER_ADDRESS.
const EnvPrefix = "HEALTHMON"

// Dependency kinds.
const (
	KindHTTP     = "http"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type MonitorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

type RecoveryConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	BackoffDelay  time.Duration `mapstructure:"backoff_delay"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Exporter  string  `mapstructure:"exporter"`
	SamplePct float64 `mapstructure:"sample_pct"`
}

type MetricsConfig struct {
	Exporter string `mapstructure:"exporter"`
}

type ObserveConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// DiagnosticsConfig guards the force-check endpoint. With no API keys and
// no JWT secret the endpoint is not served.
type DiagnosticsConfig struct {
	Rate    float64   `mapstructure:"rate"`
	Burst   int       `mapstructure:"burst"`
	APIKeys []string  `mapstructure:"api_keys"`
	JWT     JWTConfig `mapstructure:"jwt"`
}

// Enabled reports whether any credential is configured.
func (d DiagnosticsConfig) Enabled() bool {
	return len(d.APIKeys) > 0 || d.JWT.Secret != ""
}

// DependencyConfig describes one monitored dependency.
type DependencyConfig struct {
	Name        string   `mapstructure:"name"`
	Kind        string   `mapstructure:"kind"`
	Target      string   `mapstructure:"target"`
	Recovery    string   `mapstructure:"recovery"`
	RequiredEnv []string `mapstructure:"required_env"`
}

// Address returns the host:port a reconnect attempt should dial.
func (d DependencyConfig) Address() (string, error) {
	switch d.Kind {
	case KindRedis:
		return d.Target, nil
	case KindHTTP:
		u, err := url.Parse(d.Target)
		if err != nil {
			return "", err
		}
		if u.Port() != "" {
			return u.Host, nil
		}
		if u.Scheme == "https" {
			return net.JoinHostPort(u.Hostname(), "443"), nil
		}
		return net.JoinHostPort(u.Hostname(), "80"), nil
	case KindPostgres:
		u, err := url.Parse(d.Target)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("postgres target must be a URL DSN to derive an address")
		}
		if u.Port() != "" {
			return u.Host, nil
		}
		return net.JoinHostPort(u.Hostname(), "5432"), nil
	default:
		return "", fmt.Errorf("unknown dependency kind %q", d.Kind)
	}
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Recovery     RecoveryConfig     `mapstructure:"recovery"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Observe      ObserveConfig      `mapstructure:"observe"`
	Diagnostics  DiagnosticsConfig  `mapstructure:"diagnostics"`
	Dependencies []DependencyConfig `mapstructure:"dependencies"`
}

// Load reads configuration from path, or from ./config.yaml and
// ./config/config.yaml when path is empty. A missing file is not an error
// when path is empty; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("monitor.interval", "30s")
	v.SetDefault("monitor.timeout", "5s")
	v.SetDefault("monitor.max_concurrent", 0)
	v.SetDefault("recovery.timeout", "10s")
	v.SetDefault("recovery.max_concurrent", 4)
	v.SetDefault("recovery.backoff_delay", "1s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("observe.service_name", "healthmon")
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.exporter", "prometheus")
	v.SetDefault("diagnostics.rate", 1.0)
	v.SetDefault("diagnostics.burst", 3)
}

// expand applies strict environment expansion to values that may carry
// credentials.
func (c *Config) expand() error {
	var err error
	if c.Diagnostics.JWT.Secret, err = secret.ExpandEnvStrict(c.Diagnostics.JWT.Secret); err != nil {
		return fmt.Errorf("diagnostics.jwt.secret: %w", err)
	}
	for i, k := range c.Diagnostics.APIKeys {
		if c.Diagnostics.APIKeys[i], err = secret.ExpandEnvStrict(k); err != nil {
			return fmt.Errorf("diagnostics.api_keys[%d]: %w", i, err)
		}
	}
	for i := range c.Dependencies {
		d := &c.Dependencies[i]
		if d.Target, err = secret.ExpandEnvStrict(d.Target); err != nil {
			return fmt.Errorf("dependencies[%d].target: %w", i, err)
		}
		if d.Recovery == "" {
			d.Recovery = recovery.KindNone
		}
	}
	return nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.By(func(value interface{}) error {
			sc, ok := value.(ServerConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ServerConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Address, validation.Required, validation.By(validateHostPort)),
			)
		})),
		validation.Field(&c.Monitor, validation.By(func(value interface{}) error {
			mc, ok := value.(MonitorConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a MonitorConfig")
			}
			return validation.ValidateStruct(&mc,
				validation.Field(&mc.Interval, validation.Required, validation.Min(time.Second)),
				validation.Field(&mc.Timeout, validation.Required, validation.Min(time.Millisecond)),
				validation.Field(&mc.MaxConcurrent, validation.Min(0)),
			)
		})),
		validation.Field(&c.Recovery, validation.By(func(value interface{}) error {
			rc, ok := value.(RecoveryConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a RecoveryConfig")
			}
			return validation.ValidateStruct(&rc,
				validation.Field(&rc.Timeout, validation.Required),
				validation.Field(&rc.MaxConcurrent, validation.Required, validation.Min(1)),
			)
		})),
		validation.Field(&c.Logging, validation.By(func(value interface{}) error {
			lc, ok := value.(LoggingConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
			}
			return validation.ValidateStruct(&lc,
				validation.Field(&lc.Level,
					validation.Required,
					validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
				),
			)
		})),
		validation.Field(&c.Observe, validation.By(func(value interface{}) error {
			oc, ok := value.(ObserveConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be an ObserveConfig")
			}
			return validation.ValidateStruct(&oc,
				validation.Field(&oc.ServiceName, validation.Required),
				validation.Field(&oc.Tracing, validation.By(func(value interface{}) error {
					tc := value.(TracingConfig)
					return validation.ValidateStruct(&tc,
						validation.Field(&tc.Exporter, validation.In("otlp", "stdout", "none")),
						validation.Field(&tc.SamplePct, validation.Min(observe.MinSamplePct), validation.Max(observe.MaxSamplePct)),
					)
				})),
				validation.Field(&oc.Metrics, validation.By(func(value interface{}) error {
					mc := value.(MetricsConfig)
					return validation.ValidateStruct(&mc,
						validation.Field(&mc.Exporter, validation.In("otlp", "prometheus", "stdout", "none")),
					)
				})),
			)
		})),
		validation.Field(&c.Diagnostics, validation.By(func(value interface{}) error {
			dc, ok := value.(DiagnosticsConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a DiagnosticsConfig")
			}
			return validation.ValidateStruct(&dc,
				validation.Field(&dc.Rate, validation.Required),
				validation.Field(&dc.Burst, validation.Required, validation.Min(1)),
			)
		})),
		validation.Field(&c.Dependencies,
			validation.Required,
			validation.Each(validation.By(validateDependency)),
			validation.By(validateUniqueNames),
		),
	)
}

func validateDependency(value interface{}) error {
	d, ok := value.(DependencyConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a DependencyConfig")
	}

	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Kind, validation.Required, validation.In(KindHTTP, KindPostgres, KindRedis)),
		validation.Field(&d.Target,
			validation.Required,
			validation.When(d.Kind == KindHTTP, validation.By(validateHTTPURL)),
			validation.When(d.Kind == KindRedis, validation.By(validateHostPort)),
		),
		validation.Field(&d.Recovery, validation.In(stringsToAny(recovery.Kinds())...)),
	)
}

func validateUniqueNames(value interface{}) error {
	deps, ok := value.([]DependencyConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a dependency list")
	}
	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		if seen[d.Name] {
			return validation.NewError("validation_duplicate_name", fmt.Sprintf("duplicate dependency name %q", d.Name))
		}
		seen[d.Name] = true
	}
	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateHTTPURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}
	return nil
}

func stringsToAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// ObserverConfig maps the telemetry settings onto observe.Config.
func (c *Config) ObserverConfig(version string) observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Exporter != "none",
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Exporter != "none",
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Logging.Level,
		},
	}
}
