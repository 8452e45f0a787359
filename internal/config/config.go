// Package config loads ordinal settings from defaults, an optional YAML file,
// ORDINAL_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ORDINAL_DB.
const EnvPrefix = "ORDINAL"

// Config holds every runtime setting.
type Config struct {
	DB             string        `mapstructure:"db" validate:"required"`
	PostgresURL    string        `mapstructure:"postgres_url" validate:"omitempty,url"`
	RedisURL       string        `mapstructure:"redis_url" validate:"omitempty,url"`
	BatchThreshold int           `mapstructure:"batch_threshold" validate:"min=0"`
	MaxConcurrency int           `mapstructure:"max_concurrency" validate:"min=1,max=64"`
	OffsetMargin   int           `mapstructure:"offset_margin" validate:"min=1"`
	LockTTL        time.Duration `mapstructure:"lock_ttl" validate:"min=1s"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"min=1s"`
	LogLevel       string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// New returns a viper instance with defaults and environment lookup set up.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("db", "ordinal.db")
	v.SetDefault("postgres_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("batch_threshold", 5)
	v.SetDefault("max_concurrency", 8)
	v.SetDefault("offset_margin", 1)
	v.SetDefault("lock_ttl", 30*time.Second)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile (if not empty) into v, decodes and validates.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")

	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report config keys instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks cfg against its struct tags.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fe.Translate(translator)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// SlogLevel maps LogLevel to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
