// Package config loads layered application settings: embedded defaults,
// an optional YAML file, LEARNRO_ environment variables (including a .env
// file) and finally explicitly set command-line flags.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment variables read as configuration. A double
// underscore separates nesting levels: LEARNRO_DATABASE__PATH.
const EnvPrefix = "LEARNRO_"

//go:embed defaults.yaml
var defaultsYAML []byte

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"db":                 "database.path",
	"addr":               "server.addr",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"shuffle":            "study.shuffle",
	"timed":              "study.timed",
	"seconds":            "study.timer_seconds",
	"allow-early-reveal": "study.allow_early_reveal",
	"tts":                "study.tts",
	"repos-dir":          "sources.repos_dir",
}

// listKeys hold comma separated values when set from the environment.
var listKeys = map[string]bool{
	"server.allowed_origins": true,
	"sources.extensions":     true,
}

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Study    StudyConfig    `koanf:"study"`
	Speech   SpeechConfig   `koanf:"speech"`
	Sources  SourcesConfig  `koanf:"sources"`
	Import   ImportConfig   `koanf:"import"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	AllowedOrigins  []string      `koanf:"allowed_origins" validate:"min=1,dive,required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	DefaultPageSize int           `koanf:"default_page_size" validate:"gte=1"`
	MaxPageSize     int           `koanf:"max_page_size" validate:"gtefield=DefaultPageSize"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// StudyConfig holds the defaults for interactive study sessions.
type StudyConfig struct {
	Shuffle          bool `koanf:"shuffle"`
	Timed            bool `koanf:"timed"`
	TimerSeconds     int  `koanf:"timer_seconds" validate:"gte=1,lte=3600"`
	AllowEarlyReveal bool `koanf:"allow_early_reveal"`
	TTS              bool `koanf:"tts"`
}

type SpeechConfig struct {
	Binary         string `koanf:"binary" validate:"required"`
	FallbackBinary string `koanf:"fallback_binary"`
	RomanianVoice  string `koanf:"romanian_voice" validate:"required"`
	EnglishVoice   string `koanf:"english_voice" validate:"required"`
	RomanianRate   int    `koanf:"romanian_rate" validate:"gte=80,lte=450"`
	EnglishRate    int    `koanf:"english_rate" validate:"gte=80,lte=450"`
}

type SourcesConfig struct {
	ReposDir   string   `koanf:"repos_dir" validate:"required"`
	Extensions []string `koanf:"extensions" validate:"min=1,dive,startswith=."`
}

type ImportConfig struct {
	SkipDuplicates bool `koanf:"skip_duplicates"`
}

// Options selects the optional layers.
type Options struct {
	// File is an optional YAML file. Empty skips the layer.
	File string
	// EnvFile is loaded into the process environment when present.
	// Defaults to ".env".
	EnvFile string
	// Flags, when set, overrides keys for every flag the user changed.
	Flags *pflag.FlagSet
}

// Load builds and validates the configuration.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", opts.File, err)
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithValue(opts.Flags, ".", k, flagKeyValue), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envKeyValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if listKeys[key] {
		return key, splitList(value)
	}
	return key, value
}

func flagKeyValue(name, value string) (string, interface{}) {
	return FlagKeys[name], value
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
