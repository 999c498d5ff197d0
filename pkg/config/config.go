// Package config loads readerer settings from a YAML file, READERER_*
// environment variables and command-line flags.
//
// Precedence, highest first: flags set on the command line, environment,
// the config file, flag defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/japaniel/readerer/pkg/tokenize"
)

// EnvPrefix marks environment variables read as configuration. Nested keys
// use a double underscore: READERER_DB__PATH sets db.path.
const EnvPrefix = "READERER_"

// FlagConfig names the flag holding the config file path.
const FlagConfig = "config"

type Config struct {
	DB         DBConfig         `koanf:"db"`
	Frequency  FrequencyConfig  `koanf:"frequency"`
	Analyzer   AnalyzerConfig   `koanf:"analyzer"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Dictionary DictionaryConfig `koanf:"dictionary"`
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
}

type DBConfig struct {
	// Driver is "sqlite3" (cgo) or "sqlite" (pure Go).
	Driver string `koanf:"driver" validate:"oneof=sqlite3 sqlite"`
	Path   string `koanf:"path" validate:"required"`
}

type FrequencyConfig struct {
	// Path to a newline-delimited word list, most frequent first. Empty
	// ranks every word 0.
	Path string `koanf:"path"`
}

type AnalyzerConfig struct {
	Kind        string   `koanf:"kind" validate:"oneof=kagome jumanpp"`
	JumanppPath string   `koanf:"jumanpp_path" validate:"required_if=Kind jumanpp"`
	SkipPOS     []string `koanf:"skip_pos"`
}

type IngestConfig struct {
	Workers int `koanf:"workers" validate:"min=1"`
}

type DictionaryConfig struct {
	// Path to a jmdict-simplified JSON file. Empty disables definitions.
	Path     string `koanf:"path"`
	Download bool   `koanf:"download"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

// RegisterFlags adds every configuration key to fs as a flag of the same
// name, with its default value.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "path to a YAML config file")
	fs.String("db.driver", "sqlite3", "database driver: sqlite3 or sqlite")
	fs.String("db.path", "readerer.db", "path to the SQLite database")
	fs.String("frequency.path", "", "word frequency list, one word per line")
	fs.String("analyzer.kind", "kagome", "morphological analyzer: kagome or jumanpp")
	fs.String("analyzer.jumanpp_path", "jumanpp", "Juman++ executable")
	fs.StringSlice("analyzer.skip_pos", append([]string(nil), tokenize.DefaultSkipPOS...), "parts of speech left out by kagome")
	fs.Int("ingest.workers", 4, "concurrent analyzer calls")
	fs.String("dictionary.path", "", "jmdict-simplified JSON file")
	fs.Bool("dictionary.download", false, "download the dictionary if it is missing")
	fs.String("server.addr", "127.0.0.1:3000", "HTTP listen address")
	fs.String("log.level", "info", "log level")
	fs.Bool("log.pretty", false, "human readable console logs")
}

// Load builds the configuration from the file named by the config flag,
// the environment and fs. fs must have been set up with RegisterFlags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString(FlagConfig)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps READERER_ANALYZER__SKIP_POS to analyzer.skip_pos. List values
// are comma separated.
func envKey(name, value string) (string, interface{}) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "analyzer.skip_pos" {
		return key, strings.Split(value, ",")
	}
	return key, value
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and required fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
