// Package config loads dhop settings from defaults, an optional TOML file and
// DHOP_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"

	"github.com/OpenGG/dhop/internal/dhop/handoff"
	"github.com/OpenGG/dhop/internal/dhop/store"
)

// EnvPrefix prefixes every environment override, e.g. DHOP_STORE_POLICY.
const EnvPrefix = "DHOP_"

// Config is the resolved configuration.
type Config struct {
	Home    string        `koanf:"home"`
	Store   StoreConfig   `koanf:"store"`
	Resolve ResolveConfig `koanf:"resolve"`
	Handoff HandoffConfig `koanf:"handoff"`
}

type StoreConfig struct {
	Policy string `koanf:"policy" validate:"omitempty,oneof=lenient strict"`
}

type ResolveConfig struct {
	Validate bool `koanf:"validate"`
}

type HandoffConfig struct {
	Shell string `koanf:"shell" validate:"omitempty,oneof=posix cmd"`
}

// configValidate reports field errors under their configuration keys.
var configValidate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("koanf")
	})
	return v
}()

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"home":             "",
		"store.policy":     string(store.Lenient),
		"resolve.validate": true,
		"handoff.shell":    string(handoff.Posix),
	}
}

// rawBytesProvider feeds file contents read through afero to a koanf parser.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Store:   StoreConfig{Policy: string(store.Lenient)},
		Resolve: ResolveConfig{Validate: true},
		Handoff: HandoffConfig{Shell: string(handoff.Posix)},
	}
}

// Load reads the configuration file at path, if present, and applies
// environment overrides on top of the defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		switch {
		case err == nil:
			if err := k.Load(&rawBytesProvider{bytes: data}, toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(key, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		return fmt.Errorf("invalid %s %q: want one of %s", key, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return err
}

// StorePolicy returns the parsed store.policy setting.
func (c *Config) StorePolicy() (store.Policy, error) {
	return store.ParsePolicy(c.Store.Policy)
}

// HandoffShell returns the parsed handoff.shell setting.
func (c *Config) HandoffShell() (handoff.Shell, error) {
	return handoff.ParseShell(c.Handoff.Shell)
}
