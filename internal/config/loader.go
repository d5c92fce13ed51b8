package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"race-strategy-engine/internal/strategy"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "PITSTRAT_"
	EnvConfigFile = "PITSTRAT_CONFIG"
)

// Load builds a Config by layering defaults, an optional YAML file and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. YAML file at path, or at $PITSTRAT_CONFIG when path is empty
//  3. env (prefix PITSTRAT_), e.g. PITSTRAT_PIT_LOSS_S=22.5
//
// Compound profiles from the file are merged over the defaults field by field,
// so overriding one field of a built-in compound keeps the other.
func Load(path string) (*Config, error) {
	cfg := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Flat keys: PITSTRAT_TARGET_RACE_LAPS -> target_race_laps.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}
	// The file path itself is not a config key.
	k.Delete("config")

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := mergeCompounds(k, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeCompounds re-decodes each configured built-in compound on top of its
// default profile. Map entries otherwise decode into zero values.
func mergeCompounds(k *koanf.Koanf, cfg *Config) error {
	defaults := strategy.DefaultCompounds()
	for _, name := range k.MapKeys("compound_profiles") {
		profile, ok := defaults[name]
		if !ok {
			continue
		}
		if err := k.UnmarshalWithConf("compound_profiles."+name, &profile, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			return fmt.Errorf("%w: compound %q: %v", ErrLoadConfig, name, err)
		}
		cfg.CompoundProfiles[name] = profile
	}
	return nil
}
