package qs

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// EngineConfig describes how to reach one named SQL engine instance.
type EngineConfig struct {
	Driver     string `yaml:"driver"` // "postgres", "mysql", "sqlite"
	Connection string `yaml:"connection"`
}

// Config is the ambient configuration for a compilation/runtime session.
// It is orthogonal to the language itself: it controls which SQL engines
// are reachable and how strictly the runtime checks its own work.
type Config struct {
	DefaultEngine string                  `yaml:"default_engine"`
	Engines       map[string]EngineConfig `yaml:"engines"`

	// DisableTypechecks, when true, skips the post-execution runtime type
	// check described in spec §4.I.
	DisableTypechecks bool `yaml:"disable_typechecks"`

	// AllowInlining mirrors the scheduler's allow_inlining bit (spec §4.H).
	AllowInlining bool `yaml:"allow_inlining"`

	// MaxSchedulerPasses bounds the compilation scheduler's drive loop, as
	// a circuit breaker against a constraint graph that never reaches
	// fixpoint. Zero means unbounded.
	MaxSchedulerPasses int `yaml:"max_scheduler_passes"`
}

// DefaultConfig returns a Config with conservative defaults: typechecking
// and inlining both enabled, no bound on scheduler passes.
func DefaultConfig() Config {
	return Config{
		AllowInlining: true,
		Engines:       map[string]EngineConfig{},
	}
}

// LoadConfig reads a YAML config file from path, then applies any
// environment variables found in envFile (if non-empty) as connection
// string overrides of the form QS_ENGINE_<NAME>_CONNECTION.
func LoadConfig(path string, envFile string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrConfig, path, err)
	}

	if envFile != "" {
		env, err := godotenv.Read(envFile)
		if err != nil {
			return cfg, fmt.Errorf("%w: reading env file %s: %v", ErrConfig, envFile, err)
		}

		applyEngineEnvOverrides(&cfg, env)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func applyEngineEnvOverrides(cfg *Config, env map[string]string) {
	for name, eng := range cfg.Engines {
		key := "QS_ENGINE_" + name + "_CONNECTION"
		if v, ok := env[key]; ok {
			eng.Connection = v
			cfg.Engines[name] = eng
		}
	}
}

// Validate checks cross-field invariants that YAML unmarshalling cannot
// enforce on its own.
func (c Config) Validate() error {
	if c.DefaultEngine != "" {
		if _, ok := c.Engines[c.DefaultEngine]; !ok {
			return fmt.Errorf("%w: default_engine %q has no matching entry under engines", ErrConfig, c.DefaultEngine)
		}
	}

	for name, eng := range c.Engines {
		switch eng.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			return fmt.Errorf("%w: engine %q has unsupported driver %q", ErrConfig, name, eng.Driver)
		}
	}

	return nil
}
