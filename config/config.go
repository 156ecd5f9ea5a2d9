// Package config loads the host configuration used by the scripthost CLI.
package config

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/host"
	"github.com/wippyai/scripthost/runtime"
)

// Name is the config file name looked up in the working directory, without
// extension.
const Name = "scripthost"

// EnvPrefix prefixes environment overrides, e.g. SCRIPTHOST_LOG_LEVEL.
const EnvPrefix = "SCRIPTHOST"

// Config represents the scripthost configuration
type Config struct {
	Context string      `mapstructure:"context" json:"context" validate:"required" jsonschema:"description=Name of the load context modules are loaded into"`
	Modules []string    `mapstructure:"modules" json:"modules,omitempty" validate:"dive,required" jsonschema:"description=Module files loaded at startup"`
	Engine  EngineConfig `mapstructure:"engine" json:"engine"`
	Log     LogConfig    `mapstructure:"log" json:"log"`
	GC      GCConfig     `mapstructure:"gc" json:"gc"`
	Watch   WatchConfig  `mapstructure:"watch" json:"watch"`
}

// EngineConfig represents per-context engine configuration
type EngineConfig struct {
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages" json:"memory_limit_pages,omitempty" validate:"lte=65536" jsonschema:"description=Guest memory cap in 64KB pages; 0 means no cap"`
	Threads          bool   `mapstructure:"threads" json:"threads,omitempty"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string   `mapstructure:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Filter []string `mapstructure:"filter" json:"filter,omitempty" validate:"dive,oneof=info warning error" jsonschema:"description=Host log levels passed to the log callback"`
}

// GCConfig represents collection behavior on unload
type GCConfig struct {
	DrainOnUnload bool          `mapstructure:"drain_on_unload" json:"drain_on_unload,omitempty"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout" json:"drain_timeout,omitempty" validate:"gte=0"`
}

// WatchConfig represents hot reload configuration
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" json:"debounce,omitempty" validate:"gte=0"`
}

// validate is a package-level singleton; validators cache struct metadata.
var validate = validator.New()

// Load reads the configuration from path, or from scripthost.yaml in the
// working directory when path is empty. A missing default file is not an
// error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("context", "scripts")
	v.SetDefault("modules", []string{})
	v.SetDefault("engine.memory_limit_pages", 0)
	v.SetDefault("engine.threads", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.filter", []string{"info", "warning", "error"})
	v.SetDefault("gc.drain_on_unload", false)
	v.SetDefault("gc.drain_timeout", 5*time.Second)
	v.SetDefault("watch.debounce", 100*time.Millisecond)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidSource, err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidSource, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		b := errors.New(errors.PhaseConfig, errors.KindInvalidSource).Cause(err)
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			b.Path(strings.Split(verrs[0].Namespace(), ".")...).
				Value(verrs[0].Value()).
				Detail("failed %q validation", verrs[0].Tag())
		}
		return b.Build()
	}
	return nil
}

// Schema returns the JSON schema of the config file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindUnknown, err, "marshal schema")
	}
	return out, nil
}

// ZapLevel returns the configured zap level.
func (c *Config) ZapLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// FilterMask returns the host log filter.
func (c *Config) FilterMask() host.Level {
	var mask host.Level
	for _, f := range c.Log.Filter {
		switch f {
		case "info":
			mask |= host.LevelInfo
		case "warning":
			mask |= host.LevelWarning
		case "error":
			mask |= host.LevelError
		}
	}
	return mask
}

// RuntimeOptions converts the engine and collection settings.
func (c *Config) RuntimeOptions() []runtime.Option {
	opts := []runtime.Option{
		runtime.WithMemoryLimitPages(c.Engine.MemoryLimitPages),
		runtime.WithThreads(c.Engine.Threads),
	}
	if c.GC.DrainOnUnload {
		opts = append(opts, runtime.WithDrainOnUnload(c.GC.DrainTimeout))
	}
	return opts
}
