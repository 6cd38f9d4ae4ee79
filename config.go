package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/eventbus/codegen"
)

// Config is the file form of the bus options.
//
//	strategy: generated
//	hierarchical: true
//	markers:
//	  prefixes: [Handle]
//	  tags: [listen]
//	executor:
//	  kind: pool
//	  workers: 8
//	  queue_size: 4096
type Config struct {
	Strategy     string         `yaml:"strategy" json:"strategy" validate:"omitempty,oneof=introspective handle generated"`
	Hierarchical *bool          `yaml:"hierarchical" json:"hierarchical"`
	Markers      MarkerConfig   `yaml:"markers" json:"markers"`
	Executor     ExecutorConfig `yaml:"executor" json:"executor"`
}

// MarkerConfig adds handler markers on top of DefaultMarkers.
type MarkerConfig struct {
	Prefixes []string `yaml:"prefixes" json:"prefixes" validate:"dive,required,alpha"`
	Tags     []string `yaml:"tags" json:"tags" validate:"dive,required,excludesall=0x2C"`
}

// ExecutorConfig selects the executor.
type ExecutorConfig struct {
	Kind      string `yaml:"kind" json:"kind" validate:"omitempty,oneof=sync go pool"`
	Workers   int    `yaml:"workers" json:"workers" validate:"gte=0"`
	QueueSize int    `yaml:"queue_size" json:"queue_size" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads a configuration file, detecting the format by extension.
// Supported extensions: .yaml, .yml, .json
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return ConfigFromYAML(data)
	case ".json":
		return ConfigFromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// ConfigFromYAML parses and validates YAML configuration.
func ConfigFromYAML(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return c, c.Validate()
}

// ConfigFromJSON parses and validates JSON configuration.
func ConfigFromJSON(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return c, c.Validate()
}

// Validate checks field values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid eventbus config: %w", err)
	}
	return nil
}

// Options converts the configuration to bus options. A pool executor is
// created and started; stop it through Bus.Executor when done.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []Option
	switch c.Strategy {
	case StrategyGenerated:
		opts = append(opts, WithBackend(codegen.Default()))
	case "":
	default:
		s, err := StrategyByName(c.Strategy, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithStrategy(s))
	}

	if c.Hierarchical != nil {
		opts = append(opts, WithHierarchical(*c.Hierarchical))
	}

	var ms []Marker
	for _, p := range c.Markers.Prefixes {
		ms = append(ms, MethodPrefix(p))
	}
	for _, t := range c.Markers.Tags {
		ms = append(ms, StructTag(t))
	}
	if len(ms) > 0 {
		opts = append(opts, WithMarkers(ms...))
	}

	switch c.Executor.Kind {
	case "go":
		opts = append(opts, WithExecutor(GoExecutor()))
	case "pool":
		pool := NewPool(WithWorkers(c.Executor.Workers), WithQueueSize(c.Executor.QueueSize))
		if err := pool.Start(); err != nil {
			return nil, err
		}
		opts = append(opts, WithExecutor(pool))
	}
	return opts, nil
}
