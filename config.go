package xquery

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"
	yaml "gopkg.in/yaml.v2"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// ErrInvalidConfig is returned when a configuration cannot be parsed or has
// invalid values.
var ErrInvalidConfig = errors.NewKind("invalid configuration: %s")

// Config for the engine.
type Config struct {
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Log       LogConfig       `yaml:"log"`
	// Exclusive makes the engine reject queries whose locks conflict with a
	// running query.
	Exclusive bool `yaml:"exclusive"`
}

// AnalyzerConfig configures the analyzer.
type AnalyzerConfig struct {
	MaxIterations int  `yaml:"max_iterations"`
	Debug         bool `yaml:"debug"`
	Verbose       bool `yaml:"verbose"`
}

// OptimizerConfig configures the rewrites performed during compilation.
type OptimizerConfig struct {
	UnrollLimit        int   `yaml:"unroll_limit"`
	MaxMaterializeSize int64 `yaml:"max_materialize_size"`
}

// LogConfig configures the engine logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	opts := query.DefaultOptions()
	return &Config{
		Analyzer: AnalyzerConfig{MaxIterations: opts.MaxIterations},
		Optimizer: OptimizerConfig{
			UnrollLimit:        opts.UnrollLimit,
			MaxMaterializeSize: opts.MaxMaterializeSize,
		},
		Log: LogConfig{Level: logrus.InfoLevel.String(), Format: "text"},
	}
}

// ParseConfig parses a YAML configuration. Missing values keep their
// defaults.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, ErrInvalidConfig.New(err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func (c *Config) validate() error {
	switch {
	case c.Analyzer.MaxIterations < 1:
		return ErrInvalidConfig.New("analyzer.max_iterations must be positive")
	case c.Optimizer.UnrollLimit < 0:
		return ErrInvalidConfig.New("optimizer.unroll_limit must not be negative")
	case c.Optimizer.MaxMaterializeSize < 0:
		return ErrInvalidConfig.New("optimizer.max_materialize_size must not be negative")
	}
	if _, err := newLogger(c.Log); err != nil {
		return err
	}
	return nil
}

// Options returns the compilation options of the configuration.
func (c *Config) Options() query.Options {
	return query.Options{
		UnrollLimit:        c.Optimizer.UnrollLimit,
		MaxMaterializeSize: c.Optimizer.MaxMaterializeSize,
		MaxIterations:      c.Analyzer.MaxIterations,
	}
}
