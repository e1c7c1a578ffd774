/*
Package config loads estore's store-level settings and the YAML
builder-job manifests operators hand to estorectl apply, following the
same apiVersion/kind/metadata/spec envelope the teacher's cluster
manifests use. A store Config is plain YAML with no envelope, since
there is exactly one kind of thing it describes; manifests keep the
envelope because estorectl is expected to grow more kinds over time.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/estore/pkg/rvcache"
	"gopkg.in/yaml.v3"
)

// Config is the store-level configuration read from a YAML file (or
// built programmatically for tests) and handed to estore.Open.
type Config struct {
	DataDir              string `yaml:"dataDir"`
	ChunkThresholdBytes  int    `yaml:"chunkThresholdBytes"`
	Compression          bool   `yaml:"compression"`
	DefaultReadSemantics string `yaml:"defaultReadSemantics"`
	BuilderBatchSize     int    `yaml:"builderBatchSize"`
	BuilderConcurrency   int    `yaml:"builderConcurrency"`
	MetricsAddr          string `yaml:"metricsAddr"`
}

// Default returns a Config with the same conservative defaults a
// freshly-initialized cluster manifest would carry.
func Default() Config {
	return Config{
		DataDir:              "./estore-data",
		ChunkThresholdBytes:  90 * 1024,
		Compression:          false,
		DefaultReadSemantics: "default",
		BuilderBatchSize:     500,
		BuilderConcurrency:   1,
		MetricsAddr:          "127.0.0.1:9191",
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default so a partial file only overrides what it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would leave the store unopenable or
// the builder unable to make progress.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: dataDir must not be empty")
	}
	if c.ChunkThresholdBytes <= 0 {
		return fmt.Errorf("config: chunkThresholdBytes must be positive")
	}
	if c.BuilderBatchSize <= 0 {
		return fmt.Errorf("config: builderBatchSize must be positive")
	}
	if c.BuilderConcurrency <= 0 {
		return fmt.Errorf("config: builderConcurrency must be positive")
	}
	if _, err := readSemantics(c.DefaultReadSemantics); err != nil {
		return err
	}
	return nil
}

// ReadSemantics resolves DefaultReadSemantics into the rvcache.Semantics
// preset it names.
func (c Config) ReadSemantics() rvcache.Semantics {
	sem, _ := readSemantics(c.DefaultReadSemantics)
	return sem
}

func readSemantics(name string) (rvcache.Semantics, error) {
	switch name {
	case "", "strict":
		return rvcache.Strict(), nil
	case "default":
		return rvcache.Default(), nil
	case "relaxed":
		return rvcache.Relaxed(), nil
	case "veryRelaxed":
		return rvcache.VeryRelaxed(), nil
	default:
		return rvcache.Semantics{}, fmt.Errorf("config: unknown defaultReadSemantics %q (want strict, default, relaxed, or veryRelaxed)", name)
	}
}

// MetricsSampleInterval is how often pkg/estore's metrics.Collector
// samples gauge state. Not operator-configurable; fixed here so every
// estore process reports on the same cadence.
const MetricsSampleInterval = 10 * time.Second
