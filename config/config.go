// Package config loads run configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/coverid/codec"
	"github.com/hupe1980/coverid/distance"
	"github.com/hupe1980/coverid/transform"
)

// EnvPrefix prefixes every environment override, e.g. COVERID_WORKERS.
const EnvPrefix = "COVERID"

// ErrMissingInput is returned when a required input is absent.
var ErrMissingInput = errors.New("missing input")

// Store kinds.
const (
	StoreLocal  = "local"
	StoreMemory = "memory"
	StoreS3     = "s3"
	StoreMinIO  = "minio"
)

// StoreConfig selects and addresses a blob store.
type StoreConfig struct {
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" split_words:"true"`
	Secure    bool   `yaml:"secure"`
}

// DatasetConfig names the clique membership inputs. Universe takes
// precedence over SHS.
type DatasetConfig struct {
	SHS         string `yaml:"shs"`
	Universe    string `yaml:"universe"`
	Distractors string `yaml:"distractors"`
}

// TransformConfig names the persisted models of the transform chain.
type TransformConfig struct {
	Normalize     bool   `yaml:"normalize"`
	PCAModel      string `yaml:"pca_model" split_words:"true"`
	PCADims       int    `yaml:"pca_dims" split_words:"true"`
	EnsembleModel string `yaml:"ensemble_model" split_words:"true"`
	EnsembleDims  []int  `yaml:"ensemble_dims" split_words:"true"`
	Renormalize   bool   `yaml:"renormalize"`
}

// ComputeConfig tunes the code computation phase.
type ComputeConfig struct {
	Partitions    []int         `yaml:"partitions"`
	ShardTimeout  time.Duration `yaml:"shard_timeout" split_words:"true"`
	SkipExisting  bool          `yaml:"skip_existing" split_words:"true"`
	Compression   string        `yaml:"compression"`
	Origin        string        `yaml:"origin"`
	IOLimit       int64         `yaml:"io_limit" split_words:"true"`
	ProgressEvery int           `yaml:"progress_every" split_words:"true"`
	ManifestTable string        `yaml:"manifest_table" split_words:"true"`
}

// EvaluateConfig tunes the ranking evaluation.
type EvaluateConfig struct {
	Merged        string `yaml:"merged"`
	Column        int    `yaml:"column"`
	MaxShards     int    `yaml:"max_shards" split_words:"true"`
	Parallelism   int    `yaml:"parallelism"`
	MAPDepth      int    `yaml:"map_depth" split_words:"true"`
	Metric        string `yaml:"metric"`
	ProgressEvery int    `yaml:"progress_every" split_words:"true"`
	Report        string `yaml:"report"`
	// Capacity presizes the rank lists. Zero derives it from the dataset
	// when one is configured and from the loaded codes otherwise.
	Capacity int `yaml:"capacity"`
}

// LogConfig selects the log level and format (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full run configuration.
type Config struct {
	Workers   int             `yaml:"workers"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Features  StoreConfig     `yaml:"features"`
	Codes     StoreConfig     `yaml:"codes"`
	Models    StoreConfig     `yaml:"models"`
	Transform TransformConfig `yaml:"transform"`
	Compute   ComputeConfig   `yaml:"compute"`
	Evaluate  EvaluateConfig  `yaml:"evaluate"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Workers:  1,
		Features: StoreConfig{Kind: StoreLocal, Path: "features"},
		Codes:    StoreConfig{Kind: StoreLocal, Path: "codes"},
		Compute: ComputeConfig{
			Compression:   codec.CompressionLZ4.String(),
			ProgressEvery: 1000,
		},
		Evaluate: EvaluateConfig{
			Parallelism:   1,
			Metric:        distance.MetricEuclidean.String(),
			ProgressEvery: 400,
			Report:        "ranks.json",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (optional) over Default and applies COVERID_* environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("config env: %w", err)
	}
	return cfg, nil
}

// ChainConfig maps the transform section onto transform.ChainConfig.
func (c Config) ChainConfig() transform.ChainConfig {
	return transform.ChainConfig{
		Normalize:     c.Transform.Normalize,
		PCAModel:      c.Transform.PCAModel,
		PCADims:       c.Transform.PCADims,
		EnsembleModel: c.Transform.EnsembleModel,
		EnsembleDims:  c.Transform.EnsembleDims,
		Renormalize:   c.Transform.Renormalize,
	}
}

// ModelStore returns the store holding the transform models. It defaults
// to the codes store.
func (c Config) ModelStore() StoreConfig {
	if c.Models.Kind == "" {
		return c.Codes
	}
	return c.Models
}

// Validate checks the values that do not touch external systems.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if _, err := codec.ParseCompression(c.Compute.Compression); err != nil {
		return err
	}
	if _, err := distance.ParseMetric(c.Evaluate.Metric); err != nil {
		return err
	}
	if c.Evaluate.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", c.Evaluate.Capacity)
	}
	if c.Transform.PCADims < 0 {
		return fmt.Errorf("pca_dims must not be negative, got %d", c.Transform.PCADims)
	}
	for _, d := range c.Transform.EnsembleDims {
		if d <= 0 {
			return fmt.Errorf("ensemble_dims must be positive, got %d", d)
		}
	}
	for _, s := range []StoreConfig{c.Features, c.Codes, c.ModelStore()} {
		if err := s.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s StoreConfig) validate() error {
	switch s.Kind {
	case StoreLocal:
		if s.Path == "" {
			return fmt.Errorf("local store requires a path")
		}
	case StoreMemory:
	case StoreS3, StoreMinIO:
		if s.Bucket == "" {
			return fmt.Errorf("%s store requires a bucket", s.Kind)
		}
		if s.Kind == StoreMinIO && s.Endpoint == "" {
			return fmt.Errorf("minio store requires an endpoint")
		}
	default:
		return fmt.Errorf("unknown store kind %q", s.Kind)
	}
	return nil
}

// PreflightCompute verifies the inputs of a compute run before any worker
// starts.
func (c Config) PreflightCompute() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.checkDataset(); err != nil {
		return err
	}
	if c.Features.Kind == StoreLocal {
		if err := checkPath("features", c.Features.Path); err != nil {
			return err
		}
	}
	return nil
}

// PreflightEvaluate verifies the inputs of an evaluation run. The dataset
// files are checked when configured since they size the rank lists.
func (c Config) PreflightEvaluate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HasDataset() {
		if err := c.checkDataset(); err != nil {
			return err
		}
	}
	if c.Codes.Kind == StoreLocal {
		return checkPath("codes", c.Codes.Path)
	}
	return nil
}

// HasDataset reports whether a universe or SHS file is configured.
func (c Config) HasDataset() bool {
	return c.Dataset.Universe != "" || c.Dataset.SHS != ""
}

func (c Config) checkDataset() error {
	switch {
	case c.Dataset.Universe != "":
		return checkPath("universe", c.Dataset.Universe)
	case c.Dataset.SHS != "":
		if err := checkPath("shs", c.Dataset.SHS); err != nil {
			return err
		}
		if c.Dataset.Distractors != "" {
			return checkPath("distractors", c.Dataset.Distractors)
		}
		return nil
	default:
		return fmt.Errorf("%w: dataset needs a universe or shs file", ErrMissingInput)
	}
}

func checkPath(what, path string) error {
	if path == "" {
		return fmt.Errorf("%w: %s path is empty", ErrMissingInput, what)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s %s", ErrMissingInput, what, path)
		}
		return err
	}
	return nil
}
