package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coverid/blobstore"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Transform.Normalize)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coverid.yaml")
	writeFile(t, path, `
workers: 4
dataset:
  shs: shs.txt
codes:
  kind: local
  path: /data/codes
transform:
  normalize: true
  pca_model: models/pca.json
  pca_dims: 200
  ensemble_dims: [50, 100]
compute:
  shard_timeout: 30m
  compression: zstd
evaluate:
  map_depth: 100
  parallelism: 8
`)

	t.Setenv("COVERID_WORKERS", "12")
	t.Setenv("COVERID_COMPUTE_SKIP_EXISTING", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Workers)
	assert.Equal(t, "shs.txt", cfg.Dataset.SHS)
	assert.Equal(t, "/data/codes", cfg.Codes.Path)
	assert.True(t, cfg.Transform.Normalize)
	assert.Equal(t, []int{50, 100}, cfg.Transform.EnsembleDims)
	assert.Equal(t, 30*time.Minute, cfg.Compute.ShardTimeout)
	assert.True(t, cfg.Compute.SkipExisting)
	assert.Equal(t, "zstd", cfg.Compute.Compression)
	assert.Equal(t, 100, cfg.Evaluate.MAPDepth)
	assert.Equal(t, 8, cfg.Evaluate.Parallelism)
	// Untouched defaults survive the file.
	assert.Equal(t, 400, cfg.Evaluate.ProgressEvery)
	assert.Equal(t, "ranks.json", cfg.Evaluate.Report)

	chain := cfg.ChainConfig()
	assert.Equal(t, "models/pca.json", chain.PCAModel)
	assert.Equal(t, 200, chain.PCADims)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "workers: [not, an, int]\n")
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"compression", func(c *Config) { c.Compute.Compression = "gzip" }},
		{"metric", func(c *Config) { c.Evaluate.Metric = "manhattan" }},
		{"capacity", func(c *Config) { c.Evaluate.Capacity = -1 }},
		{"pca dims", func(c *Config) { c.Transform.PCADims = -1 }},
		{"ensemble dims", func(c *Config) { c.Transform.EnsembleDims = []int{10, 0} }},
		{"store kind", func(c *Config) { c.Codes.Kind = "ftp" }},
		{"local path", func(c *Config) { c.Features.Path = "" }},
		{"s3 bucket", func(c *Config) { c.Codes = StoreConfig{Kind: StoreS3} }},
		{"minio endpoint", func(c *Config) { c.Models = StoreConfig{Kind: StoreMinIO, Bucket: "b"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPreflight(t *testing.T) {
	dir := t.TempDir()
	shs := filepath.Join(dir, "shs.txt")
	writeFile(t, shs, "%1,,title\nTRAAAAA128F4<SEP>a<SEP>w\n")
	features := filepath.Join(dir, "features")
	require.NoError(t, os.MkdirAll(features, 0o755))

	cfg := Default()
	cfg.Features.Path = features
	cfg.Codes.Path = filepath.Join(dir, "codes")

	err := cfg.PreflightCompute()
	assert.ErrorIs(t, err, ErrMissingInput)

	cfg.Dataset.SHS = filepath.Join(dir, "nope.txt")
	assert.ErrorIs(t, cfg.PreflightCompute(), ErrMissingInput)

	cfg.Dataset.SHS = shs
	require.NoError(t, cfg.PreflightCompute())

	cfg.Dataset.Distractors = filepath.Join(dir, "distractors.txt")
	assert.ErrorIs(t, cfg.PreflightCompute(), ErrMissingInput)
	cfg.Dataset.Distractors = ""

	cfg.Features.Path = filepath.Join(dir, "gone")
	assert.ErrorIs(t, cfg.PreflightCompute(), ErrMissingInput)

	assert.ErrorIs(t, cfg.PreflightEvaluate(), ErrMissingInput)
	require.NoError(t, os.MkdirAll(cfg.Codes.Path, 0o755))
	require.NoError(t, cfg.PreflightEvaluate())

	cfg.Dataset.SHS = filepath.Join(dir, "nope.txt")
	assert.ErrorIs(t, cfg.PreflightEvaluate(), ErrMissingInput)

	cfg.Dataset.SHS = ""
	assert.False(t, cfg.HasDataset())
	require.NoError(t, cfg.PreflightEvaluate())
}

func TestStoreConfig_Open(t *testing.T) {
	ctx := context.Background()

	s, err := StoreConfig{Kind: StoreMemory}.Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.MemoryStore{}, s)

	dir := t.TempDir()
	s, err = StoreConfig{Kind: StoreLocal, Path: dir}.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a/b.bin", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "a", "b.bin"))
	require.NoError(t, err)

	_, err = StoreConfig{Kind: "ftp"}.Open(ctx)
	require.Error(t, err)

	assert.Equal(t, Default().Codes, Default().ModelStore())
}
