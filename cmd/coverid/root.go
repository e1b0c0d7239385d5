package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/hupe1980/coverid"
	"github.com/hupe1980/coverid/artifact"
	"github.com/hupe1980/coverid/blobstore"
	"github.com/hupe1980/coverid/codec"
	"github.com/hupe1980/coverid/config"
	"github.com/hupe1980/coverid/dataset"
	"github.com/hupe1980/coverid/manifest"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "coverid",
	Short: "Cover song identification over median chroma codes",
	Long: `coverid computes fixed-size codes for a universe of tracks in parallel
shards and evaluates how well nearest-neighbour search over those codes
retrieves the covers of each track.

Configuration is read from --config (YAML) and COVERID_* environment
variables; command flags override both.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(computeCmd, evaluateCmd, mergeCmd, fitCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *coverid.Logger {
	level := coverid.ParseLevel(cfg.Log.Level)
	if cfg.Log.Format == "json" {
		return coverid.NewJSONLogger(level)
	}
	return coverid.NewTextLogger(level)
}

func openArtifactStore(ctx context.Context, sc config.StoreConfig, cfg config.Config, log *coverid.Logger, overwrite bool) (*artifact.Store, blobstore.BlobStore, error) {
	blobs, err := sc.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open codes store: %w", err)
	}
	comp, err := codec.ParseCompression(cfg.Compute.Compression)
	if err != nil {
		return nil, nil, err
	}
	store := artifact.NewStore(blobs,
		artifact.WithCompression(comp),
		artifact.WithOverwrite(overwrite),
		artifact.WithLogger(log.Logger),
	)
	return store, blobs, nil
}

func manifestStore(ctx context.Context, cfg config.Config, blobs blobstore.BlobStore) (manifest.Store, error) {
	if cfg.Compute.ManifestTable == "" {
		return manifest.NewBlobStore(blobs, ""), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return manifest.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Compute.ManifestTable), nil
}

// loadUniverse also returns the number of clique tracks, which sizes the
// rank lists of an evaluation.
func loadUniverse(cfg config.Config) (dataset.Universe, int, error) {
	if cfg.Dataset.Universe != "" {
		u, err := dataset.ReadUniverseFile(cfg.Dataset.Universe)
		if err != nil {
			return dataset.Universe{}, 0, err
		}
		return u, u.Queries(), nil
	}

	cliques, tracks, err := dataset.ReadSHSFile(cfg.Dataset.SHS)
	if err != nil {
		return dataset.Universe{}, 0, err
	}
	var distractors []string
	if cfg.Dataset.Distractors != "" {
		distractors, err = readLines(cfg.Dataset.Distractors)
		if err != nil {
			return dataset.Universe{}, 0, err
		}
	}
	return dataset.FromCliques(cliques, distractors), len(tracks), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
