package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/coverid"
	"github.com/hupe1980/coverid/config"
	"github.com/hupe1980/coverid/extract"
	"github.com/hupe1980/coverid/resource"
	"github.com/hupe1980/coverid/scheduler"
	"github.com/hupe1980/coverid/transform"
)

var (
	computeWorkers      int
	computePartitions   []int
	computeSkipExisting bool
	computeShardTimeout time.Duration
	computeNoProgress   bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute shard code artifacts for the track universe",
	Long: `Compute splits the track universe into shards of 10,000 tracks, ten per
worker partition, and writes one artifact per shard named
{partition:02d}{iteration}-msd-codes.

Examples:
  coverid compute -c run.yaml --workers 16
  coverid compute -c run.yaml --partitions 3,7 --skip-existing`,
	RunE: runCompute,
}

func init() {
	f := computeCmd.Flags()
	f.IntVarP(&computeWorkers, "workers", "w", 0, "number of worker partitions")
	f.IntSliceVar(&computePartitions, "partitions", nil, "only compute these partitions")
	f.BoolVar(&computeSkipExisting, "skip-existing", false, "skip shards whose artifact exists")
	f.DurationVar(&computeShardTimeout, "shard-timeout", 0, "per-shard time limit")
	f.BoolVar(&computeNoProgress, "no-progress", false, "disable progress bars")
}

func runCompute(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if computeWorkers > 0 {
		cfg.Workers = computeWorkers
	}
	if len(computePartitions) > 0 {
		cfg.Compute.Partitions = computePartitions
	}
	if computeSkipExisting {
		cfg.Compute.SkipExisting = true
	}
	if computeShardTimeout > 0 {
		cfg.Compute.ShardTimeout = computeShardTimeout
	}
	if err := cfg.PreflightCompute(); err != nil {
		return err
	}

	log := newLogger(cfg)

	u, _, err := loadUniverse(cfg)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	store, blobs, err := openArtifactStore(ctx, cfg.Codes, cfg, log, false)
	if err != nil {
		return err
	}
	features, err := cfg.Features.Open(ctx)
	if err != nil {
		return fmt.Errorf("open features store: %w", err)
	}
	chain, err := loadChain(ctx, cfg)
	if err != nil {
		return err
	}
	manifests, err := manifestStore(ctx, cfg, blobs)
	if err != nil {
		return err
	}

	rc := resource.NewController(resource.Config{
		MaxWorkers:         int64(cfg.Workers),
		IOLimitBytesPerSec: cfg.Compute.IOLimit,
	})

	opts := []coverid.Option{
		coverid.WithUniverse(u),
		coverid.WithChain(chain),
		coverid.WithExtractor(extract.NewBlobExtractor(features,
			extract.WithController(rc),
			extract.WithLogger(log.Logger),
		)),
		coverid.WithCodeStore(store),
		coverid.WithWorkers(cfg.Workers),
		coverid.WithPartitions(cfg.Compute.Partitions...),
		coverid.WithController(rc),
		coverid.WithShardTimeout(cfg.Compute.ShardTimeout),
		coverid.WithSkipExisting(cfg.Compute.SkipExisting),
		coverid.WithManifestStore(manifests),
		coverid.WithBuildProgressEvery(cfg.Compute.ProgressEvery),
		coverid.WithLogger(log),
	}
	if cfg.Compute.Origin != "" {
		origin, _, err := openArtifactStore(ctx, originStore(cfg), cfg, log, false)
		if err != nil {
			return err
		}
		opts = append(opts, coverid.WithOrigin(origin))
	}

	var bars *progressCollector
	if !computeNoProgress {
		partitions := cfg.Compute.Partitions
		if len(partitions) == 0 {
			partitions = scheduler.Partitions(cfg.Workers)
		}
		plan := scheduler.Plan(u.Len(), partitions)
		tracks := 0
		for _, sh := range plan {
			tracks += sh.Len()
		}
		bars = newProgress(os.Stderr, len(plan), tracks)
		opts = append(opts, coverid.WithMetricsCollector(bars))
	}

	p, err := coverid.New(opts...)
	if err != nil {
		return err
	}
	rep, err := p.Compute(ctx)
	if bars != nil {
		bars.Wait()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d completed, %d skipped, %d failed, %d/%d tracks valid in %s\n",
		rep.RunID, len(rep.Completed), len(rep.Skipped), len(rep.Failed), rep.Valid, rep.Tracks, rep.Duration.Round(time.Millisecond))
	for _, e := range rep.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", e)
	}
	if !rep.OK() {
		return fmt.Errorf("%d shards failed", len(rep.Failed))
	}
	return nil
}

func loadChain(ctx context.Context, cfg config.Config) (*transform.Chain, error) {
	models, err := cfg.ModelStore().Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	chain, err := transform.LoadChain(ctx, models, cfg.ChainConfig())
	if err != nil {
		return nil, fmt.Errorf("load transform chain: %w", err)
	}
	return chain, nil
}

// originStore addresses previously computed raw codes next to the codes
// store: a sibling path for local stores, a key prefix otherwise.
func originStore(cfg config.Config) config.StoreConfig {
	sc := cfg.Codes
	if sc.Kind == config.StoreLocal {
		sc.Path = cfg.Compute.Origin
	} else {
		sc.Prefix = cfg.Compute.Origin
	}
	return sc
}
