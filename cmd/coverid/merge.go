package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/coverid/aggregate"
)

var (
	mergeName      string
	mergeMaxShards int
	mergeOverwrite bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Concatenate shard artifacts into one artifact",
	Long: `Merge reads every shard artifact in sorted name order and writes a single
artifact holding all rows and code columns. Evaluate can then read it with
--merged.

Example:
  coverid merge -c run.yaml --name all-msd-codes`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeName, "name", "all-msd-codes", "name of the merged artifact")
	f.IntVar(&mergeMaxShards, "max-shards", 0, "merge at most this many shards")
	f.BoolVar(&mergeOverwrite, "overwrite", false, "replace an existing merged artifact")
}

func runMerge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.PreflightEvaluate(); err != nil {
		return err
	}
	log := newLogger(cfg)

	src, _, err := openArtifactStore(ctx, cfg.Codes, cfg, log, false)
	if err != nil {
		return err
	}
	dst, _, err := openArtifactStore(ctx, cfg.Codes, cfg, log, mergeOverwrite)
	if err != nil {
		return err
	}

	a, err := aggregate.Merge(ctx, src, dst, mergeName,
		aggregate.WithMaxShards(mergeMaxShards),
		aggregate.WithLogger(log.Logger),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %d valid, dims %v\n", mergeName, a.Len(), a.ValidCount(), a.Dims)
	return nil
}
