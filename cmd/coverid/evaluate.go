package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/coverid"
	"github.com/hupe1980/coverid/distance"
)

var (
	evalMerged      string
	evalColumn      int
	evalMaxShards   int
	evalParallelism int
	evalMAPDepth    int
	evalMetric      string
	evalReport      string
	evalCapacity    int
	evalJSON        bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Rank every track and report average ranks and MAP",
	Long: `Evaluate loads the code artifacts, drops tracks without valid codes and
ranks all remaining tracks for every track with a known clique. The rank
lists are written as a report next to the codes. With a dataset configured,
one rank list is kept per clique track; tracks without a valid code keep an
empty list that counts as a miss in MAP.

Examples:
  coverid evaluate -c run.yaml
  coverid evaluate -c run.yaml --merged all-msd-codes --column 0 --json`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evalMerged, "merged", "", "evaluate a merged artifact instead of every shard")
	f.IntVar(&evalColumn, "column", 0, "code column to evaluate, -1 for the last")
	f.IntVar(&evalMaxShards, "max-shards", 0, "read at most this many shards")
	f.IntVarP(&evalParallelism, "parallelism", "p", 0, "number of query goroutines")
	f.IntVar(&evalMAPDepth, "map-depth", 0, "count ranks up to this depth in MAP (0 = all)")
	f.StringVar(&evalMetric, "metric", "", "distance metric (euclidean, cosine)")
	f.StringVar(&evalReport, "report", "", "report blob name")
	f.IntVar(&evalCapacity, "capacity", 0, "presize the rank lists (0 = clique tracks of the dataset, else queries)")
	f.BoolVar(&evalJSON, "json", false, "print the summary as JSON")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("merged") {
		cfg.Evaluate.Merged = evalMerged
	}
	if f.Changed("column") {
		cfg.Evaluate.Column = evalColumn
	}
	if f.Changed("max-shards") {
		cfg.Evaluate.MaxShards = evalMaxShards
	}
	if evalParallelism > 0 {
		cfg.Evaluate.Parallelism = evalParallelism
	}
	if f.Changed("map-depth") {
		cfg.Evaluate.MAPDepth = evalMAPDepth
	}
	if evalMetric != "" {
		cfg.Evaluate.Metric = evalMetric
	}
	if evalReport != "" {
		cfg.Evaluate.Report = evalReport
	}
	if f.Changed("capacity") {
		cfg.Evaluate.Capacity = evalCapacity
	}
	if err := cfg.PreflightEvaluate(); err != nil {
		return err
	}

	log := newLogger(cfg)
	metric, err := distance.ParseMetric(cfg.Evaluate.Metric)
	if err != nil {
		return err
	}
	store, blobs, err := openArtifactStore(ctx, cfg.Codes, cfg, log, false)
	if err != nil {
		return err
	}
	chain, err := loadChain(ctx, cfg)
	if err != nil {
		return err
	}
	capacity := cfg.Evaluate.Capacity
	if capacity == 0 && cfg.HasDataset() {
		if _, capacity, err = loadUniverse(cfg); err != nil {
			return err
		}
		log.Info("rank lists sized by dataset", "capacity", capacity)
	}

	p, err := coverid.New(
		coverid.WithCodeStore(store),
		coverid.WithChain(chain),
		coverid.WithMerged(cfg.Evaluate.Merged),
		coverid.WithColumn(cfg.Evaluate.Column),
		coverid.WithMaxShards(cfg.Evaluate.MaxShards),
		coverid.WithParallelism(cfg.Evaluate.Parallelism),
		coverid.WithMAPDepth(cfg.Evaluate.MAPDepth),
		coverid.WithMetric(metric),
		coverid.WithEvalProgressEvery(cfg.Evaluate.ProgressEvery),
		coverid.WithQueryCapacity(capacity),
		coverid.WithReport(blobs, cfg.Evaluate.Report),
		coverid.WithLogger(log),
	)
	if err != nil {
		return err
	}

	ev, err := p.Evaluate(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if evalJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ev.Summary)
	}
	s := ev.Summary
	fmt.Fprintf(out, "queries:             %d (%d with covers)\n", s.Queries, s.Found)
	fmt.Fprintf(out, "avg rank per track:  %.4f\n", s.AvgRankPerTrack)
	fmt.Fprintf(out, "avg rank per clique: %.4f\n", s.AvgRankPerClique)
	fmt.Fprintf(out, "MAP:                 %.6f\n", s.MAP)
	fmt.Fprintf(out, "MRR:                 %.6f\n", s.MRR)
	return nil
}
