package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/coverid/aggregate"
	"github.com/hupe1980/coverid/dataset"
	"github.com/hupe1980/coverid/transform"
)

var (
	fitKind   string
	fitDims   int
	fitColumn int
	fitReg    float64
	fitMerged string
	fitOut    string
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a PCA or LDA projection on stored codes",
	Long: `Fit trains a projection on the valid rows of one code column and saves it
to the model store. LDA uses clique ids as class labels and ignores tracks
without a clique.

Examples:
  coverid fit -c raw.yaml --kind pca --dims 200 --out models/pca200.json
  coverid fit -c pca.yaml --kind lda --dims 50 --out models/lda50.json`,
	RunE: runFit,
}

func init() {
	f := fitCmd.Flags()
	f.StringVar(&fitKind, "kind", string(transform.KindPCA), "projection kind (pca, lda)")
	f.IntVar(&fitDims, "dims", 0, "output dimension")
	f.IntVar(&fitColumn, "column", aggregate.Raw, "code column to fit on, -1 for the last")
	f.Float64Var(&fitReg, "reg", transform.DefaultLDARegularization, "LDA within-class scatter regularization")
	f.StringVar(&fitMerged, "merged", "", "fit on a merged artifact instead of every shard")
	f.StringVarP(&fitOut, "out", "o", "", "model blob name")
	_ = fitCmd.MarkFlagRequired("dims")
	_ = fitCmd.MarkFlagRequired("out")
}

func runFit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.PreflightEvaluate(); err != nil {
		return err
	}
	log := newLogger(cfg)

	store, _, err := openArtifactStore(ctx, cfg.Codes, cfg, log, false)
	if err != nil {
		return err
	}
	set, err := aggregate.Load(ctx, store,
		aggregate.WithMerged(fitMerged),
		aggregate.WithColumn(fitColumn),
		aggregate.WithLogger(log.Logger),
	)
	if err != nil {
		return err
	}
	clean, err := aggregate.Clean(set)
	if err != nil {
		return err
	}

	var (
		rows   [][]float64
		labels []int
	)
	for i := range clean.Len() {
		if fitKind == string(transform.KindLDA) && clean.CliqueIDs[i] == dataset.NoClique {
			continue
		}
		src := clean.Features.Row(i)
		row := make([]float64, len(src))
		for j, v := range src {
			row[j] = float64(v)
		}
		rows = append(rows, row)
		labels = append(labels, int(clean.CliqueIDs[i]))
	}
	if len(rows) == 0 {
		return fmt.Errorf("no valid codes to fit on")
	}

	var p *transform.Projection
	switch transform.Kind(fitKind) {
	case transform.KindPCA:
		p, err = transform.FitPCA(transform.Dense(rows), fitDims)
	case transform.KindLDA:
		p, err = transform.FitLDA(transform.Dense(rows), labels, fitDims, fitReg)
	default:
		return fmt.Errorf("unknown projection kind %q", fitKind)
	}
	if err != nil {
		return err
	}

	models, err := cfg.ModelStore().Open(ctx)
	if err != nil {
		return fmt.Errorf("open model store: %w", err)
	}
	if err := transform.SaveProjection(ctx, models, fitOut, p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %d -> %d fitted on %d rows\n", fitOut, p.Kind, p.InDim(), p.OutDim(), len(rows))
	return nil
}
