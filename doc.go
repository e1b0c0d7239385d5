// Package coverid identifies cover songs by ranking fixed-size track codes.
//
// A run has two phases. Compute splits a track universe into shards, one
// worker per partition of ten shards, and writes one code artifact per shard.
// Evaluate loads the artifacts, drops tracks without valid codes and ranks
// every other track by Euclidean distance for each query, recording where
// the members of the query's clique (its covers) land.
//
// # Quick Start
//
//	ctx := context.Background()
//	u, _ := dataset.ReadUniverseFile("universe.tsv")
//	features := blobstore.NewLocalStore("./features")
//	codes := artifact.NewStore(blobstore.NewLocalStore("./codes"))
//
//	p, _ := coverid.New(
//	    coverid.WithUniverse(u),
//	    coverid.WithExtractor(extract.NewBlobExtractor(features)),
//	    coverid.WithCodeStore(codes),
//	    coverid.WithWorkers(8),
//	)
//	rep, _ := p.Compute(ctx)
//	ev, _ := p.Evaluate(ctx)
//	fmt.Println(ev.Summary.MAP)
//
// # Codes
//
// A track's code is the per-dimension median over its feature frames,
// optionally normalized and projected by a transform.Chain (PCA, LDA, both,
// or an ensemble of projections producing one code column each). Tracks
// without features are kept as Missing rows so every artifact stays aligned
// with its slice of the universe.
//
// # Storage
//
// Artifacts, manifests, models and reports live in a blobstore.BlobStore:
// local disk (mmap reads), memory, S3 or MinIO. The run manifest can also be
// kept in DynamoDB.
//
// # Statistics
//
// Each query yields a stats.RankList of 1-based positions of its clique
// members, or nil when none are in the corpus. Summaries report the average
// first rank per track, the average mean rank per clique and MAP.
package coverid
