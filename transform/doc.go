// Package transform maps raw descriptor vectors onto codes.
//
// A Chain is built once from fitted projections and shared read-only by every
// shard worker:
//
//	pca, _ := transform.FitPCA(x, 200)
//	chain := &transform.Chain{Normalize: true, PCA: pca}
//	outs, err := chain.Apply(vec) // one code per configured output
//
// Projections are fitted with gonum (PCA via stat.PC, LDA via a Cholesky
// whitened symmetric eigenproblem) and persisted as JSON models in a blob
// store.
package transform
