// Package testutil provides testing utilities for coverid.
//
// This package is intended for use in tests only. It provides a
// deterministic RNG plus generators for synthetic frame matrices and
// clustered code sets that mimic cover cliques.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	frames := rng.Frames(120, 12)          // time x descriptor
//	codes, cliques := rng.CliqueCodes(10, 3, 16, 0.05)
//
// # Blob Fixtures
//
//	store := blobstore.NewMemoryStore()
//	testutil.PutFrames(t, store, "TRAAAAA128F4200001", frames)
package testutil
