// Package mmap maps shard artifacts read-only into memory.
//
// Artifacts are immutable once written, so a shared read-only mapping lets the
// aggregator decode large shard files without copying them through the page
// cache twice.
package mmap
