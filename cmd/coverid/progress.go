package main

import (
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/hupe1980/coverid"
)

// progressCollector drives terminal bars from pipeline metrics.
type progressCollector struct {
	coverid.BasicMetricsCollector

	p      *mpb.Progress
	shards *mpb.Bar
	tracks *mpb.Bar
}

func newProgress(out io.Writer, shards, tracks int) *progressCollector {
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))
	pc := &progressCollector{p: p}
	pc.shards = p.AddBar(int64(shards),
		mpb.PrependDecorators(
			decor.Name("Shards: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)
	pc.tracks = p.AddBar(int64(tracks),
		mpb.PrependDecorators(
			decor.Name("Tracks: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
	return pc
}

func (pc *progressCollector) RecordShard(tracks int, d time.Duration, err error) {
	pc.BasicMetricsCollector.RecordShard(tracks, d, err)
	pc.shards.Increment()
}

func (pc *progressCollector) RecordTrack(valid bool) {
	pc.BasicMetricsCollector.RecordTrack(valid)
	pc.tracks.Increment()
}

// Wait completes the bars, including shards that were never recorded, and
// flushes the output.
func (pc *progressCollector) Wait() {
	pc.shards.Abort(false)
	pc.tracks.Abort(false)
	pc.p.Wait()
}
