package coverid

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/coverid/scheduler"
	"github.com/hupe1980/coverid/stats"
)

// Logger wraps slog.Logger with pipeline-specific helpers so shard and
// evaluation events share field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn or error onto a slog.Level. Unknown
// names yield info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithRun adds a run id field to the logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", runID),
	}
}

// LogShard logs the outcome of a single shard.
func (l *Logger) LogShard(ctx context.Context, sh scheduler.Shard, elapsed time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "shard failed",
			"shard", sh.Name(),
			"start", sh.Start,
			"end", sh.End,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "shard done",
			"shard", sh.Name(),
			"tracks", sh.Len(),
			"elapsed", elapsed,
		)
	}
}

// LogCompute logs the end of a compute run.
func (l *Logger) LogCompute(ctx context.Context, rep *scheduler.Report) {
	if !rep.OK() {
		l.WarnContext(ctx, "code computation completed with failures",
			"run", rep.RunID,
			"completed", len(rep.Completed),
			"skipped", len(rep.Skipped),
			"failed", rep.Failed,
		)
		return
	}
	l.InfoContext(ctx, "code computation completed",
		"run", rep.RunID,
		"completed", len(rep.Completed),
		"skipped", len(rep.Skipped),
		"tracks", rep.Tracks,
		"valid", rep.Valid,
		"duration", rep.Duration,
	)
}

// LogProgress logs a running evaluation snapshot.
func (l *Logger) LogProgress(ctx context.Context, done, total int, elapsed time.Duration) {
	l.InfoContext(ctx, "evaluation progress",
		"queries", done,
		"total", total,
		"elapsed", elapsed,
	)
}

// LogSummary logs the final evaluation metrics.
func (l *Logger) LogSummary(ctx context.Context, s stats.Summary) {
	l.InfoContext(ctx, "evaluation done",
		"queries", s.Queries,
		"found", s.Found,
		"avg_rank_per_track", s.AvgRankPerTrack,
		"avg_rank_per_clique", s.AvgRankPerClique,
		"map", s.MAP,
	)
}
