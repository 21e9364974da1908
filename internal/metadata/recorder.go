package metadata

import (
	"context"
	"log/slog"
	"time"
)

/*
Metadata Collected
- Upstream fetches: URL, status, duration, content hash, size
- Classified errors per package/action
- Per-route refresh decisions (tier + outcome)
- User-visible notices (what a UI would show as a toast)

Metadata is write-only.
No component may read metadata to influence fetch, refresh, or retry decisions.
*/

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentHash string,
		sizeBytes int,
	)

	RecordRefresh(routeTag string, tier string, outcome string)

	// RecordNotice surfaces a failure the end user should see.
	RecordNotice(message string, attrs []Attribute)
}

/*
Recorder writes structured events through slog.
It must not:
- perform I/O decisions
- affect control flow
Ordering guarantees:
- Events are written in the order each goroutine records them.
- No global ordering across goroutines is guaranteed.
*/
type Recorder struct {
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	level := slog.LevelError
	if cause == CauseStoreConflict {
		level = slog.LevelDebug
	}

	args := []any{
		slog.Time("observed_at", observedAt),
		slog.String("package", packageName),
		slog.String("action", action),
		slog.String("cause", cause.String()),
		slog.String("details", details),
	}
	args = append(args, attrsToArgs(attrs)...)
	r.logger.Log(context.Background(), level, "error", args...)
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentHash string,
	sizeBytes int,
) {
	r.logger.Debug("fetch",
		slog.String("url", fetchUrl),
		slog.Int("http_status", httpStatus),
		slog.Duration("duration", duration),
		slog.String("content_hash", contentHash),
		slog.Int("size_bytes", sizeBytes),
	)
}

func (r *Recorder) RecordRefresh(routeTag string, tier string, outcome string) {
	r.logger.Info("route refresh",
		slog.String("route_tag", routeTag),
		slog.String("tier", tier),
		slog.String("outcome", outcome),
	)
}

func (r *Recorder) RecordNotice(message string, attrs []Attribute) {
	args := append([]any{slog.String("notice", message)}, attrsToArgs(attrs)...)
	r.logger.Warn("notice", args...)
}

func attrsToArgs(attrs []Attribute) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, slog.String(string(attr.Key), attr.Value))
	}
	return args
}

// NoopSink implements MetadataSink but does nothing.
// Tests inject it when they do not assert on events.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentHash string,
	sizeBytes int,
) {
}

func (n *NoopSink) RecordRefresh(routeTag string, tier string, outcome string) {}

func (n *NoopSink) RecordNotice(message string, attrs []Attribute) {}
