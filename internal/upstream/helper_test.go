package upstream_test

import (
	"context"
	"sync"
	"time"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
)

// recordingSink is a test double for metadata.MetadataSink
type recordingSink struct {
	mu          sync.Mutex
	fetchEvents []fetchEvent
	errorEvents []errorEvent
}

type fetchEvent struct {
	fetchUrl    string
	httpStatus  int
	contentHash string
	sizeBytes   int
}

type errorEvent struct {
	packageName string
	action      string
	cause       metadata.ErrorCause
	details     string
}

func (s *recordingSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorEvents = append(s.errorEvents, errorEvent{
		packageName: packageName,
		action:      action,
		cause:       cause,
		details:     details,
	})
}

func (s *recordingSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentHash string,
	sizeBytes int,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchEvents = append(s.fetchEvents, fetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		contentHash: contentHash,
		sizeBytes:   sizeBytes,
	})
}

func (s *recordingSink) RecordRefresh(routeTag string, tier string, outcome string) {}

func (s *recordingSink) RecordNotice(message string, attrs []metadata.Attribute) {}

// limiterSpy counts calls made against a RateLimiter
type limiterSpy struct {
	mu       sync.Mutex
	waits    int
	marks    int
	backoffs int
	resets   int
}

func (l *limiterSpy) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waits++
	return ctx.Err()
}

func (l *limiterSpy) MarkLastFetchAsNow(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks++
}

func (l *limiterSpy) Backoff(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoffs++
}

func (l *limiterSpy) ResetBackoff(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets++
}
