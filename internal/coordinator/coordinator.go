package coordinator

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/internal/metrics"
	"github.com/rohmanhakim/nextmuni/internal/parser"
	"github.com/rohmanhakim/nextmuni/internal/runner"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/rohmanhakim/nextmuni/internal/upstream"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
	"github.com/rohmanhakim/nextmuni/pkg/timeutil"
)

/*
 Coordinator is the sole authority over upstream traffic.

 Guarantees:
 - At most one route-list bootstrap is in flight. Callers that find the
   cache empty while it runs wait for it instead of issuing their own.
 - The session changes only by merging the cookies of a successful
   response, under the same lock as the in-flight marker.
 - Every parsed fetch is retried at most once, and only after the upstream
   rejected the session and a fresh cookie was obtained.
 - A route's refresh timestamp advances in the same transaction that
   replaces its directions and stops, and only if no other refresh
   committed first.

 Failures never reach query callers. They are recorded, and the caller
 sees whatever the cache holds.
*/

// Submitter runs fire-and-forget work. *runner.Runner satisfies it.
type Submitter interface {
	Submit(name string, task runner.Task) bool
}

type Coordinator struct {
	metadataSink metadata.MetadataSink
	metrics      *metrics.Metrics
	store        storage.Store
	client       upstream.Client
	endpoints    upstream.Endpoints
	background   Submitter
	policy       RefreshPolicy
	now          func() time.Time

	routeListParser   parser.Parser[map[string]parser.Route]
	routeConfigParser parser.Parser[parser.RouteDetails]
	predictionsParser parser.Parser[[]parser.Prediction]

	// mu guards inflight and session, and is held while checking whether
	// the route table is empty.
	mu sync.Mutex
	// inflight is non-nil while a bootstrap runs and is closed when it ends.
	inflight chan struct{}
	session  upstream.Session

	routeLocks *routeLocks
}

func NewCoordinator(
	metadataSink metadata.MetadataSink,
	m *metrics.Metrics,
	store storage.Store,
	client upstream.Client,
	endpoints upstream.Endpoints,
	background Submitter,
	policy RefreshPolicy,
) *Coordinator {
	return &Coordinator{
		metadataSink:      metadataSink,
		metrics:           m,
		store:             store,
		client:            client,
		endpoints:         endpoints,
		background:        background,
		policy:            policy,
		now:               time.Now,
		routeListParser:   parser.NewRouteListParser(),
		routeConfigParser: parser.NewRouteConfigParser(),
		predictionsParser: parser.NewPredictionsParser(),
		routeLocks:        newRouteLocks(),
	}
}

// WithClock replaces the time source used for staleness decisions.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Session returns the cookies currently sent upstream.
func (c *Coordinator) Session() upstream.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Prime fetches the route list and a fresh cookie in the background.
func (c *Coordinator) Prime() {
	c.background.Submit("prime", func(ctx context.Context) error {
		c.EnsureRoutes(ctx, true)
		return nil
	})
}

// EnsureRoutes makes sure the route list is cached, fetching it if the
// cache is empty. With forceCookieRefresh it also guarantees one route-list
// request completed after the call started, which renews the session.
//
// It never fails: if routes are still missing afterwards, reads are empty.
// A cancelled ctx abandons a wait on another caller's bootstrap, but a
// bootstrap the caller started runs to completion.
func (c *Coordinator) EnsureRoutes(ctx context.Context, forceCookieRefresh bool) {
	if !forceCookieRefresh && c.hasRoutes(ctx) {
		return
	}

	c.mu.Lock()
	if c.hasRoutes(ctx) {
		c.mu.Unlock()
		if forceCookieRefresh {
			c.RequestCookie(ctx)
		}
		return
	}

	if wait := c.inflight; wait != nil {
		c.mu.Unlock()
		c.metrics.ObserveBootstrapWait()
		select {
		case <-wait:
		case <-ctx.Done():
			return
		}
		// the bootstrap we waited on may predate a cookie the caller saw
		// rejected, so one more request is needed
		if forceCookieRefresh {
			c.RequestCookie(ctx)
		}
		return
	}

	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight = nil
		close(done)
		c.mu.Unlock()
	}()
	// waiters depend on this bootstrap, so the leader leaving must not
	// abort it; the client timeout still bounds it
	c.bootstrap(context.WithoutCancel(ctx))
}

// bootstrap fetches the route list, adopts its cookies and stores the
// routes if the cache is still empty.
func (c *Coordinator) bootstrap(ctx context.Context) {
	req := c.endpoints.RouteList()
	result, err := c.client.Get(ctx, req, c.Session())
	if err != nil {
		c.metadataSink.RecordNotice("Cookie/route request failed.", []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, req.String()),
			metadata.NewAttr(metadata.AttrMessage, err.Error()),
		})
		return
	}

	parsed := c.routeListParser.Parse(bytes.NewReader(result.Body()))
	c.metrics.ObserveParse(c.routeListParser.Name(), parsed.Outcome().String())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = c.session.Merge(result.Cookies())

	if !parsed.OK() {
		c.recordParseFailure("Coordinator.EnsureRoutes", req, c.routeListParser.Name(), parsed.Err())
		return
	}
	if c.hasRoutes(ctx) {
		return
	}
	// a store failure leaves the cache empty and the next call retries
	if err := c.store.SetRoutes(ctx, toStorageRoutes(parsed.Data())); err != nil {
		c.metadataSink.RecordNotice("Cookie/route request failed.", []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, req.String()),
			metadata.NewAttr(metadata.AttrMessage, err.Error()),
		})
	}
}

// RequestCookie issues one route-list request for its cookies only and
// reports whether it succeeded.
func (c *Coordinator) RequestCookie(ctx context.Context) bool {
	req := c.endpoints.RouteList()
	result, err := c.client.Get(ctx, req, c.Session())
	c.metrics.ObserveCookieRefresh(err == nil)
	if err != nil {
		c.metadataSink.RecordNotice("Cookie/route request failed.", []metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, req.String()),
			metadata.NewAttr(metadata.AttrMessage, err.Error()),
		})
		return false
	}

	c.mergeCookies(result.Cookies())
	return true
}

func (c *Coordinator) mergeCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.mu.Lock()
	c.session = c.session.Merge(cookies)
	c.mu.Unlock()
}

// RefreshRouteIfNeeded applies the staleness tier for route and reports
// which one it chose. Only TierBlocking waits for the network.
func (c *Coordinator) RefreshRouteIfNeeded(ctx context.Context, route storage.Route) Tier {
	age := time.Duration(timeutil.ToEpochMillis(c.now())-route.DirectionsUpdatedMs) * time.Millisecond
	tier := c.policy.tierFor(age)
	c.metrics.ObserveRefreshTier(string(tier))

	switch tier {
	case TierBlocking:
		outcome := c.doRefresh(ctx, route)
		c.metadataSink.RecordRefresh(route.Tag, string(tier), outcome)
	case TierBackground:
		scheduled := c.background.Submit("refresh route "+route.Tag, func(ctx context.Context) error {
			outcome := c.doRefresh(ctx, route)
			c.metadataSink.RecordRefresh(route.Tag, string(TierBackground), outcome)
			return nil
		})
		if !scheduled {
			c.metadataSink.RecordRefresh(route.Tag, string(tier), "not scheduled")
		}
	}
	return tier
}

// doRefresh replaces the route's directions and stops from upstream unless
// another refresh already made them fresh. It returns the result label.
func (c *Coordinator) doRefresh(ctx context.Context, route storage.Route) string {
	unlock := c.routeLocks.Lock(route.ID)
	defer unlock()

	freshSince := timeutil.ToEpochMillis(c.now().Add(-c.policy.StaleAfter))

	updatedMs, err := c.store.DirectionsUpdatedMs(ctx, route.ID)
	if err != nil {
		c.metrics.ObserveRefreshResult(resultFailed)
		return resultFailed
	}
	if updatedMs >= freshSince {
		c.metrics.ObserveRefreshResult(resultSkipped)
		return resultSkipped
	}

	details, fetchErr := fetchAndParse(ctx, c, c.endpoints.RouteDetails(route.Tag), c.routeConfigParser, false)
	if fetchErr != nil {
		// the timestamp stays old so the next read retries
		c.metrics.ObserveRefreshResult(resultFailed)
		return resultFailed
	}

	err = c.store.Update(ctx, func(tx storage.Tx) error {
		updatedMs, err := tx.DirectionsUpdatedMs(route.ID)
		if err != nil {
			return err
		}
		if updatedMs >= freshSince {
			return errAlreadyFresh
		}
		for _, stop := range toStorageStops(details.Stops) {
			if err := tx.AddStop(stop); err != nil {
				return err
			}
		}
		if err := tx.SetDirections(route.ID, toStorageDirections(details.Directions)); err != nil {
			return err
		}
		return tx.SetDirectionsUpdatedMs(route.ID, timeutil.ToEpochMillis(c.now()))
	})

	switch {
	case errors.Is(err, errAlreadyFresh):
		c.metadataSink.RecordError(
			time.Now(),
			"coordinator",
			"Coordinator.doRefresh",
			metadata.CauseStoreConflict,
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrRouteTag, route.Tag)},
		)
		c.metrics.ObserveRefreshResult(resultSkipped)
		return resultSkipped
	case err != nil:
		c.metadataSink.RecordError(
			time.Now(),
			"coordinator",
			"Coordinator.doRefresh",
			metadata.CauseStorageFailure,
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrRouteTag, route.Tag)},
		)
		c.metrics.ObserveRefreshResult(resultFailed)
		return resultFailed
	}
	c.metrics.ObserveRefreshResult(resultCommitted)
	return resultCommitted
}

// FetchPredictions asks upstream for predictions at stopTag on each of
// routeTags. Predictions are never cached.
func (c *Coordinator) FetchPredictions(
	ctx context.Context,
	stopTag string,
	routeTags []string,
) ([]parser.Prediction, failure.ClassifiedError) {
	return fetchAndParse(ctx, c, c.endpoints.MultiPrediction(stopTag, routeTags...), c.predictionsParser, false)
}

// fetchAndParse executes req and parses the body with p. When the upstream
// rejects the session it renews the cookie and tries once more; every
// other failure is final.
func fetchAndParse[T any](
	ctx context.Context,
	c *Coordinator,
	req upstream.Request,
	p parser.Parser[T],
	alreadyRetried bool,
) (T, failure.ClassifiedError) {
	var zero T

	result, fetchErr := c.client.Get(ctx, req, c.Session())
	if fetchErr != nil {
		return zero, fetchErr
	}
	c.mergeCookies(result.Cookies())

	parsed := p.Parse(bytes.NewReader(result.Body()))
	c.metrics.ObserveParse(p.Name(), parsed.Outcome().String())

	switch parsed.Outcome() {
	case parser.OutcomeSuccess:
		return parsed.Data(), nil

	case parser.OutcomeMissingCookie:
		if alreadyRetried {
			return zero, c.cookieFailure(req, &CoordinatorError{
				Message:   req.String(),
				Retryable: false,
				Cause:     ErrCauseCookieExpired,
			})
		}
		if !c.RequestCookie(ctx) {
			return zero, c.cookieFailure(req, &CoordinatorError{
				Message:   req.String(),
				Retryable: false,
				Cause:     ErrCauseCookieRefreshFailed,
			})
		}
		return fetchAndParse(ctx, c, req, p, true)

	default:
		c.recordParseFailure("fetchAndParse", req, p.Name(), parsed.Err())
		return zero, parsed.Err()
	}
}

func (c *Coordinator) cookieFailure(req upstream.Request, err *CoordinatorError) *CoordinatorError {
	c.metadataSink.RecordNotice("Failed to get cookie", []metadata.Attribute{
		metadata.NewAttr(metadata.AttrURL, req.String()),
	})
	c.metadataSink.RecordError(
		time.Now(),
		"coordinator",
		"fetchAndParse",
		mapCoordinatorErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, req.String())},
	)
	return err
}

func (c *Coordinator) recordParseFailure(action string, req upstream.Request, parserName string, err *parser.ParserError) {
	c.metadataSink.RecordError(
		time.Now(),
		"coordinator",
		action,
		parser.MapParserErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, req.String()),
			metadata.NewAttr(metadata.AttrParser, parserName),
		},
	)
}

// hasRoutes treats a failed read as empty.
func (c *Coordinator) hasRoutes(ctx context.Context) bool {
	has, err := c.store.HasRoutes(ctx)
	return err == nil && has
}
