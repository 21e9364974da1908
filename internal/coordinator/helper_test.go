package coordinator_test

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rohmanhakim/nextmuni/internal/coordinator"
	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/internal/metrics"
	"github.com/rohmanhakim/nextmuni/internal/runner"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/rohmanhakim/nextmuni/internal/upstream"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
	"github.com/rohmanhakim/nextmuni/pkg/timeutil"
	"github.com/stretchr/testify/require"
)

const routesPage = `<table>
<tr><td><input type="checkbox" id="J" value="checkbox"></td><td> J-Church </td></tr>
<tr><td><input type="checkbox" id="N" value="checkbox"></td><td> N-Judah </td></tr>
</table>`

const routeConfigN = `<body>
<route tag="N" title="N-Judah">
<stop tag="5205" title="Duboce St &amp; Noe St" lat="37.7692399" lon="-122.43347"/>
<stop tag="4448" title="Carl St &amp; Cole St" lat="37.76574" lon="-122.44983"/>
<direction tag="N__OB1" title="Outbound to Ocean Beach" useForUI="true">
  <stop tag="5205"/>
  <stop tag="4448"/>
</direction>
<direction tag="N__IB1" title="Inbound to Caltrain" useForUI="true">
  <stop tag="4448"/>
  <stop tag="5205"/>
</direction>
</route>
</body>`

const predictionsN = `<body>
<predictions routeTag="N" stopTag="5205">
  <direction title="Outbound to Ocean Beach">
  <prediction epochTime="300" dirTag="N__OB1"/>
  <prediction epochTime="100" dirTag="N__OB1"/>
  </direction>
</predictions>
</body>`

const missingCookie = `<body><Error shouldRetry="true">Session expired</Error></body>`

// testNow is the fixed clock every coordinator test runs against.
var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type response struct {
	body    string
	cookies []*http.Cookie
	err     failure.ClassifiedError
}

// fakeUpstream serves scripted responses per endpoint. A gated endpoint
// holds every request until the gate is closed.
type fakeUpstream struct {
	mu        sync.Mutex
	calls     map[upstream.Endpoint]int
	sessions  []upstream.Session
	responses map[upstream.Endpoint][]response
	gates     map[upstream.Endpoint]chan struct{}
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		calls:     make(map[upstream.Endpoint]int),
		responses: make(map[upstream.Endpoint][]response),
		gates:     make(map[upstream.Endpoint]chan struct{}),
	}
}

// on queues responses for endpoint; the last one repeats once exhausted.
func (f *fakeUpstream) on(endpoint upstream.Endpoint, responses ...response) *fakeUpstream {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[endpoint] = append(f.responses[endpoint], responses...)
	return f
}

func (f *fakeUpstream) gate(endpoint upstream.Endpoint) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[endpoint] = g
	return g
}

func (f *fakeUpstream) count(endpoint upstream.Endpoint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeUpstream) lastSession() upstream.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return upstream.Session{}
	}
	return f.sessions[len(f.sessions)-1]
}

func (f *fakeUpstream) Get(ctx context.Context, req upstream.Request, session upstream.Session) (upstream.FetchResult, failure.ClassifiedError) {
	f.mu.Lock()
	endpoint := req.Endpoint()
	call := f.calls[endpoint]
	f.calls[endpoint] = call + 1
	f.sessions = append(f.sessions, session)
	gate := f.gates[endpoint]
	queued := f.responses[endpoint]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return upstream.FetchResult{}, &upstream.UpstreamError{Message: "cancelled", Cause: upstream.ErrCauseCancelled}
		}
	}

	if len(queued) == 0 {
		return upstream.FetchResult{}, &upstream.UpstreamError{Message: "no response scripted", Cause: upstream.ErrCauseRequest4xx}
	}
	resp := queued[len(queued)-1]
	if call < len(queued) {
		resp = queued[call]
	}
	if resp.err != nil {
		return upstream.FetchResult{}, resp.err
	}
	return upstream.NewFetchResultForTest(req.URL(), []byte(resp.body), http.StatusOK, resp.cookies), nil
}

func networkDown() response {
	return response{err: &upstream.UpstreamError{
		Message:   "connection refused",
		Retryable: true,
		Cause:     upstream.ErrCauseNetworkFailure,
	}}
}

// noticeSink keeps user-visible notices and refresh events.
type noticeSink struct {
	metadata.NoopSink
	mu        sync.Mutex
	notices   []string
	refreshes []string
	causes    []metadata.ErrorCause
}

func (s *noticeSink) RecordNotice(message string, attrs []metadata.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, message)
}

func (s *noticeSink) RecordRefresh(routeTag string, tier string, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes = append(s.refreshes, routeTag+"/"+tier+"/"+outcome)
}

func (s *noticeSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.causes = append(s.causes, cause)
}

func (s *noticeSink) noticeList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

func (s *noticeSink) causeList() []metadata.ErrorCause {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metadata.ErrorCause(nil), s.causes...)
}

type fixture struct {
	coordinator *coordinator.Coordinator
	upstream    *fakeUpstream
	store       *storage.GORMStore
	runner      *runner.Runner
	sink        *noticeSink
	registry    *prometheus.Registry
}

func newFixture(t *testing.T, fake *fakeUpstream) *fixture {
	return newFixtureWithStore(t, fake, nil)
}

// newFixtureWithStore lets a test wrap the real store; wrap may be nil.
func newFixtureWithStore(t *testing.T, fake *fakeUpstream, wrap func(storage.Store) storage.Store) *fixture {
	t.Helper()
	sink := &noticeSink{}
	store, err := storage.New(&storage.Config{Path: filepath.Join(t.TempDir(), "cache.db")}, sink)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var s storage.Store = store
	if wrap != nil {
		s = wrap(store)
	}

	r := runner.New(context.Background(), sink)
	t.Cleanup(r.Shutdown)

	base, err := url.Parse("http://www.nextmuni.com")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	c := coordinator.NewCoordinator(
		sink,
		metrics.New(reg),
		s,
		fake,
		upstream.NewEndpoints(*base, "sf-muni"),
		r,
		coordinator.RefreshPolicy{StaleAfter: timeutil.OneDay, ExpireAfter: timeutil.OneMonth},
	).WithClock(func() time.Time { return testNow })

	return &fixture{
		coordinator: c,
		upstream:    fake,
		store:       store,
		runner:      r,
		sink:        sink,
		registry:    reg,
	}
}

// seedRoutes stores J and N; N's directions were refreshed age ago.
func (f *fixture) seedRoutes(t *testing.T, age time.Duration) storage.Route {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.SetRoutes(ctx, map[string]storage.Route{
		"J": {Tag: "J", Title: "J-Church", UpstreamIndex: 0},
		"N": {Tag: "N", Title: "N-Judah", UpstreamIndex: 1},
	}))
	route, ok, err := f.store.GetRoute(ctx, "N")
	require.NoError(t, err)
	require.True(t, ok)

	if age > 0 {
		updated := testNow.Add(-age).UnixMilli()
		require.NoError(t, f.store.Update(ctx, func(tx storage.Tx) error {
			return tx.SetDirectionsUpdatedMs(route.ID, updated)
		}))
		route.DirectionsUpdatedMs = updated
	}
	return route
}

func (f *fixture) updatedMs(t *testing.T, routeID int64) int64 {
	t.Helper()
	ms, err := f.store.DirectionsUpdatedMs(context.Background(), routeID)
	require.NoError(t, err)
	return ms
}

// counterValue sums a counter family, optionally filtered by one label.
func (f *fixture) counterValue(t *testing.T, name string, labelName string, labelValue string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelName == "" || hasLabel(m, labelName, labelValue) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func hasLabel(m *dto.Metric, name string, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
