package provider

import (
	"context"
	"sort"

	"github.com/rohmanhakim/nextmuni/internal/coordinator"
	"github.com/rohmanhakim/nextmuni/internal/parser"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
)

/*
Provider is the read-only query surface.

Every query returns rows or an empty result. Upstream, parse and storage
failures are recorded where they happen and show up here only as absent
data. Directions and stops come from the cache; predictions always come
from upstream.
*/

// Fetcher is the part of the coordinator the provider drives.
type Fetcher interface {
	EnsureRoutes(ctx context.Context, forceCookieRefresh bool)
	RefreshRouteIfNeeded(ctx context.Context, route storage.Route) coordinator.Tier
	FetchPredictions(ctx context.Context, stopTag string, routeTags []string) ([]parser.Prediction, failure.ClassifiedError)
}

// Reader is the part of the store the provider queries.
type Reader interface {
	GetRoute(ctx context.Context, tag string) (storage.Route, bool, error)
	ListRoutes(ctx context.Context) ([]storage.Route, error)
	ListDirections(ctx context.Context, routeID int64) ([]storage.Direction, error)
	ListStops(ctx context.Context, routeID int64, directionTag string) ([]storage.OrderedStop, error)
	RoutesServingStop(ctx context.Context, stopTag string) ([]string, error)
	DirectionTitles(ctx context.Context, tags []string) (map[string]string, error)
}

type Provider struct {
	fetcher Fetcher
	reader  Reader
}

func NewProvider(fetcher Fetcher, reader Reader) *Provider {
	return &Provider{fetcher: fetcher, reader: reader}
}

// ListRoutes returns routes in the order the upstream menu lists them.
func (p *Provider) ListRoutes(ctx context.Context) []RouteRow {
	p.fetcher.EnsureRoutes(ctx, false)

	routes, err := p.reader.ListRoutes(ctx)
	if err != nil {
		return []RouteRow{}
	}
	rows := make([]RouteRow, 0, len(routes))
	for _, r := range routes {
		rows = append(rows, RouteRow{
			ID:            r.ID,
			Tag:           r.Tag,
			Title:         r.Title,
			UpstreamIndex: r.UpstreamIndex,
		})
	}
	return rows
}

// ListDirections returns the route's UI directions, ordered by tag.
func (p *Provider) ListDirections(ctx context.Context, routeTag string) []DirectionRow {
	route, ok := p.freshRoute(ctx, routeTag)
	if !ok {
		return []DirectionRow{}
	}

	directions, err := p.reader.ListDirections(ctx, route.ID)
	if err != nil {
		return []DirectionRow{}
	}
	rows := make([]DirectionRow, 0, len(directions))
	for _, d := range directions {
		rows = append(rows, DirectionRow{ID: d.ID, Tag: d.Tag, Title: d.Title})
	}
	return rows
}

// ListStops returns the stops of one direction in travel order.
func (p *Provider) ListStops(ctx context.Context, routeTag string, directionTag string) []StopRow {
	route, ok := p.freshRoute(ctx, routeTag)
	if !ok {
		return []StopRow{}
	}

	stops, err := p.reader.ListStops(ctx, route.ID, directionTag)
	if err != nil {
		return []StopRow{}
	}
	rows := make([]StopRow, 0, len(stops))
	for _, s := range stops {
		rows = append(rows, StopRow{
			Tag:       s.Tag,
			Title:     s.Title,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			StopOrder: s.StopOrder,
		})
	}
	return rows
}

// ListPredictions returns upcoming arrivals at stopTag for every cached
// route serving it, soonest first. directionTag does not filter: riders
// at a stop see every line that calls there.
func (p *Provider) ListPredictions(ctx context.Context, routeTag string, directionTag string, stopTag string) []PredictionRow {
	routeTags, err := p.reader.RoutesServingStop(ctx, stopTag)
	if err != nil || len(routeTags) == 0 {
		routeTags = []string{routeTag}
	}

	predictions, fetchErr := p.fetcher.FetchPredictions(ctx, stopTag, routeTags)
	if fetchErr != nil {
		return []PredictionRow{}
	}
	return p.aggregate(ctx, predictions)
}

// aggregate orders predictions by time and resolves direction titles with
// a single lookup for the distinct tags present.
func (p *Provider) aggregate(ctx context.Context, predictions []parser.Prediction) []PredictionRow {
	sorted := make([]parser.Prediction, len(predictions))
	copy(sorted, predictions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EpochMillis < sorted[j].EpochMillis
	})

	seen := make(map[string]bool)
	tags := make([]string, 0)
	for _, pred := range sorted {
		if !seen[pred.DirectionTag] {
			seen[pred.DirectionTag] = true
			tags = append(tags, pred.DirectionTag)
		}
	}

	titles := map[string]string{}
	if len(tags) > 0 {
		if resolved, err := p.reader.DirectionTitles(ctx, tags); err == nil {
			titles = resolved
		}
	}

	rows := make([]PredictionRow, 0, len(sorted))
	for i, pred := range sorted {
		title, ok := titles[pred.DirectionTag]
		if !ok || title == "" {
			title = pred.DirectionTag
		}
		rows = append(rows, PredictionRow{
			ID:             i,
			RouteTag:       pred.RouteTag,
			DirectionTag:   pred.DirectionTag,
			DirectionTitle: title,
			StopTag:        pred.StopTag,
			PredictedTime:  pred.EpochMillis,
		})
	}
	return rows
}

// freshRoute resolves routeTag after making sure routes are loaded and the
// route's directions are fresh enough to read.
func (p *Provider) freshRoute(ctx context.Context, routeTag string) (storage.Route, bool) {
	p.fetcher.EnsureRoutes(ctx, false)

	route, ok, err := p.reader.GetRoute(ctx, routeTag)
	if err != nil || !ok {
		return storage.Route{}, false
	}
	p.fetcher.RefreshRouteIfNeeded(ctx, route)
	return route, true
}
