package coordinator

import (
	"time"

	"github.com/rohmanhakim/nextmuni/internal/parser"
	"github.com/rohmanhakim/nextmuni/internal/storage"
)

// Tier is the staleness policy applied to a route's cached directions/stops.
type Tier string

const (
	// TierFresh: no action.
	TierFresh Tier = "fresh"
	// TierBackground: serve cached data, refresh on the background runner.
	TierBackground Tier = "background"
	// TierBlocking: refresh before the caller proceeds.
	TierBlocking Tier = "blocking"
)

// RefreshPolicy holds the tier boundaries. Data younger than StaleAfter is
// fresh; data older than ExpireAfter is unusable.
type RefreshPolicy struct {
	StaleAfter  time.Duration
	ExpireAfter time.Duration
}

func (p RefreshPolicy) tierFor(age time.Duration) Tier {
	switch {
	case age > p.ExpireAfter:
		return TierBlocking
	case age > p.StaleAfter:
		return TierBackground
	default:
		return TierFresh
	}
}

// refresh results, as counted by metrics
const (
	resultCommitted = "committed"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
)

func toStorageRoutes(routes map[string]parser.Route) map[string]storage.Route {
	out := make(map[string]storage.Route, len(routes))
	for tag, r := range routes {
		out[tag] = storage.Route{
			Tag:           r.Tag,
			Title:         r.Title,
			UpstreamIndex: r.UpstreamIndex,
		}
	}
	return out
}

func toStorageStops(stops []parser.Stop) []storage.Stop {
	out := make([]storage.Stop, 0, len(stops))
	for _, s := range stops {
		out = append(out, storage.Stop{
			Tag:       s.Tag,
			Title:     s.Title,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		})
	}
	return out
}

func toStorageDirections(dirs []parser.Direction) []storage.Direction {
	out := make([]storage.Direction, 0, len(dirs))
	for _, d := range dirs {
		stops := make([]storage.DirectionStop, 0, len(d.StopTags))
		for i, tag := range d.StopTags {
			stops = append(stops, storage.DirectionStop{StopOrder: i, StopTag: tag})
		}
		out = append(out, storage.Direction{
			Tag:      d.Tag,
			Title:    d.Title,
			UseForUI: d.UseForUI,
			Stops:    stops,
		})
	}
	return out
}
