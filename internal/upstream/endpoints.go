package upstream

import (
	"net/url"

	"github.com/rohmanhakim/nextmuni/pkg/urlutil"
)

const (
	routeListPath = "/googleMap/routeSelector.jsp"
	xmlFeedPath   = "/s/COM.NextBus.Servlets.XMLFeed"
)

// Endpoints builds upstream request targets for one agency.
type Endpoints struct {
	base   url.URL
	agency string
}

func NewEndpoints(base url.URL, agency string) Endpoints {
	return Endpoints{
		base:   urlutil.CanonicalBase(base),
		agency: agency,
	}
}

func (e Endpoints) Agency() string {
	return e.agency
}

// RouteList is the HTML routes page. Requesting it also hands out the
// session cookie the XML feed requires.
func (e Endpoints) RouteList() Request {
	target := urlutil.Resolve(e.base, routeListPath, url.Values{"a": {e.agency}})
	return NewRequest(EndpointRouteList, target)
}

// RouteDetails is the XML direction/stop configuration of one route.
func (e Endpoints) RouteDetails(routeTag string) Request {
	target := urlutil.Resolve(e.base, xmlFeedPath, url.Values{
		"command": {"routeConfig"},
		"a":       {e.agency},
		"r":       {routeTag},
	})
	return NewRequest(EndpointRouteConfig, target)
}

// MultiPrediction asks for predictions at stopTag for every route in routeTags.
func (e Endpoints) MultiPrediction(stopTag string, routeTags ...string) Request {
	stops := make([]string, 0, len(routeTags))
	for _, routeTag := range routeTags {
		stops = append(stops, routeTag+"|"+stopTag)
	}
	target := urlutil.Resolve(e.base, xmlFeedPath, url.Values{
		"command": {"predictionsForMultiStops"},
		"a":       {e.agency},
		"stops":   stops,
	})
	return NewRequest(EndpointPredictions, target)
}
