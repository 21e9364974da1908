package parser

// Route is one entry of the routes page. UpstreamIndex is its position
// among the well-formed entries, starting at 0.
type Route struct {
	Tag           string
	Title         string
	UpstreamIndex int
}

// RouteDetails is the parsed route configuration: every stop the route
// serves and its directions of travel.
type RouteDetails struct {
	Tag        string
	Title      string
	Stops      []Stop
	Directions []Direction
}

type Stop struct {
	Tag       string
	Title     string
	Latitude  float64
	Longitude float64
}

// Direction lists its stops in travel order.
type Direction struct {
	Tag      string
	Title    string
	UseForUI bool
	StopTags []string
}

// Prediction is one forecast arrival. EpochMillis is the predicted time.
type Prediction struct {
	RouteTag     string
	StopTag      string
	DirectionTag string
	EpochMillis  int64
}
