package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type routeConfigDoc struct {
	XMLName xml.Name      `xml:"body"`
	Errors  []feedError   `xml:"Error"`
	Routes  []routeConfig `xml:"route"`
}

type routeConfig struct {
	Tag        string            `xml:"tag,attr"`
	Title      string            `xml:"title,attr"`
	Stops      []routeConfigStop `xml:"stop"`
	Directions []routeConfigDir  `xml:"direction"`
}

type routeConfigStop struct {
	Tag   string  `xml:"tag,attr"`
	Title string  `xml:"title,attr"`
	Lat   float64 `xml:"lat,attr"`
	Lon   float64 `xml:"lon,attr"`
}

type routeConfigDir struct {
	Tag      string `xml:"tag,attr"`
	Title    string `xml:"title,attr"`
	UseForUI bool   `xml:"useForUI,attr"`
	Stops    []struct {
		Tag string `xml:"tag,attr"`
	} `xml:"stop"`
}

// RouteConfigParser reads the XML feed's routeConfig document for one route.
type RouteConfigParser struct{}

func NewRouteConfigParser() RouteConfigParser {
	return RouteConfigParser{}
}

func (RouteConfigParser) Name() string {
	return "route_config"
}

func (p RouteConfigParser) Parse(r io.Reader) Result[RouteDetails] {
	var doc routeConfigDoc
	if failed := decodeFeed[RouteDetails](p.Name(), r, &doc, func() []feedError { return doc.Errors }); failed != nil {
		return *failed
	}
	if len(doc.Routes) == 0 {
		return Failed[RouteDetails](OutcomeParseError, &ParserError{
			Message:   fmt.Sprintf("%s: no route element", p.Name()),
			Retryable: false,
			Cause:     ErrCauseMalformed,
		})
	}

	route := doc.Routes[0]
	details := RouteDetails{
		Tag:        route.Tag,
		Title:      route.Title,
		Stops:      make([]Stop, 0, len(route.Stops)),
		Directions: make([]Direction, 0, len(route.Directions)),
	}
	for _, s := range route.Stops {
		if strings.TrimSpace(s.Tag) == "" {
			continue
		}
		details.Stops = append(details.Stops, Stop{
			Tag:       s.Tag,
			Title:     s.Title,
			Latitude:  s.Lat,
			Longitude: s.Lon,
		})
	}
	// a repeated direction tag replaces the earlier one in place
	directionAt := make(map[string]int, len(route.Directions))
	for _, d := range route.Directions {
		if strings.TrimSpace(d.Tag) == "" {
			continue
		}
		dir := Direction{
			Tag:      d.Tag,
			Title:    d.Title,
			UseForUI: d.UseForUI,
			StopTags: make([]string, 0, len(d.Stops)),
		}
		for _, s := range d.Stops {
			if s.Tag != "" {
				dir.StopTags = append(dir.StopTags, s.Tag)
			}
		}
		if i, seen := directionAt[dir.Tag]; seen {
			details.Directions[i] = dir
			continue
		}
		directionAt[dir.Tag] = len(details.Directions)
		details.Directions = append(details.Directions, dir)
	}
	return Success(details)
}
