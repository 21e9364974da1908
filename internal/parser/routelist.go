package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

/*
RouteListParser reads the HTML routes page. Each route is a table row:

	<tr>
	  <td><input type="checkbox" id="J" value="checkbox" ...></td>
	  <td> J-Church </td>
	</tr>

A row without a checkbox id or without a non-empty title cell after it is
skipped and does not take an index. A repeated tag keeps the last row.
*/
type RouteListParser struct{}

func NewRouteListParser() RouteListParser {
	return RouteListParser{}
}

func (RouteListParser) Name() string {
	return "route_list"
}

func (p RouteListParser) Parse(r io.Reader) Result[map[string]Route] {
	rr := &recordingReader{r: r}
	doc, err := goquery.NewDocumentFromReader(rr)
	if rr.err != nil {
		return Failed[map[string]Route](OutcomeIOError, &ParserError{
			Message:   fmt.Sprintf("%s: %v", p.Name(), rr.err),
			Retryable: true,
			Cause:     ErrCauseReadFailure,
		})
	}
	if err != nil {
		return Failed[map[string]Route](OutcomeParseError, &ParserError{
			Message:   fmt.Sprintf("%s: %v", p.Name(), err),
			Retryable: false,
			Cause:     ErrCauseMalformed,
		})
	}

	routes := make(map[string]Route)
	index := 0
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// rows wrapping a nested table are containers, not route blocks
		if row.Find("tr").Length() > 0 {
			return
		}
		tag, title, ok := routeBlock(row)
		if !ok {
			return
		}
		routes[tag] = Route{
			Tag:           tag,
			Title:         title,
			UpstreamIndex: index,
		}
		index++
	})

	return Success(routes)
}

func routeBlock(row *goquery.Selection) (tag string, title string, ok bool) {
	input := row.Find(`input[type="checkbox"]`).First()
	if input.Length() == 0 {
		return "", "", false
	}
	tag, _ = input.Attr("id")
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", "", false
	}

	cell := input.Closest("td")
	if cell.Length() == 0 {
		return "", "", false
	}
	title = strings.TrimSpace(cell.NextAllFiltered("td").First().Text())
	if title == "" {
		return "", "", false
	}
	return tag, title, true
}
