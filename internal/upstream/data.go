package upstream

import (
	"net/http"
	"net/url"
	"time"
)

// Endpoint names the upstream resource a request targets.
type Endpoint string

const (
	EndpointRouteList   Endpoint = "route_list"
	EndpointRouteConfig Endpoint = "route_config"
	EndpointPredictions Endpoint = "predictions"
)

// Request is a fully built upstream GET.
type Request struct {
	endpoint Endpoint
	target   url.URL
}

func NewRequest(endpoint Endpoint, target url.URL) Request {
	return Request{endpoint: endpoint, target: target}
}

func (r Request) Endpoint() Endpoint {
	return r.endpoint
}

func (r Request) URL() url.URL {
	return r.target
}

func (r Request) String() string {
	return r.target.String()
}

type FetchResult struct {
	url     url.URL
	body    []byte
	cookies []*http.Cookie
	meta    ResponseMeta
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

// Cookies returns the cookies the response asked the client to set.
func (f *FetchResult) Cookies() []*http.Cookie {
	return f.cookies
}

func (f *FetchResult) Duration() time.Duration {
	return f.meta.duration
}

type ResponseMeta struct {
	statusCode int
	duration   time.Duration
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	target url.URL,
	body []byte,
	statusCode int,
	cookies []*http.Cookie,
) FetchResult {
	return FetchResult{
		url:     target,
		body:    body,
		cookies: cookies,
		meta: ResponseMeta{
			statusCode: statusCode,
		},
	}
}
