package provider

import "errors"

// ErrUnsupportedOperation is returned for any attempt to write through the
// query surface.
var ErrUnsupportedOperation = errors.New("unsupported operation")

type RouteRow struct {
	ID            int64  `json:"id"`
	Tag           string `json:"tag"`
	Title         string `json:"title"`
	UpstreamIndex int    `json:"upstream_index"`
}

type DirectionRow struct {
	ID    int64  `json:"id"`
	Tag   string `json:"tag"`
	Title string `json:"title"`
}

type StopRow struct {
	Tag       string  `json:"tag"`
	Title     string  `json:"title"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	StopOrder int     `json:"stop_order"`
}

// PredictionRow is one forecast arrival. ID is the row's position in the
// time-ordered result.
type PredictionRow struct {
	ID             int    `json:"id"`
	RouteTag       string `json:"route_tag"`
	DirectionTag   string `json:"direction_tag"`
	DirectionTitle string `json:"direction_title"`
	StopTag        string `json:"stop_tag"`
	PredictedTime  int64  `json:"predicted_time"`
}
