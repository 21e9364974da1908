package provider_test

import (
	"context"

	"github.com/rohmanhakim/nextmuni/internal/coordinator"
	"github.com/rohmanhakim/nextmuni/internal/parser"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/rohmanhakim/nextmuni/pkg/failure"
	"github.com/stretchr/testify/mock"
)

// fetcherMock is a testify mock for provider.Fetcher
type fetcherMock struct {
	mock.Mock
}

func (f *fetcherMock) EnsureRoutes(ctx context.Context, forceCookieRefresh bool) {
	f.Called(ctx, forceCookieRefresh)
}

func (f *fetcherMock) RefreshRouteIfNeeded(ctx context.Context, route storage.Route) coordinator.Tier {
	args := f.Called(ctx, route)
	return args.Get(0).(coordinator.Tier)
}

func (f *fetcherMock) FetchPredictions(
	ctx context.Context,
	stopTag string,
	routeTags []string,
) ([]parser.Prediction, failure.ClassifiedError) {
	args := f.Called(ctx, stopTag, routeTags)
	var predictions []parser.Prediction
	if args.Get(0) != nil {
		predictions = args.Get(0).([]parser.Prediction)
	}
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return predictions, err
}

// readerMock is a testify mock for provider.Reader
type readerMock struct {
	mock.Mock
}

func (r *readerMock) GetRoute(ctx context.Context, tag string) (storage.Route, bool, error) {
	args := r.Called(ctx, tag)
	return args.Get(0).(storage.Route), args.Bool(1), args.Error(2)
}

func (r *readerMock) ListRoutes(ctx context.Context) ([]storage.Route, error) {
	args := r.Called(ctx)
	return args.Get(0).([]storage.Route), args.Error(1)
}

func (r *readerMock) ListDirections(ctx context.Context, routeID int64) ([]storage.Direction, error) {
	args := r.Called(ctx, routeID)
	return args.Get(0).([]storage.Direction), args.Error(1)
}

func (r *readerMock) ListStops(ctx context.Context, routeID int64, directionTag string) ([]storage.OrderedStop, error) {
	args := r.Called(ctx, routeID, directionTag)
	return args.Get(0).([]storage.OrderedStop), args.Error(1)
}

func (r *readerMock) RoutesServingStop(ctx context.Context, stopTag string) ([]string, error) {
	args := r.Called(ctx, stopTag)
	return args.Get(0).([]string), args.Error(1)
}

func (r *readerMock) DirectionTitles(ctx context.Context, tags []string) (map[string]string, error) {
	args := r.Called(ctx, tags)
	var titles map[string]string
	if args.Get(0) != nil {
		titles = args.Get(0).(map[string]string)
	}
	return titles, args.Error(1)
}
