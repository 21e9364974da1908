package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/pkg/fileutil"
)

/*
Responsibilities
- Cache routes, directions and stops locally
- Answer the read queries behind the query surface
- Run per-route refreshes as one atomic unit of work

Predictions are never stored.
*/

type Store interface {
	HasRoutes(ctx context.Context) (bool, error)
	// GetRoute reports false when no route has the tag.
	GetRoute(ctx context.Context, tag string) (Route, bool, error)
	SetRoutes(ctx context.Context, routes map[string]Route) error
	ListRoutes(ctx context.Context) ([]Route, error)
	DirectionsUpdatedMs(ctx context.Context, routeID int64) (int64, error)
	ListDirections(ctx context.Context, routeID int64) ([]Direction, error)
	ListStops(ctx context.Context, routeID int64, directionTag string) ([]OrderedStop, error)
	RoutesServingStop(ctx context.Context, stopTag string) ([]string, error)
	DirectionTitles(ctx context.Context, tags []string) (map[string]string, error)
	// Update runs fn in one write transaction. Any error from fn rolls the
	// transaction back and is returned unchanged.
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the write side of a route refresh. Reads inside a Tx observe its
// own writes.
type Tx interface {
	DirectionsUpdatedMs(routeID int64) (int64, error)
	AddStop(stop Stop) error
	// SetDirections discards the route's directions and their stop lists,
	// then inserts dirs.
	SetDirections(routeID int64, dirs []Direction) error
	SetDirectionsUpdatedMs(routeID int64, ms int64) error
}

// GORMStore implements Store on SQLite through GORM.
type GORMStore struct {
	db           *gorm.DB
	config       *Config
	metadataSink metadata.MetadataSink

	// SQLite allows one writer; taking writes in turn here keeps WAL
	// snapshot upgrades from failing with SQLITE_BUSY.
	writeMu sync.Mutex
}

// New opens the database and migrates the schema.
func New(config *Config, metadataSink metadata.MetadataSink) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if err := fileutil.EnsureParentDir(config.Path); err != nil {
		return nil, &StorageError{
			Message:   fmt.Sprintf("failed to create database directory: %v", err),
			Retryable: false,
			Cause:     ErrCauseOpenFailure,
		}
	}

	db, err := gorm.Open(sqlite.Open(config.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, &StorageError{
			Message:   fmt.Sprintf("failed to connect to database: %v", err),
			Retryable: false,
			Cause:     ErrCauseOpenFailure,
		}
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, &StorageError{
			Message:   fmt.Sprintf("failed to run database migration: %v", err),
			Retryable: false,
			Cause:     ErrCauseOpenFailure,
		}
	}

	return &GORMStore{
		db:           db,
		config:       config,
		metadataSink: metadataSink,
	}, nil
}

// DB returns the underlying GORM database connection.
// This is useful for advanced queries or testing.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GORMStore) HasRoutes(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Route{}).Count(&count).Error; err != nil {
		return false, s.queryFailed("GORMStore.HasRoutes", err)
	}
	return count > 0, nil
}

func (s *GORMStore) GetRoute(ctx context.Context, tag string) (Route, bool, error) {
	var route Route
	err := s.db.WithContext(ctx).Where("tag = ?", tag).First(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Route{}, false, nil
	}
	if err != nil {
		return Route{}, false, s.queryFailed("GORMStore.GetRoute", err,
			metadata.NewAttr(metadata.AttrRouteTag, tag))
	}
	return route, true, nil
}

// SetRoutes persists routes by tag. A route already stored keeps its ID and
// refresh timestamp; its title and order are overwritten.
func (s *GORMStore) SetRoutes(ctx context.Context, routes map[string]Route) error {
	if len(routes) == 0 {
		return nil
	}

	rows := make([]Route, 0, len(routes))
	for tag, route := range routes {
		route.ID = 0
		route.Tag = tag
		rows = append(rows, route)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].UpstreamIndex < rows[j].UpstreamIndex
	})

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tag"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "upstream_index"}),
	}).Create(&rows).Error
	if err != nil {
		return s.writeFailed("GORMStore.SetRoutes", err)
	}
	return nil
}

func (s *GORMStore) ListRoutes(ctx context.Context) ([]Route, error) {
	routes := []Route{}
	if err := s.db.WithContext(ctx).Order("upstream_index").Find(&routes).Error; err != nil {
		return nil, s.queryFailed("GORMStore.ListRoutes", err)
	}
	return routes, nil
}

func (s *GORMStore) DirectionsUpdatedMs(ctx context.Context, routeID int64) (int64, error) {
	ms, err := directionsUpdatedMs(s.db.WithContext(ctx), routeID)
	if err != nil {
		return 0, s.queryFailed("GORMStore.DirectionsUpdatedMs", err)
	}
	return ms, nil
}

// ListDirections returns the route's UI directions ordered by tag.
func (s *GORMStore) ListDirections(ctx context.Context, routeID int64) ([]Direction, error) {
	directions := []Direction{}
	err := s.db.WithContext(ctx).
		Where("route_id = ? AND use_for_ui = ?", routeID, true).
		Order("tag").
		Find(&directions).Error
	if err != nil {
		return nil, s.queryFailed("GORMStore.ListDirections", err)
	}
	return directions, nil
}

// ListStops returns the stops of one direction in travel order.
func (s *GORMStore) ListStops(ctx context.Context, routeID int64, directionTag string) ([]OrderedStop, error) {
	stops := []OrderedStop{}
	err := s.db.WithContext(ctx).
		Table("direction_stops").
		Select("stops.tag AS tag, stops.title AS title, stops.latitude AS latitude, "+
			"stops.longitude AS longitude, direction_stops.stop_order AS stop_order").
		Joins("JOIN directions ON directions.id = direction_stops.direction_id").
		Joins("JOIN stops ON stops.tag = direction_stops.stop_tag").
		Where("directions.route_id = ? AND directions.tag = ?", routeID, directionTag).
		Order("direction_stops.stop_order").
		Scan(&stops).Error
	if err != nil {
		return nil, s.queryFailed("GORMStore.ListStops", err)
	}
	return stops, nil
}

// RoutesServingStop returns the tags of routes with a direction through
// stopTag, in upstream order.
func (s *GORMStore) RoutesServingStop(ctx context.Context, stopTag string) ([]string, error) {
	tags := []string{}
	err := s.db.WithContext(ctx).
		Model(&Route{}).
		Joins("JOIN directions ON directions.route_id = routes.id").
		Joins("JOIN direction_stops ON direction_stops.direction_id = directions.id").
		Where("direction_stops.stop_tag = ?", stopTag).
		Group("routes.id").
		Order("routes.upstream_index").
		Pluck("routes.tag", &tags).Error
	if err != nil {
		return nil, s.queryFailed("GORMStore.RoutesServingStop", err,
			metadata.NewAttr(metadata.AttrStopTag, stopTag))
	}
	return tags, nil
}

// DirectionTitles resolves direction tags to titles in one query. Tags with
// no stored direction are absent from the result.
func (s *GORMStore) DirectionTitles(ctx context.Context, tags []string) (map[string]string, error) {
	titles := make(map[string]string, len(tags))
	if len(tags) == 0 {
		return titles, nil
	}

	var directions []Direction
	err := s.db.WithContext(ctx).
		Select("tag", "title").
		Where("tag IN ?", tags).
		Order("id").
		Find(&directions).Error
	if err != nil {
		return nil, s.queryFailed("GORMStore.DirectionTitles", err)
	}
	for _, d := range directions {
		if _, seen := titles[d.Tag]; !seen {
			titles[d.Tag] = d.Title
		}
	}
	return titles, nil
}

func (s *GORMStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		fnErr = fn(&gormTx{db: db})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return s.writeFailed("GORMStore.Update", err)
	}
	return nil
}

func (s *GORMStore) queryFailed(action string, err error, attrs ...metadata.Attribute) *StorageError {
	return s.record(action, &StorageError{
		Message:   err.Error(),
		Retryable: true,
		Cause:     ErrCauseQueryFailure,
	}, attrs)
}

func (s *GORMStore) writeFailed(action string, err error, attrs ...metadata.Attribute) *StorageError {
	return s.record(action, &StorageError{
		Message:   err.Error(),
		Retryable: true,
		Cause:     ErrCauseWriteFailure,
	}, attrs)
}

func (s *GORMStore) record(action string, storageErr *StorageError, attrs []metadata.Attribute) *StorageError {
	if s.metadataSink != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			action,
			mapStorageErrorToMetadataCause(storageErr),
			storageErr.Error(),
			attrs,
		)
	}
	return storageErr
}

func directionsUpdatedMs(db *gorm.DB, routeID int64) (int64, error) {
	var route Route
	err := db.Select("id", "last_direction_update_ms").Where("id = ?", routeID).Take(&route).Error
	if err != nil {
		return 0, err
	}
	return route.DirectionsUpdatedMs, nil
}
