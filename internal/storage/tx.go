package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) DirectionsUpdatedMs(routeID int64) (int64, error) {
	ms, err := directionsUpdatedMs(t.db, routeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, &StorageError{
			Message:   fmt.Sprintf("route %d does not exist", routeID),
			Retryable: false,
			Cause:     ErrCauseInvalidInput,
		}
	}
	if err != nil {
		return 0, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailure}
	}
	return ms, nil
}

// AddStop inserts the stop or refreshes its title and position.
func (t *gormTx) AddStop(stop Stop) error {
	if stop.Tag == "" {
		return &StorageError{Message: "stop tag is empty", Retryable: false, Cause: ErrCauseInvalidInput}
	}
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tag"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "latitude", "longitude"}),
	}).Create(&stop).Error
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}
	return nil
}

func (t *gormTx) SetDirections(routeID int64, dirs []Direction) error {
	oldDirections := t.db.Model(&Direction{}).Select("id").Where("route_id = ?", routeID)
	if err := t.db.Where("direction_id IN (?)", oldDirections).Delete(&DirectionStop{}).Error; err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}
	if err := t.db.Where("route_id = ?", routeID).Delete(&Direction{}).Error; err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}
	if len(dirs) == 0 {
		return nil
	}

	rows := make([]Direction, len(dirs))
	for i, d := range dirs {
		d.ID = 0
		d.RouteID = routeID
		stops := make([]DirectionStop, len(d.Stops))
		for j, st := range d.Stops {
			stops[j] = DirectionStop{StopOrder: st.StopOrder, StopTag: st.StopTag}
		}
		d.Stops = stops
		rows[i] = d
	}
	if err := t.db.Create(&rows).Error; err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}
	return nil
}

func (t *gormTx) SetDirectionsUpdatedMs(routeID int64, ms int64) error {
	res := t.db.Model(&Route{}).Where("id = ?", routeID).Update("last_direction_update_ms", ms)
	if res.Error != nil {
		return &StorageError{Message: res.Error.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}
	if res.RowsAffected == 0 {
		return &StorageError{
			Message:   fmt.Sprintf("route %d does not exist", routeID),
			Retryable: false,
			Cause:     ErrCauseInvalidInput,
		}
	}
	return nil
}
