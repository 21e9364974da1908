package storage

// Route is one line of the agency. ID is 0 until the row is persisted.
// DirectionsUpdatedMs is the epoch-ms time of the last successful
// direction/stop refresh, 0 if never.
type Route struct {
	ID                  int64  `gorm:"primaryKey;autoIncrement"`
	UpstreamIndex       int    `gorm:"not null;index"`
	Tag                 string `gorm:"uniqueIndex;not null;size:64"`
	Title               string `gorm:"not null;size:255"`
	DirectionsUpdatedMs int64  `gorm:"column:last_direction_update_ms;not null;default:0"`
}

func (Route) TableName() string {
	return "routes"
}

// Direction belongs to one route. Stops is only populated when writing.
type Direction struct {
	ID       int64           `gorm:"primaryKey;autoIncrement"`
	RouteID  int64           `gorm:"not null;uniqueIndex:idx_directions_route_tag"`
	Tag      string          `gorm:"not null;size:64;uniqueIndex:idx_directions_route_tag;index"`
	Title    string          `gorm:"size:255"`
	UseForUI bool            `gorm:"not null;default:false"`
	Stops    []DirectionStop `gorm:"foreignKey:DirectionID;constraint:OnDelete:CASCADE"`
}

func (Direction) TableName() string {
	return "directions"
}

// Stop is keyed by its upstream tag and shared between routes.
type Stop struct {
	Tag       string `gorm:"primaryKey;size:64"`
	Title     string `gorm:"size:255"`
	Latitude  float64
	Longitude float64
}

func (Stop) TableName() string {
	return "stops"
}

// DirectionStop places a stop at a position along a direction.
type DirectionStop struct {
	DirectionID int64  `gorm:"primaryKey;autoIncrement:false"`
	StopOrder   int    `gorm:"primaryKey;autoIncrement:false"`
	StopTag     string `gorm:"not null;size:64;index"`
}

func (DirectionStop) TableName() string {
	return "direction_stops"
}

// OrderedStop is a stop as seen from one direction.
type OrderedStop struct {
	Tag       string
	Title     string
	Latitude  float64
	Longitude float64
	StopOrder int
}

func allModels() []any {
	return []any{
		&Route{},
		&Direction{},
		&Stop{},
		&DirectionStop{},
	}
}
