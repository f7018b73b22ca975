package database

import (
	"time"

	"gorm.io/datatypes"
)

// Activity is a way of travelling a trail (hiking, snowshoeing...) and the pace
// parameters used to estimate duration and difficulty
type Activity struct {
	ID          int64   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name        string  `gorm:"column:name;not null;unique" json:"name"`
	FlatPace    float64 `gorm:"column:flat_pace" json:"flat_pace"`
	AscentPace  float64 `gorm:"column:ascent_pace" json:"ascent_pace"`
	DescentPace float64 `gorm:"column:descent_pace" json:"descent_pace"`
	Distance1   float64 `gorm:"column:distance1" json:"distance1"`
	Distance2   float64 `gorm:"column:distance2" json:"distance2"`
	Distance3   float64 `gorm:"column:distance3" json:"distance3"`
	Distance4   float64 `gorm:"column:distance4" json:"distance4"`
	Dev1        float64 `gorm:"column:dev1" json:"dev1"`
	Dev2        float64 `gorm:"column:dev2" json:"dev2"`
	Dev3        float64 `gorm:"column:dev3" json:"dev3"`
	Dev4        float64 `gorm:"column:dev4" json:"dev4"`
}

// TableName specifies the table name for Activity
func (Activity) TableName() string {
	return "activities"
}

// Location is a park or point of interest owning trails, images and contacts
type Location struct {
	ID          int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name        string `gorm:"column:name;not null" json:"name"`
	Description string `gorm:"column:description" json:"description"`
}

func (Location) TableName() string {
	return "locations"
}

// Contact is a phone number, email or URL attached to a location
type Contact struct {
	ID         int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	LocationID int64  `gorm:"column:location_id;not null" json:"location_id"`
	Type       string `gorm:"column:type;not null" json:"type"`
	Value      string `gorm:"column:value;not null" json:"value"`
}

func (Contact) TableName() string {
	return "contacts"
}

// LocationImage references an image stored elsewhere
type LocationImage struct {
	ID         int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	LocationID int64  `gorm:"column:location_id;not null" json:"location_id"`
	ImageType  string `gorm:"column:image_type;not null" json:"image_type"`
	Image      string `gorm:"column:image" json:"image"`
	Credit     string `gorm:"column:credit" json:"credit"`
}

func (LocationImage) TableName() string {
	return "location_images"
}

// Trail is a named route composed of trail sections
type Trail struct {
	ID             int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Slug           string         `gorm:"column:slug" json:"slug"`
	Description    string         `gorm:"column:description" json:"description"`
	TotalLength    *float64       `gorm:"column:total_length" json:"total_length"`
	HeightPositive *float64       `gorm:"column:height_positive" json:"height_positive"`
	HeightNegative *float64       `gorm:"column:height_negative" json:"height_negative"`
	MinElevation   *float64       `gorm:"column:min_elevation" json:"min_elevation"`
	MaxElevation   *float64       `gorm:"column:max_elevation" json:"max_elevation"`
	PathType       *int           `gorm:"column:path_type" json:"path_type"`
	LocationID     *int64         `gorm:"column:location_id" json:"location_id"`
	OpeningDates   datatypes.JSON `gorm:"column:opening_dates" json:"opening_dates"`
	Geometry       datatypes.JSON `gorm:"column:geometry" json:"geometry"`
	LastModified   time.Time      `gorm:"column:last_modified;autoUpdateTime" json:"last_modified"`
}

func (Trail) TableName() string {
	return "trails"
}

// TrailActivity holds the computed metrics of one activity on one trail
type TrailActivity struct {
	ID         int64 `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TrailID    int64 `gorm:"column:trail_id;not null" json:"trail_id"`
	ActivityID int64 `gorm:"column:activity_id;not null" json:"activity_id"`
	// Duration in minutes, always a multiple of 15
	Duration   *int `gorm:"column:duration" json:"duration"`
	Difficulty *int `gorm:"column:difficulty" json:"difficulty"`
}

func (TrailActivity) TableName() string {
	return "trail_activities"
}

type TrailImage struct {
	ID        int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TrailID   int64  `gorm:"column:trail_id;not null" json:"trail_id"`
	ImageType string `gorm:"column:image_type;not null" json:"image_type"`
	Image     string `gorm:"column:image" json:"image"`
	Credit    string `gorm:"column:credit" json:"credit"`
}

func (TrailImage) TableName() string {
	return "trail_images"
}

// TrailStep is a waypoint shown along a trail
type TrailStep struct {
	ID      int64   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TrailID int64   `gorm:"column:trail_id;not null" json:"trail_id"`
	Lat     float64 `gorm:"column:lat" json:"lat"`
	Lng     float64 `gorm:"column:lng" json:"lng"`
	Order   int     `gorm:"column:step_order" json:"order"`
}

func (TrailStep) TableName() string {
	return "trail_steps"
}

// TrailSection is one segment of the trail network. Geometry is the 2D
// projection as a JSON list of [x, y] points.
type TrailSection struct {
	ID             int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name           string         `gorm:"column:name" json:"name"`
	Comments       string         `gorm:"column:comments" json:"comments"`
	Departure      string         `gorm:"column:departure" json:"departure"`
	Arrival        string         `gorm:"column:arrival" json:"arrival"`
	Valid          bool           `gorm:"column:valid" json:"valid"`
	Visible        bool           `gorm:"column:visible" json:"visible"`
	Geometry       datatypes.JSON `gorm:"column:geometry" json:"geometry"`
	Length         *float64       `gorm:"column:length" json:"length"`
	Ascent         *float64       `gorm:"column:ascent" json:"ascent"`
	Descent        *float64       `gorm:"column:descent" json:"descent"`
	ActivitiesUUID string         `gorm:"column:activities_uuid" json:"activities_uuid"`
	LastModified   time.Time      `gorm:"column:last_modified;autoUpdateTime" json:"last_modified"`
}

func (TrailSection) TableName() string {
	return "trail_sections"
}

// TrailSectionActivity marks an activity as allowed on a section
type TrailSectionActivity struct {
	ID             int64 `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TrailSectionID int64 `gorm:"column:trail_section_id;not null" json:"trail_section_id"`
	ActivityID     int64 `gorm:"column:activity_id;not null" json:"activity_id"`
}

func (TrailSectionActivity) TableName() string {
	return "trail_section_activities"
}

// EventTrailSection places a section inside a trail, between two positions along it
type EventTrailSection struct {
	ID             int64   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TrailID        int64   `gorm:"column:trail_id;not null" json:"trail_id"`
	TrailSectionID int64   `gorm:"column:trail_section_id;not null" json:"trail_section_id"`
	StartPosition  float64 `gorm:"column:start_position" json:"start_position"`
	EndPosition    float64 `gorm:"column:end_position" json:"end_position"`
	Order          int     `gorm:"column:order_index" json:"order"`
}

func (EventTrailSection) TableName() string {
	return "event_trail_sections"
}
