package store

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/info3g/hikstar-celery/internal/metrics"
	"github.com/info3g/hikstar-celery/internal/reconcile"
)

var validate = validator.New()

// TrailInput is the admin payload for a trail and its child collections
type TrailInput struct {
	Name           string          `json:"name" validate:"required"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description"`
	TotalLength    *float64        `json:"total_length" validate:"omitempty,gte=0"`
	HeightPositive *float64        `json:"height_positive" validate:"omitempty,gte=0"`
	HeightNegative *float64        `json:"height_negative"`
	MinElevation   *float64        `json:"min_elevation"`
	MaxElevation   *float64        `json:"max_elevation"`
	PathType       *int            `json:"path_type" validate:"omitempty,min=1"`
	LocationID     *int64          `json:"location"`
	OpeningDates   json.RawMessage `json:"opening_dates"`

	Activities reconcile.Incoming[TrailActivityItem] `json:"activities"`
	Images     reconcile.Incoming[ImageItem]         `json:"images"`
	Steps      reconcile.Incoming[StepItem]          `json:"steps"`
	Events     reconcile.Incoming[EventItem]         `json:"events"`
}

// TrailActivityItem links an activity to a trail. A referenced item only needs
// its id.
type TrailActivityItem struct {
	ID       *int64 `json:"id,omitempty"`
	Activity int64  `json:"activity" validate:"required_without=ID"`
}

// ImageItem describes an image of a trail or location. Items without an
// image_type are ignored.
type ImageItem struct {
	ID        *int64  `json:"id,omitempty"`
	ImageType *string `json:"image_type" validate:"required,min=1"`
	Image     string  `json:"image"`
	Credit    string  `json:"credit"`
}

func hasImageType(it ImageItem) bool {
	return it.ImageType != nil
}

type StepItem struct {
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng   float64 `json:"lng" validate:"gte=-180,lte=180"`
	Order int     `json:"order"`
}

// EventItem places a trail section inside a trail
type EventItem struct {
	TrailSection  int64   `json:"trailsection" validate:"required"`
	StartPosition float64 `json:"start_position" validate:"gte=0,lte=1"`
	EndPosition   float64 `json:"end_position" validate:"gte=0,lte=1"`
	Order         int     `json:"order"`
}

// TrailSectionInput is the admin payload for a trail section. Geometry is the
// 2D projection as [x, y] pairs and is required.
type TrailSectionInput struct {
	Name      string       `json:"name" validate:"required"`
	Comments  string       `json:"comments"`
	Departure string       `json:"departure"`
	Arrival   string       `json:"arrival"`
	Valid     *bool        `json:"valid"`
	Visible   *bool        `json:"visible"`
	Geometry  [][2]float64 `json:"geometry" validate:"required"`
	Length    *float64     `json:"length" validate:"omitempty,gte=0"`
	Ascent    *float64     `json:"ascent" validate:"omitempty,gte=0"`
	Descent   *float64     `json:"descent"`

	Activities reconcile.Incoming[SectionActivityItem] `json:"activities"`
}

type SectionActivityItem struct {
	ID       *int64 `json:"id,omitempty"`
	Activity int64  `json:"activity" validate:"required_without=ID"`
}

// BulkSectionActivities replaces the activities of many sections at once
type BulkSectionActivities struct {
	SectionIDs  []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	ActivityIDs []int64 `json:"activity_ids" validate:"dive,gt=0"`
}

// LocationInput is the admin payload for a location
type LocationInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`

	Images   reconcile.Incoming[ImageItem]   `json:"images"`
	Contacts reconcile.Incoming[ContactItem] `json:"contacts"`
}

type ContactItem struct {
	ID    *int64 `json:"id,omitempty"`
	Type  string `json:"type" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// ActivityInput holds the pace parameters of an activity
type ActivityInput struct {
	Name        string                 `json:"name" validate:"required"`
	FlatPace    float64                `json:"flat_pace" validate:"gte=0"`
	AscentPace  float64                `json:"ascent_pace" validate:"gte=0"`
	DescentPace float64                `json:"descent_pace" validate:"gte=0"`
	Distance    [metrics.Bands]float64 `json:"distance" validate:"dive,gte=0"`
	Dev         [metrics.Bands]float64 `json:"dev" validate:"dive,gte=0"`
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func validateItems[P any](name string, in reconcile.Incoming[P]) error {
	for i, item := range in.Items() {
		if err := validate.Struct(item); err != nil {
			return invalid(fmt.Errorf("%s[%d]: %w", name, i, err))
		}
	}
	return nil
}

// Validate checks the trail fields and every child item
func (in *TrailInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return invalid(err)
	}
	if len(in.OpeningDates) > 0 && !json.Valid(in.OpeningDates) {
		return invalid(fmt.Errorf("opening_dates is not valid JSON"))
	}
	if err := validateItems("activities", in.Activities); err != nil {
		return err
	}
	if err := validateItems("images", in.Images.Filter(hasImageType)); err != nil {
		return err
	}
	if err := validateItems("steps", in.Steps); err != nil {
		return err
	}
	return validateItems("events", in.Events)
}

func (in *TrailSectionInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return invalid(err)
	}
	return validateItems("activities", in.Activities)
}

func (in *LocationInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return invalid(err)
	}
	if err := validateItems("images", in.Images.Filter(hasImageType)); err != nil {
		return err
	}
	return validateItems("contacts", in.Contacts)
}

func (in *ActivityInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return invalid(err)
	}
	return nil
}

func (in *BulkSectionActivities) Validate() error {
	if err := validate.Struct(in); err != nil {
		return invalid(err)
	}
	return nil
}
