// Package geometry refreshes the stored route shape of a trail once its
// sections have changed. The refresh is treated as an external service: the
// engine only asks for it after a commit and never reads its result.
package geometry

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/info3g/hikstar-celery/internal/database"
)

// Service rebuilds the route shape of one trail
type Service interface {
	Refresh(ctx context.Context, trailID int64) error
}

// FunctionService delegates to a database routine taking the trail id
type FunctionService struct {
	db       *gorm.DB
	function string
}

// NewFunctionService creates a service calling function, which must be a plain
// SQL identifier
func NewFunctionService(db *gorm.DB, function string) *FunctionService {
	return &FunctionService{db: db, function: function}
}

func (s *FunctionService) Refresh(ctx context.Context, trailID int64) error {
	if err := s.db.WithContext(ctx).Exec(fmt.Sprintf("SELECT %s(?)", s.function), trailID).Error; err != nil {
		return fmt.Errorf("%s(%d): %w", s.function, trailID, err)
	}
	return nil
}

// StitchService chains section geometries in event order in process, for
// databases without the routine
type StitchService struct {
	db *gorm.DB
}

func NewStitchService(db *gorm.DB) *StitchService {
	return &StitchService{db: db}
}

func (s *StitchService) Refresh(ctx context.Context, trailID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var events []database.EventTrailSection
		if err := tx.Where("trail_id = ?", trailID).Order("order_index, id").Find(&events).Error; err != nil {
			return fmt.Errorf("loading events of trail %d: %w", trailID, err)
		}

		ids := make([]int64, 0, len(events))
		for _, e := range events {
			ids = append(ids, e.TrailSectionID)
		}

		var sections []database.TrailSection
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&sections).Error; err != nil {
				return fmt.Errorf("loading sections of trail %d: %w", trailID, err)
			}
		}
		byID := make(map[int64]database.TrailSection, len(sections))
		for _, sec := range sections {
			byID[sec.ID] = sec
		}

		points := make([][]float64, 0)
		for _, e := range events {
			sec, ok := byID[e.TrailSectionID]
			if !ok || len(sec.Geometry) == 0 {
				continue
			}
			var coords [][]float64
			if err := json.Unmarshal(sec.Geometry, &coords); err != nil {
				return fmt.Errorf("decoding geometry of section %d: %w", sec.ID, err)
			}
			points = append(points, coords...)
		}

		encoded, err := json.Marshal(points)
		if err != nil {
			return err
		}

		return tx.Model(&database.Trail{}).Where("id = ?", trailID).
			Update("geometry", datatypes.JSON(encoded)).Error
	})
}
