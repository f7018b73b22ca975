package store

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/info3g/hikstar-celery/internal/database"
)

// SaveResult reports the saved parent and what happened to each child collection
type SaveResult struct {
	ID      int64                 `json:"id"`
	Changes map[string]*ChangeLog `json:"changes"`
}

// SaveTrail creates (id == 0) or updates a trail, reconciles its activities,
// images, steps and events, then recomputes its activity metrics, all in one
// transaction. A geometry refresh is scheduled once the transaction commits.
func (s *Store) SaveTrail(ctx context.Context, id int64, in *TrailInput) (*SaveResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	result := &SaveResult{Changes: make(map[string]*ChangeLog)}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var trail database.Trail
		if id != 0 {
			if err := lockParent(tx, &trail, "trail", id); err != nil {
				return err
			}
		}

		trail.Name = in.Name
		trail.Slug = in.Slug
		trail.Description = in.Description
		trail.TotalLength = in.TotalLength
		trail.HeightPositive = in.HeightPositive
		trail.HeightNegative = in.HeightNegative
		trail.MinElevation = in.MinElevation
		trail.MaxElevation = in.MaxElevation
		trail.PathType = in.PathType
		trail.LocationID = in.LocationID
		if len(in.OpeningDates) > 0 {
			trail.OpeningDates = datatypes.JSON(in.OpeningDates)
		}

		if err := tx.Save(&trail).Error; err != nil {
			return fmt.Errorf("saving trail: %w", err)
		}
		result.ID = trail.ID

		var err error
		if result.Changes[childTrailActivity], err = reconcileChildren(ctx, tx, "trail_id", trail.ID,
			in.Activities, trailActivityCaps(tx, trail.ID), trailActivityOptions); err != nil {
			return err
		}
		if result.Changes[childEventTrailSection], err = reconcileChildren(ctx, tx, "trail_id", trail.ID,
			in.Events, eventCaps(tx, trail.ID), eventOptions); err != nil {
			return err
		}
		if result.Changes[childTrailStep], err = reconcileChildren(ctx, tx, "trail_id", trail.ID,
			in.Steps, trailStepCaps(tx, trail.ID), trailStepOptions); err != nil {
			return err
		}
		if result.Changes[childTrailImage], err = reconcileChildren(ctx, tx, "trail_id", trail.ID,
			in.Images.Filter(hasImageType), trailImageCaps(tx, trail.ID), trailImageOptions); err != nil {
			return err
		}

		_, err = recomputeTrail(ctx, tx, &trail)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("saved trail %d", result.ID)
	if s.geometry != nil {
		s.geometry.Schedule(result.ID)
	}
	return result, nil
}

// TrailDetail is a trail with its child collections. Child ids are included
// so a client can reference them in the next save.
type TrailDetail struct {
	database.Trail
	Activities []database.TrailActivity     `json:"activities"`
	Images     []database.TrailImage        `json:"images"`
	Steps      []database.TrailStep         `json:"steps"`
	Events     []database.EventTrailSection `json:"events"`
}

// GetTrail returns a trail with its activities, images, steps and events
func (s *Store) GetTrail(ctx context.Context, id int64) (*TrailDetail, error) {
	db := s.db.WithContext(ctx)

	var out TrailDetail
	if err := db.First(&out.Trail, id).Error; err != nil {
		return nil, translateError(fmt.Errorf("trail %d: %w", id, err))
	}
	if err := db.Where("trail_id = ?", id).Order("id").Find(&out.Activities).Error; err != nil {
		return nil, translateError(err)
	}
	if err := db.Where("trail_id = ?", id).Order("id").Find(&out.Images).Error; err != nil {
		return nil, translateError(err)
	}
	if err := db.Where("trail_id = ?", id).Order("step_order, id").Find(&out.Steps).Error; err != nil {
		return nil, translateError(err)
	}
	if err := db.Where("trail_id = ?", id).Order("order_index, id").Find(&out.Events).Error; err != nil {
		return nil, translateError(err)
	}
	return &out, nil
}

// DeleteTrail removes a trail; its child rows go with it
func (s *Store) DeleteTrail(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&database.Trail{}, id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("trail %d: %w", id, ErrNotFound)
	}
	return nil
}
