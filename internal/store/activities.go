package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/info3g/hikstar-celery/internal/database"
)

// ListActivities returns every activity ordered by id
func (s *Store) ListActivities(ctx context.Context) ([]database.Activity, error) {
	var activities []database.Activity
	if err := s.db.WithContext(ctx).Order("id").Find(&activities).Error; err != nil {
		return nil, translateError(err)
	}
	return activities, nil
}

// SaveActivity creates (id == 0) or updates an activity. On update every trail
// using it is recomputed in the same transaction; the returned count says how
// many trail activities changed.
func (s *Store) SaveActivity(ctx context.Context, id int64, in *ActivityInput) (*database.Activity, int, error) {
	if err := in.Validate(); err != nil {
		return nil, 0, err
	}

	var activity database.Activity
	var recomputed int

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if id != 0 {
			if err := lockParent(tx, &activity, "activity", id); err != nil {
				return err
			}
		}

		activity.Name = in.Name
		activity.FlatPace = in.FlatPace
		activity.AscentPace = in.AscentPace
		activity.DescentPace = in.DescentPace
		activity.Distance1, activity.Distance2, activity.Distance3, activity.Distance4 = in.Distance[0], in.Distance[1], in.Distance[2], in.Distance[3]
		activity.Dev1, activity.Dev2, activity.Dev3, activity.Dev4 = in.Dev[0], in.Dev[1], in.Dev[2], in.Dev[3]

		if err := tx.Save(&activity).Error; err != nil {
			return fmt.Errorf("saving activity: %w", err)
		}

		if id == 0 {
			return nil
		}
		var err error
		recomputed, err = recomputeActivity(ctx, tx, activity.ID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Infof("saved activity %d, %d trail activit(ies) recomputed", activity.ID, recomputed)
	return &activity, recomputed, nil
}
