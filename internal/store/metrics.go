package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/metrics"
	"github.com/info3g/hikstar-celery/internal/telemetry"
)

// ActivityMetrics is one activity's computed values on a trail
type ActivityMetrics struct {
	ID              int64  `json:"id"`
	ActivityID      int64  `json:"activity_id"`
	ActivityName    string `json:"activity_name"`
	Duration        *int   `json:"duration"`
	Difficulty      *int   `json:"difficulty"`
	DurationLabel   string `json:"duration_label"`
	DifficultyLabel string `json:"difficulty_label"`
}

// TrailMetrics holds the per-activity values of a trail and their summary
type TrailMetrics struct {
	TrailID    int64             `json:"trail_id"`
	Activities []ActivityMetrics `json:"activities"`
	Summary    metrics.Summary   `json:"summary"`
}

func trailProfile(t *database.Trail) metrics.TrailProfile {
	return metrics.TrailProfile{
		TotalLength:    t.TotalLength,
		HeightPositive: t.HeightPositive,
		HeightNegative: t.HeightNegative,
	}
}

func activityProfile(a *database.Activity) metrics.ActivityProfile {
	return metrics.ActivityProfile{
		FlatPace:    a.FlatPace,
		AscentPace:  a.AscentPace,
		DescentPace: a.DescentPace,
		Distance:    [metrics.Bands]float64{a.Distance1, a.Distance2, a.Distance3, a.Distance4},
		Dev:         [metrics.Bands]float64{a.Dev1, a.Dev2, a.Dev3, a.Dev4},
	}
}

func loadActivities(tx *gorm.DB, ids []int64) (map[int64]database.Activity, error) {
	byID := make(map[int64]database.Activity, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	var activities []database.Activity
	if err := tx.Where("id IN ?", ids).Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("loading activities: %w", err)
	}
	for _, a := range activities {
		byID[a.ID] = a
	}
	return byID, nil
}

// recomputeTrail overwrites duration and difficulty of every activity of trail
func recomputeTrail(ctx context.Context, tx *gorm.DB, trail *database.Trail) (*TrailMetrics, error) {
	tx = tx.WithContext(ctx)

	var rows []database.TrailActivity
	if err := tx.Where("trail_id = ?", trail.ID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading activities of trail %d: %w", trail.ID, err)
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ActivityID)
	}
	activities, err := loadActivities(tx, ids)
	if err != nil {
		return nil, err
	}

	profile := trailProfile(trail)
	out := &TrailMetrics{TrailID: trail.ID, Activities: make([]ActivityMetrics, 0, len(rows))}
	results := make([]metrics.Result, 0, len(rows))

	for _, row := range rows {
		activity, ok := activities[row.ActivityID]
		if !ok {
			return nil, fmt.Errorf("activity %d of trail %d: %w", row.ActivityID, trail.ID, ErrInvalidReference)
		}

		res := metrics.Compute(profile, activityProfile(&activity))
		telemetry.ObserveMetrics(res.Duration != nil && res.Difficulty != nil)

		err := tx.Model(&database.TrailActivity{}).Where("id = ?", row.ID).
			Updates(map[string]interface{}{"duration": res.Duration, "difficulty": res.Difficulty}).Error
		if err != nil {
			return nil, fmt.Errorf("storing metrics of trail activity %d: %w", row.ID, err)
		}

		results = append(results, res)
		out.Activities = append(out.Activities, activityMetrics(row.ID, &activity, res))
	}

	out.Summary = metrics.Summarize(results)
	return out, nil
}

func activityMetrics(id int64, activity *database.Activity, res metrics.Result) ActivityMetrics {
	m := ActivityMetrics{
		ID:            id,
		ActivityID:    activity.ID,
		ActivityName:  activity.Name,
		Duration:      res.Duration,
		Difficulty:    res.Difficulty,
		DurationLabel: metrics.FormatDuration(res.Duration),
	}
	if res.Difficulty != nil {
		m.DifficultyLabel = metrics.Difficulty(*res.Difficulty).String()
	}
	return m
}

// RecomputeTrailMetrics recomputes the activities of one trail
func (s *Store) RecomputeTrailMetrics(ctx context.Context, trailID int64) (*TrailMetrics, error) {
	var out *TrailMetrics
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var trail database.Trail
		if err := lockParent(tx, &trail, "trail", trailID); err != nil {
			return err
		}
		var err error
		out, err = recomputeTrail(ctx, tx, &trail)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecomputeActivityMetrics recomputes every trail using an activity and
// returns how many trail activities were updated
func (s *Store) RecomputeActivityMetrics(ctx context.Context, activityID int64) (int, error) {
	var count int
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		count, err = recomputeActivity(ctx, tx, activityID)
		return err
	})
	return count, err
}

func recomputeActivity(ctx context.Context, tx *gorm.DB, activityID int64) (int, error) {
	tx = tx.WithContext(ctx)

	var activity database.Activity
	if err := tx.First(&activity, activityID).Error; err != nil {
		return 0, fmt.Errorf("activity %d: %w", activityID, err)
	}

	var rows []database.TrailActivity
	if err := tx.Where("activity_id = ?", activityID).Order("id").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("loading trails of activity %d: %w", activityID, err)
	}

	trailIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		trailIDs = append(trailIDs, r.TrailID)
	}
	var trails []database.Trail
	if len(trailIDs) > 0 {
		if err := forUpdate(tx).Where("id IN ?", trailIDs).Order("id").Find(&trails).Error; err != nil {
			return 0, fmt.Errorf("loading trails of activity %d: %w", activityID, err)
		}
	}
	byID := make(map[int64]*database.Trail, len(trails))
	for i := range trails {
		byID[trails[i].ID] = &trails[i]
	}

	profile := activityProfile(&activity)
	updated := 0
	for _, row := range rows {
		trail, ok := byID[row.TrailID]
		if !ok {
			continue
		}
		res := metrics.Compute(trailProfile(trail), profile)
		telemetry.ObserveMetrics(res.Duration != nil && res.Difficulty != nil)

		err := tx.Model(&database.TrailActivity{}).Where("id = ?", row.ID).
			Updates(map[string]interface{}{"duration": res.Duration, "difficulty": res.Difficulty}).Error
		if err != nil {
			return 0, fmt.Errorf("storing metrics of trail activity %d: %w", row.ID, err)
		}
		updated++
	}

	return updated, nil
}

// RecomputeAll recomputes every trail, one transaction per trail, with up to
// the configured number of trails in flight
func (s *Store) RecomputeAll(ctx context.Context) (int, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&database.Trail{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, translateError(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.RecomputeTrailMetrics(gctx, id); err != nil {
				return fmt.Errorf("trail %d: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.logger.Infof("recomputed metrics of %d trail(s)", len(ids))
	return len(ids), nil
}

// TrailMetrics returns the stored per-activity values of a trail without
// recomputing them
func (s *Store) TrailMetrics(ctx context.Context, trailID int64) (*TrailMetrics, error) {
	db := s.db.WithContext(ctx)

	var trail database.Trail
	if err := db.Select("id").First(&trail, trailID).Error; err != nil {
		return nil, translateError(fmt.Errorf("trail %d: %w", trailID, err))
	}

	var rows []database.TrailActivity
	if err := db.Where("trail_id = ?", trailID).Order("id").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ActivityID)
	}
	activities, err := loadActivities(db, ids)
	if err != nil {
		return nil, translateError(err)
	}

	out := &TrailMetrics{TrailID: trailID, Activities: make([]ActivityMetrics, 0, len(rows))}
	results := make([]metrics.Result, 0, len(rows))
	for _, row := range rows {
		activity := activities[row.ActivityID]
		res := metrics.Result{Duration: row.Duration, Difficulty: row.Difficulty}
		results = append(results, res)
		out.Activities = append(out.Activities, activityMetrics(row.ID, &activity, res))
	}
	out.Summary = metrics.Summarize(results)
	return out, nil
}
