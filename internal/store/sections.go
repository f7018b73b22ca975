package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/graph"
	"github.com/info3g/hikstar-celery/internal/reconcile"
	"github.com/info3g/hikstar-celery/internal/telemetry"
)

// SaveTrailSection creates (id == 0) or updates a trail section and reconciles
// its activities in one transaction. A section without a length gets the
// planar length of its geometry.
func (s *Store) SaveTrailSection(ctx context.Context, id int64, in *TrailSectionInput) (*SaveResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if len(in.Geometry) < 2 {
		return nil, &graph.InvalidGeometryError{SegmentID: graph.EdgeID(id), Points: len(in.Geometry)}
	}

	encoded, err := json.Marshal(in.Geometry)
	if err != nil {
		return nil, err
	}

	result := &SaveResult{Changes: make(map[string]*ChangeLog)}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		section := database.TrailSection{Valid: true, Visible: true}
		if id != 0 {
			if err := lockParent(tx, &section, "trail section", id); err != nil {
				return err
			}
		}
		if section.ActivitiesUUID == "" {
			section.ActivitiesUUID = uuid.NewString()
		}

		section.Name = in.Name
		section.Comments = in.Comments
		section.Departure = in.Departure
		section.Arrival = in.Arrival
		if in.Valid != nil {
			section.Valid = *in.Valid
		}
		if in.Visible != nil {
			section.Visible = *in.Visible
		}
		section.Geometry = datatypes.JSON(encoded)
		section.Length = in.Length
		if section.Length == nil {
			l := polylineLength(in.Geometry)
			section.Length = &l
		}
		section.Ascent = in.Ascent
		section.Descent = in.Descent

		if err := tx.Save(&section).Error; err != nil {
			return fmt.Errorf("saving trail section: %w", err)
		}
		result.ID = section.ID

		var err error
		result.Changes[childTrailSectionActivity], err = reconcileChildren(ctx, tx, "trail_section_id", section.ID,
			in.Activities, sectionActivityCaps(tx, section.ID), sectionActivityOptions)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("saved trail section %d", result.ID)
	return result, nil
}

// BulkUpdateSectionActivities replaces the activities of every listed section
// with the same set
func (s *Store) BulkUpdateSectionActivities(ctx context.Context, in *BulkSectionActivities) (map[int64]*ChangeLog, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	items := make([]SectionActivityItem, 0, len(in.ActivityIDs))
	seen := make(map[int64]struct{}, len(in.ActivityIDs))
	for _, a := range in.ActivityIDs {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		items = append(items, SectionActivityItem{Activity: a})
	}
	incoming := reconcile.Present(items...)

	out := make(map[int64]*ChangeLog, len(in.SectionIDs))
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var sections []database.TrailSection
		if err := forUpdate(tx).Where("id IN ?", in.SectionIDs).Order("id").Find(&sections).Error; err != nil {
			return err
		}
		if len(sections) != len(uniqueIDs(in.SectionIDs)) {
			return fmt.Errorf("some of trail sections %v: %w", in.SectionIDs, ErrNotFound)
		}

		for _, section := range sections {
			log, err := reconcileChildren(ctx, tx, "trail_section_id", section.ID,
				incoming, sectionActivityCaps(tx, section.ID), sectionActivityOptions)
			if err != nil {
				return fmt.Errorf("trail section %d: %w", section.ID, err)
			}
			out[section.ID] = log
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// MergeDuplicateSections folds sections whose geometry matches point for point
// into the lowest id among them: trail events are moved over and the
// duplicates deleted. It returns the deleted ids.
func (s *Store) MergeDuplicateSections(ctx context.Context) ([]int64, error) {
	var deleted []int64

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var sections []database.TrailSection
		if err := tx.Select("id", "geometry").Order("id").Find(&sections).Error; err != nil {
			return err
		}

		keep := make(map[string]int64)
		for _, sec := range sections {
			key, err := geometryKey(sec.Geometry)
			if err != nil || key == "" {
				continue
			}
			original, seen := keep[key]
			if !seen {
				keep[key] = sec.ID
				continue
			}

			if err := tx.Model(&database.EventTrailSection{}).Where("trail_section_id = ?", sec.ID).
				Update("trail_section_id", original).Error; err != nil {
				return fmt.Errorf("moving events of section %d: %w", sec.ID, err)
			}
			if err := tx.Delete(&database.TrailSection{}, sec.ID).Error; err != nil {
				return fmt.Errorf("deleting section %d: %w", sec.ID, err)
			}
			deleted = append(deleted, sec.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(deleted) > 0 {
		s.logger.Infof("%d duplicate trail section(s) merged: %v", len(deleted), deleted)
	}
	return deleted, nil
}

// geometryKey normalizes a stored geometry so equal point sequences compare equal
func geometryKey(raw datatypes.JSON) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var points [][2]float64
	if err := json.Unmarshal(raw, &points); err != nil {
		return "", err
	}
	if len(points) == 0 {
		return "", nil
	}
	b, err := json.Marshal(points)
	return string(b), err
}

// LoadSegments reads trail sections as graph segments, in id order. An empty
// ids list loads every section. The read happens in one transaction so the
// snapshot is consistent.
func (s *Store) LoadSegments(ctx context.Context, ids []int64) ([]graph.Segment, error) {
	var sections []database.TrailSection

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		q := tx.Select("id", "length", "geometry").Order("id")
		if len(ids) > 0 {
			q = q.Where("id IN ?", ids)
		}
		return q.Find(&sections).Error
	})
	if err != nil {
		return nil, err
	}

	segments := make([]graph.Segment, 0, len(sections))
	for _, sec := range sections {
		var coords [][2]float64
		if len(sec.Geometry) > 0 {
			if err := json.Unmarshal(sec.Geometry, &coords); err != nil {
				return nil, fmt.Errorf("decoding geometry of section %d: %w", sec.ID, err)
			}
		}
		points := make([]graph.Point, len(coords))
		for i, c := range coords {
			points[i] = graph.Point{X: c[0], Y: c[1]}
		}
		segments = append(segments, graph.Segment{
			ID:       graph.EdgeID(sec.ID),
			Length:   sec.Length,
			Geometry: points,
		})
	}
	return segments, nil
}

// BuildGraph builds the topology graph of the given sections, or of every
// section when ids is empty
func (s *Store) BuildGraph(ctx context.Context, ids []int64) (*graph.Graph, error) {
	start := time.Now()

	segments, err := s.LoadSegments(ctx, ids)
	if err != nil {
		return nil, err
	}

	g, err := graph.BuildGraph(segments, nil)
	if err != nil {
		return nil, err
	}

	telemetry.ObserveGraphBuild(len(g.Edges), time.Since(start))
	return g, nil
}

func polylineLength(points [][2]float64) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += math.Hypot(points[i][0]-points[i-1][0], points[i][1]-points[i-1][1])
	}
	return total
}
