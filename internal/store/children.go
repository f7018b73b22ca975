package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/reconcile"
	"github.com/info3g/hikstar-celery/internal/telemetry"
)

// Child type names, used in errors, logs and metrics
const (
	childTrailImage           = "trail_image"
	childTrailActivity        = "trail_activity"
	childTrailStep            = "trail_step"
	childEventTrailSection    = "event_trail_section"
	childTrailSectionActivity = "trail_section_activity"
	childLocationImage        = "location_image"
	childContact              = "contact"
)

// Per child type reconciliation rules. Images and contacts are edited in place
// and must reference existing rows; link tables are replaced and tolerate
// stale ids.
var (
	trailImageOptions      = reconcile.Options{Name: childTrailImage, StrictIdentity: true, OnAbsent: reconcile.KeepAll}
	trailActivityOptions   = reconcile.Options{Name: childTrailActivity, OnAbsent: reconcile.DeleteAll}
	trailStepOptions       = reconcile.Options{Name: childTrailStep, OnAbsent: reconcile.KeepAll}
	eventOptions           = reconcile.Options{Name: childEventTrailSection, OnAbsent: reconcile.DeleteAll}
	sectionActivityOptions = reconcile.Options{Name: childTrailSectionActivity, OnAbsent: reconcile.DeleteAll}
	locationImageOptions   = reconcile.Options{Name: childLocationImage, StrictIdentity: true, OnAbsent: reconcile.KeepAll}
	contactOptions         = reconcile.Options{Name: childContact, StrictIdentity: true, OnAbsent: reconcile.KeepAll}
)

// ChangeLog is what one reconciliation did to a child collection
type ChangeLog = reconcile.Log[int64]

func idOf(id *int64) (int64, bool) {
	if id == nil || *id == 0 {
		return 0, false
	}
	return *id, true
}

func noID[P any](P) (int64, bool) {
	return 0, false
}

// childIDs returns the ids of the children of one parent, in id order
func childIDs[C any](ctx context.Context, tx *gorm.DB, parentColumn string, parentID int64) ([]int64, error) {
	var ids []int64
	var model C
	err := tx.WithContext(ctx).Model(&model).Where(parentColumn+" = ?", parentID).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func insertBatch[C any](tx *gorm.DB, idOf func(*C) int64) func(context.Context, []C) ([]int64, error) {
	return func(ctx context.Context, children []C) ([]int64, error) {
		if err := tx.WithContext(ctx).Create(&children).Error; err != nil {
			return nil, err
		}
		ids := make([]int64, len(children))
		for i := range children {
			ids[i] = idOf(&children[i])
		}
		return ids, nil
	}
}

func deleteByIDs[C any](tx *gorm.DB, parentColumn string, parentID int64) func(context.Context, []int64) error {
	return func(ctx context.Context, ids []int64) error {
		var model C
		return tx.WithContext(ctx).Where(parentColumn+" = ? AND id IN ?", parentID, ids).Delete(&model).Error
	}
}

// reconcileChildren loads the persisted ids of one child collection, reconciles
// it and records the outcome
func reconcileChildren[P any, C any](ctx context.Context, tx *gorm.DB, parentColumn string, parentID int64,
	incoming reconcile.Incoming[P], caps reconcile.Capabilities[int64, P, C], opts reconcile.Options) (*ChangeLog, error) {

	persisted, err := childIDs[C](ctx, tx, parentColumn, parentID)
	if err != nil {
		return nil, err
	}

	log, err := reconcile.Reconcile(ctx, persisted, incoming, caps, opts)
	if err != nil {
		telemetry.ObserveReconcile(opts.Name, telemetry.ReconcileCounts{}, err)
		return nil, err
	}

	telemetry.ObserveReconcile(opts.Name, telemetry.ReconcileCounts{
		Kept:    len(log.Kept),
		Updated: len(log.Updated),
		Created: len(log.Created),
		Deleted: len(log.Deleted),
		Ignored: len(log.Ignored),
	}, nil)
	return log, nil
}

func trailImageCaps(tx *gorm.DB, trailID int64) reconcile.Capabilities[int64, ImageItem, database.TrailImage] {
	return reconcile.Capabilities[int64, ImageItem, database.TrailImage]{
		ExtractID: func(it ImageItem) (int64, bool) { return idOf(it.ID) },
		BuildNew: func(it ImageItem) (database.TrailImage, error) {
			return database.TrailImage{TrailID: trailID, ImageType: *it.ImageType, Image: it.Image, Credit: it.Credit}, nil
		},
		Update: func(ctx context.Context, id int64, it ImageItem) error {
			return tx.WithContext(ctx).Model(&database.TrailImage{}).
				Where("id = ? AND trail_id = ?", id, trailID).
				Updates(imageChanges(it)).Error
		},
		InsertBatch: insertBatch(tx, func(c *database.TrailImage) int64 { return c.ID }),
		DeleteByIDs: deleteByIDs[database.TrailImage](tx, "trail_id", trailID),
	}
}

func locationImageCaps(tx *gorm.DB, locationID int64) reconcile.Capabilities[int64, ImageItem, database.LocationImage] {
	return reconcile.Capabilities[int64, ImageItem, database.LocationImage]{
		ExtractID: func(it ImageItem) (int64, bool) { return idOf(it.ID) },
		BuildNew: func(it ImageItem) (database.LocationImage, error) {
			return database.LocationImage{LocationID: locationID, ImageType: *it.ImageType, Image: it.Image, Credit: it.Credit}, nil
		},
		Update: func(ctx context.Context, id int64, it ImageItem) error {
			return tx.WithContext(ctx).Model(&database.LocationImage{}).
				Where("id = ? AND location_id = ?", id, locationID).
				Updates(imageChanges(it)).Error
		},
		InsertBatch: insertBatch(tx, func(c *database.LocationImage) int64 { return c.ID }),
		DeleteByIDs: deleteByIDs[database.LocationImage](tx, "location_id", locationID),
	}
}

// imageChanges lists the columns an image update writes. The stored file is
// only replaced when the payload names one.
func imageChanges(it ImageItem) map[string]interface{} {
	changes := map[string]interface{}{
		"image_type": *it.ImageType,
		"credit":     it.Credit,
	}
	if it.Image != "" {
		changes["image"] = it.Image
	}
	return changes
}

func trailActivityCaps(tx *gorm.DB, trailID int64) reconcile.Capabilities[int64, TrailActivityItem, database.TrailActivity] {
	return reconcile.Capabilities[int64, TrailActivityItem, database.TrailActivity]{
		ExtractID: func(it TrailActivityItem) (int64, bool) { return idOf(it.ID) },
		BuildNew: func(it TrailActivityItem) (database.TrailActivity, error) {
			return database.TrailActivity{TrailID: trailID, ActivityID: it.Activity}, nil
		},
		InsertBatch: insertBatch(tx, func(c *database.TrailActivity) int64 { return c.ID }),
		DeleteByIDs: deleteByIDs[database.TrailActivity](tx, "trail_id", trailID),
	}
}

func trailStepCaps(tx *gorm.DB, trailID int64) reconcile.Capabilities[int64, StepItem, database.TrailStep] {
	return reconcile.Capabilities[int64, StepItem, database.TrailStep]{
		ExtractID: noID[StepItem],
		BuildNew: func(it StepItem) (database.TrailStep, error) {
			return database.TrailStep{TrailID: trailID, Lat: it.Lat, Lng: it.Lng, Order: it.Order}, nil
		},
		InsertBatch: insertBatch(tx, func(c *database.TrailStep) int64 { return c.ID }),
		DeleteByIDs: deleteByIDs[database.TrailStep](tx, "trail_id", trailID),
	}
}

func eventCaps(tx *gorm.DB, trailID int64) reconcile.Capabilities[int64, EventItem, database.EventTrailSection] {
	return reconcile.Capabilities[int64, EventItem, database.EventTrailSection]{
		ExtractID: noID[EventItem],
		BuildNew: func(it EventItem) (database.EventTrailSection, error) {
			return database.EventTrailSection{
				TrailID:        trailID,
				TrailSectionID: it.TrailSection,
				StartPosition:  it.StartPosition,
				EndPosition:    it.EndPosition,
				Order:          it.Order,
			}, nil
		},
		InsertBatch: insertBatch(tx, func(c *database.EventTrailSection) int64 { return c.ID }),
		DeleteByIDs: deleteByIDs[database.EventTrailSection](tx, "trail_id", trailID),
	}
}

func sectionActivityCaps(tx *gorm.DB, sectionID int64) reconcile.Capabilities[int64, SectionActivityItem, database.TrailSectionActivity] {
	return reconcile.Capabilities[int64, SectionActivityItem, database.TrailSectionActivity]{
		ExtractID: func(it SectionActivityItem) (int64, bool) { return idOf(it.ID) },
		BuildNew: func(it SectionActivityItem) (database.TrailSectionActivity, error) {
			return database.TrailSectionActivity{TrailSectionID: sectionID, ActivityID: it.Activity}, nil
		},
		InsertBatch: insertBatch(tx, func(c *database.TrailSectionActivity) int64 { return c.ID }),
		DeleteByIDs: deleteByIDs[database.TrailSectionActivity](tx, "trail_section_id", sectionID),
	}
}

func contactCaps(tx *gorm.DB, locationID int64) reconcile.Capabilities[int64, ContactItem, database.Contact] {
	return reconcile.Capabilities[int64, ContactItem, database.Contact]{
		ExtractID: func(it ContactItem) (int64, bool) { return idOf(it.ID) },
		BuildNew: func(it ContactItem) (database.Contact, error) {
			return database.Contact{LocationID: locationID, Type: it.Type, Value: it.Value}, nil
		},
		Update: func(ctx context.Context, id int64, it ContactItem) error {
			return tx.WithContext(ctx).Model(&database.Contact{}).
				Where("id = ? AND location_id = ?", id, locationID).
				Updates(map[string]interface{}{"type": it.Type, "value": it.Value}).Error
		},
		InsertBatch: insertBatch(tx, func(c *database.Contact) int64 { return c.ID }),
		DeleteByIDs: deleteByIDs[database.Contact](tx, "location_id", locationID),
	}
}
