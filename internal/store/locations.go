package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/info3g/hikstar-celery/internal/database"
)

// SaveLocation creates (id == 0) or updates a location and reconciles its
// images and contacts in one transaction
func (s *Store) SaveLocation(ctx context.Context, id int64, in *LocationInput) (*SaveResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	result := &SaveResult{Changes: make(map[string]*ChangeLog)}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var location database.Location
		if id != 0 {
			if err := lockParent(tx, &location, "location", id); err != nil {
				return err
			}
		}

		location.Name = in.Name
		location.Description = in.Description
		if err := tx.Save(&location).Error; err != nil {
			return fmt.Errorf("saving location: %w", err)
		}
		result.ID = location.ID

		var err error
		if result.Changes[childLocationImage], err = reconcileChildren(ctx, tx, "location_id", location.ID,
			in.Images.Filter(hasImageType), locationImageCaps(tx, location.ID), locationImageOptions); err != nil {
			return err
		}
		result.Changes[childContact], err = reconcileChildren(ctx, tx, "location_id", location.ID,
			in.Contacts, contactCaps(tx, location.ID), contactOptions)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("saved location %d", result.ID)
	return result, nil
}

// LocationDetail is a location with its child collections
type LocationDetail struct {
	database.Location
	Images   []database.LocationImage `json:"images"`
	Contacts []database.Contact       `json:"contacts"`
}

// GetLocation returns a location with its images and contacts
func (s *Store) GetLocation(ctx context.Context, id int64) (*LocationDetail, error) {
	db := s.db.WithContext(ctx)

	var out LocationDetail
	if err := db.First(&out.Location, id).Error; err != nil {
		return nil, translateError(fmt.Errorf("location %d: %w", id, err))
	}
	if err := db.Where("location_id = ?", id).Order("id").Find(&out.Images).Error; err != nil {
		return nil, translateError(err)
	}
	if err := db.Where("location_id = ?", id).Order("id").Find(&out.Contacts).Error; err != nil {
		return nil, translateError(err)
	}
	return &out, nil
}
