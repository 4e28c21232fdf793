package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/realty/internal/logger"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/repository"
)

// Service-level errors
var (
	ErrInvalidBuildingID  = errors.New("building id must be a positive integer")
	ErrBuildingNotFound   = errors.New("building not found")
	ErrUnknownAmenityKind = errors.New("unknown amenity kind")
)

// BuildingService defines lookups behind the map and the detail view.
type BuildingService interface {
	// GetBuilding returns a building with its address, tags and deals.
	// Returns ErrInvalidBuildingID for ids < 1 and ErrBuildingNotFound when absent.
	GetBuilding(ctx context.Context, id int64) (*models.BuildingDetail, error)

	// ListDistricts returns the districts that can be used as a filter.
	ListDistricts(ctx context.Context) ([]string, error)

	// ListAmenities returns every amenity of kind as map markers.
	// Returns ErrUnknownAmenityKind for anything but hospital, subway or bus.
	ListAmenities(ctx context.Context, kind string) (models.FeatureCollection, error)
}

type buildingService struct {
	buildings repository.BuildingRepository
	amenities repository.AmenityRepository
	log       *logger.Logger
}

// NewBuildingService creates a new instance of BuildingService.
func NewBuildingService(buildings repository.BuildingRepository, amenities repository.AmenityRepository, log *logger.Logger) BuildingService {
	return &buildingService{
		buildings: buildings,
		amenities: amenities,
		log:       log,
	}
}

func (s *buildingService) GetBuilding(ctx context.Context, id int64) (*models.BuildingDetail, error) {
	if id < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBuildingID, id)
	}

	detail, err := s.buildings.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to query building", err, map[string]interface{}{
			"building_id": id,
		})
		return nil, fmt.Errorf("failed to query building: %w", err)
	}

	// Repository returns nil, nil when no building found
	if detail == nil {
		s.log.Debug("Building not found", map[string]interface{}{
			"building_id": id,
		})
		return nil, ErrBuildingNotFound
	}

	return detail, nil
}

func (s *buildingService) ListDistricts(ctx context.Context) ([]string, error) {
	districts, err := s.buildings.ListDistricts(ctx)
	if err != nil {
		s.log.Error("Failed to list districts", err, nil)
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}
	return districts, nil
}

func (s *buildingService) ListAmenities(ctx context.Context, kind string) (models.FeatureCollection, error) {
	k := models.AmenityKind(strings.ToLower(strings.TrimSpace(kind)))
	if !k.Valid() {
		return models.FeatureCollection{}, fmt.Errorf("%w: %q", ErrUnknownAmenityKind, kind)
	}

	amenities, err := s.amenities.List(ctx, k)
	if err != nil {
		s.log.Error("Failed to list amenities", err, map[string]interface{}{
			"kind": string(k),
		})
		return models.FeatureCollection{}, fmt.Errorf("failed to list amenities: %w", err)
	}

	features := make([]models.Feature, len(amenities))
	for i, a := range amenities {
		features[i] = a.Feature()
	}
	return models.NewFeatureCollection(features), nil
}
