package services

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/search"
)

// MockBuildingRepository is a mock implementation of BuildingRepository for testing
type MockBuildingRepository struct {
	mock.Mock
}

func (m *MockBuildingRepository) Search(ctx context.Context, criteria search.Criteria, limit int) ([]models.Listing, error) {
	args := m.Called(ctx, criteria, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockBuildingRepository) FindByID(ctx context.Context, id int64) (*models.BuildingDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuildingDetail), args.Error(1)
}

func (m *MockBuildingRepository) ListDistricts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockAmenityRepository is a mock implementation of AmenityRepository for testing
type MockAmenityRepository struct {
	mock.Mock
}

func (m *MockAmenityRepository) List(ctx context.Context, kind models.AmenityKind) ([]models.Amenity, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Amenity), args.Error(1)
}

// MockRanker is a mock implementation of ranking.Ranker for testing
type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, criteria search.Criteria, candidates []models.Listing) ([]int64, error) {
	args := m.Called(ctx, criteria, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}
