package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/realty/internal/logger"
	"github.com/stwalsh4118/realty/internal/middleware"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/search"
	"github.com/stwalsh4118/realty/internal/services"
)

// MockRecommendationService is a mock implementation of services.RecommendationService.
type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) Options() search.FormOptions {
	return m.Called().Get(0).(search.FormOptions)
}

func (m *MockRecommendationService) Preview(ctx context.Context, filters search.Filters) (*services.Preview, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Preview), args.Error(1)
}

func (m *MockRecommendationService) Recommend(ctx context.Context, filters search.Filters) (*services.Recommendation, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Recommendation), args.Error(1)
}

// MockBuildingService is a mock implementation of services.BuildingService.
type MockBuildingService struct {
	mock.Mock
}

func (m *MockBuildingService) GetBuilding(ctx context.Context, id int64) (*models.BuildingDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuildingDetail), args.Error(1)
}

func (m *MockBuildingService) ListDistricts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBuildingService) ListAmenities(ctx context.Context, kind string) (models.FeatureCollection, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).(models.FeatureCollection), args.Error(1)
}

// setupAPIRouter creates a test router with the request ID and logger middleware.
func setupAPIRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Nop()))
	return router
}
