package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/realty/internal/errors"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/services"
)

func setupBuildingRouter(svc *MockBuildingService) http.Handler {
	handler := NewBuildingHandler(svc)
	router := setupAPIRouter()
	v1 := router.Group("/api/v1")
	{
		v1.GET("/buildings/:id", handler.Get)
		v1.GET("/districts", handler.Districts)
		v1.GET("/amenities", handler.Amenities)
	}
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.ErrorDetail {
	t.Helper()
	var response apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.Error
}

func TestBuildingHandler_Get(t *testing.T) {
	svc := new(MockBuildingService)
	svc.On("GetBuilding", mock.Anything, int64(42)).Return(&models.BuildingDetail{
		Building: models.Building{ID: 42, Name: "래미안"},
		Address:  models.Address{District: "강남구", LegalDong: "역삼동", MainLotNumber: 123},
		Tags:     []models.Tag{{Label: "역세권"}, {Label: "주세권"}},
		Deals: []models.RealestateDeal{
			{ID: 2, TransactionPriceMillion: 120000, ContractYear: 2024, ContractMonth: 5, ContractDay: 1},
			{ID: 1, TransactionPriceMillion: 100000, ContractYear: 2023, ContractMonth: 12, ContractDay: 30},
		},
	}, nil)
	router := setupBuildingRouter(svc)

	w := get(router, "/api/v1/buildings/42")

	require.Equal(t, http.StatusOK, w.Code)
	var response BuildingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "강남구 역삼동 123", response.Label)
	assert.Equal(t, []string{"역세권", "주세권"}, response.Tags)
	require.NotNil(t, response.LatestDeal)
	assert.Equal(t, int64(2), response.LatestDeal.ID)
	assert.Len(t, response.Deals, 2)
}

func TestBuildingHandler_GetErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"non-numeric id", "/api/v1/buildings/abc", nil, http.StatusBadRequest, apierrors.ErrBadRequest},
		{"non-positive id", "/api/v1/buildings/0", fmt.Errorf("%w: got 0", services.ErrInvalidBuildingID), http.StatusBadRequest, apierrors.ErrBadRequest},
		{"not found", "/api/v1/buildings/7", services.ErrBuildingNotFound, http.StatusNotFound, apierrors.ErrNotFound},
		{"database error", "/api/v1/buildings/7", errors.New("boom"), http.StatusInternalServerError, apierrors.ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockBuildingService)
			if tt.serviceErr != nil {
				svc.On("GetBuilding", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}
			router := setupBuildingRouter(svc)

			w := get(router, tt.path)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
		})
	}
}

func TestBuildingHandler_Districts(t *testing.T) {
	svc := new(MockBuildingService)
	svc.On("ListDistricts", mock.Anything).Return([]string{"강남구", "마포구"}, nil)
	router := setupBuildingRouter(svc)

	w := get(router, "/api/v1/districts")

	require.Equal(t, http.StatusOK, w.Code)
	var response DistrictsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, DistrictsResponse{Districts: []string{"강남구", "마포구"}, Count: 2}, response)
}

func TestBuildingHandler_Amenities(t *testing.T) {
	svc := new(MockBuildingService)
	fc := models.NewFeatureCollection([]models.Feature{
		models.Amenity{ID: 1, Kind: models.AmenityHospital, Name: "세브란스", Latitude: 37.56, Longitude: 126.94}.Feature(),
	})
	svc.On("ListAmenities", mock.Anything, "hospital").Return(fc, nil)
	router := setupBuildingRouter(svc)

	w := get(router, "/api/v1/amenities?kind=hospital")

	require.Equal(t, http.StatusOK, w.Code)
	var response models.FeatureCollection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "FeatureCollection", response.Type)
	require.Len(t, response.Features, 1)
	assert.Equal(t, 37.56, response.Features[0].Geometry.Lat())
	assert.Equal(t, "세브란스", response.Features[0].Properties["name"])
}

func TestBuildingHandler_AmenitiesErrors(t *testing.T) {
	t.Run("missing kind", func(t *testing.T) {
		svc := new(MockBuildingService)
		router := setupBuildingRouter(svc)

		w := get(router, "/api/v1/amenities")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrValidation, decodeError(t, w).Code)
		svc.AssertNotCalled(t, "ListAmenities", mock.Anything, mock.Anything)
	})

	t.Run("unknown kind", func(t *testing.T) {
		svc := new(MockBuildingService)
		svc.On("ListAmenities", mock.Anything, "parking").
			Return(models.FeatureCollection{}, fmt.Errorf("%w: %q", services.ErrUnknownAmenityKind, "parking"))
		router := setupBuildingRouter(svc)

		w := get(router, "/api/v1/amenities?kind=parking")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		detail := decodeError(t, w)
		assert.Equal(t, apierrors.ErrBadRequest, detail.Code)
		assert.Equal(t, []interface{}{"hospital", "subway", "bus"}, detail.Details["allowed"])
	})
}
