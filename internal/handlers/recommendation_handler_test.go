package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/realty/internal/errors"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/search"
	"github.com/stwalsh4118/realty/internal/services"
)

func setupRecommendationRouter(svc *MockRecommendationService) http.Handler {
	handler := NewRecommendationHandler(svc)
	router := setupAPIRouter()
	v1 := router.Group("/api/v1")
	{
		recs := v1.Group("/recommendations")
		{
			recs.GET("/options", handler.Options)
			recs.POST("/preview", handler.Preview)
			recs.POST("", handler.Recommend)
		}
	}
	return router
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleListing(id int64) models.Listing {
	sub := int16(2)
	return models.Listing{
		Building: models.Building{ID: id, Name: "래미안", ConstructionYear: 2021, Purpose: "아파트", AreaSqm: 84.15, Floor: 7},
		Address: models.Address{
			District: "마포구", LegalDong: "공덕동", MainLotNumber: 10, SubLotNumber: &sub,
			Latitude: 37.54, Longitude: 126.95,
		},
		LatestDeal: &models.RealestateDeal{TransactionPriceMillion: 25000, ContractYear: 2024, ContractMonth: 3, ContractDay: 9},
		Tags:       []string{"역세권"},
	}
}

func TestRecommendationHandler_Options(t *testing.T) {
	svc := new(MockRecommendationService)
	svc.On("Options").Return(search.Options())
	router := setupRecommendationRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/options", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var opts search.FormOptions
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opts))
	assert.Len(t, opts.PriceRanges, len(search.PriceBrackets))
}

func TestRecommendationHandler_Preview(t *testing.T) {
	svc := new(MockRecommendationService)
	expected := search.Filters{
		NewBuild:     true,
		BuildingType: "아파트",
		Area:         &search.AreaRange{Min: 20, Max: 80},
		PriceRange:   "1~3억",
		Floor:        "전체",
	}
	svc.On("Preview", mock.Anything, expected).Return(&services.Preview{
		Summary: []string{"신축: 2020년 이후 준공"},
	}, nil)
	router := setupRecommendationRouter(svc)

	w := postJSON(router, "/api/v1/recommendations/preview",
		`{"new_build":true,"building_type":"아파트","area_min":20,"area_max":80,"price_range":"1~3억","floor":"전체"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var response PreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []string{"신축: 2020년 이후 준공"}, response.Summary)
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_Recommend(t *testing.T) {
	svc := new(MockRecommendationService)
	picks := []models.Listing{sampleListing(9), sampleListing(4)}
	svc.On("Recommend", mock.Anything, search.Filters{NearStation: true}).Return(&services.Recommendation{
		Preview:        services.Preview{Summary: []string{"태그: 역세권"}},
		CandidateCount: 12,
		Picks:          picks,
		Ranked:         true,
		Map:            models.NewFeatureCollection([]models.Feature{picks[0].Feature(), picks[1].Feature()}),
	}, nil)
	router := setupRecommendationRouter(svc)

	w := postJSON(router, "/api/v1/recommendations", `{"near_station":true}`)

	require.Equal(t, http.StatusOK, w.Code)
	var response RecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.Equal(t, 2, response.Count)
	assert.Equal(t, 12, response.CandidateCount)
	assert.True(t, response.Ranked)
	assert.Empty(t, response.Message)
	require.Len(t, response.Listings, 2)

	first := response.Listings[0]
	assert.Equal(t, int64(9), first.ID)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "마포구 공덕동 10-2", first.Address)
	assert.InDelta(t, 25.5, first.AreaPyeong, 1e-9)
	require.NotNil(t, first.LatestPrice)
	assert.Equal(t, int32(25000), *first.LatestPrice)
	assert.Equal(t, "2024-03-09", first.LatestContractDate)
	assert.Equal(t, 2, response.Listings[1].Rank)
	assert.Len(t, response.Map.Features, 2)
}

func TestRecommendationHandler_RecommendNoResults(t *testing.T) {
	svc := new(MockRecommendationService)
	svc.On("Recommend", mock.Anything, search.Filters{NearHospital: true}).Return(&services.Recommendation{
		Preview: services.Preview{Summary: []string{"태그: 병원 가까움"}},
		Picks:   []models.Listing{},
		Map:     models.NewFeatureCollection(nil),
	}, nil)
	router := setupRecommendationRouter(svc)

	w := postJSON(router, "/api/v1/recommendations", `{"near_hospital":true}`)

	require.Equal(t, http.StatusOK, w.Code)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, float64(0), raw["count"])
	assert.Equal(t, NoResultsMessage, raw["message"])
	assert.Equal(t, []interface{}{}, raw["listings"])
}

func TestRecommendationHandler_RecommendFallback(t *testing.T) {
	svc := new(MockRecommendationService)
	svc.On("Recommend", mock.Anything, search.Filters{}).Return(&services.Recommendation{
		CandidateCount: 1,
		Picks:          []models.Listing{sampleListing(1)},
		FallbackReason: services.ReasonRankingUnavailable,
	}, nil)
	router := setupRecommendationRouter(svc)

	w := postJSON(router, "/api/v1/recommendations", "")

	require.Equal(t, http.StatusOK, w.Code, "an empty body means no filters")
	var response RecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Ranked)
	assert.Equal(t, services.ReasonRankingUnavailable, response.FallbackReason)
	svc.AssertExpectations(t)
}

func TestRecommendationHandler_Errors(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		serviceErr   error
		callsService bool
		wantStatus   int
		wantCode     string
	}{
		{
			name:       "area below slider minimum",
			body:       `{"area_min":5,"area_max":50}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.ErrValidation,
		},
		{
			name:       "area bound without its pair",
			body:       `{"area_min":20}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.ErrValidation,
		},
		{
			name:       "malformed json",
			body:       `{"near_station":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.ErrBadRequest,
		},
		{
			name:       "wrong field type",
			body:       `{"near_station":"yes"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.ErrBadRequest,
		},
		{
			name:         "unknown price label",
			body:         `{"price_range":"2억"}`,
			serviceErr:   search.ErrUnknownPriceRange,
			callsService: true,
			wantStatus:   http.StatusBadRequest,
			wantCode:     apierrors.ErrBadRequest,
		},
		{
			name:         "database failure",
			body:         `{}`,
			serviceErr:   errors.New("failed to search candidates: connection reset"),
			callsService: true,
			wantStatus:   http.StatusInternalServerError,
			wantCode:     apierrors.ErrInternalServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRecommendationService)
			if tt.callsService {
				svc.On("Recommend", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}
			router := setupRecommendationRouter(svc)

			w := postJSON(router, "/api/v1/recommendations", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			var response apierrors.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.wantCode, response.Error.Code)
			assert.NotEmpty(t, response.Error.RequestID)
			if !tt.callsService {
				svc.AssertNotCalled(t, "Recommend", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRecommendationRequest_Filters(t *testing.T) {
	lo, hi := 30, 40
	f := RecommendationRequest{AreaMin: &lo, AreaMax: &hi, District: "강남구"}.Filters()
	require.NotNil(t, f.Area)
	assert.Equal(t, search.AreaRange{Min: 30, Max: 40}, *f.Area)
	assert.Equal(t, "강남구", f.District)

	assert.Nil(t, RecommendationRequest{AreaMin: &lo}.Filters().Area)
}
