package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/realty/internal/errors"
	"github.com/stwalsh4118/realty/internal/middleware"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/search"
	"github.com/stwalsh4118/realty/internal/services"
)

// NoResultsMessage is returned when no building matches the filters.
const NoResultsMessage = "no results"

// RecommendationHandler serves the filters, confirmation and results steps.
type RecommendationHandler struct {
	service services.RecommendationService
}

// NewRecommendationHandler creates a new RecommendationHandler instance.
func NewRecommendationHandler(service services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		service: service,
	}
}

// RecommendationRequest is the preference form. Omitted fields mean "no preference".
// Area is in pyeong and applies only when both bounds are given.
type RecommendationRequest struct {
	NearHospital bool   `json:"near_hospital"`
	NearStation  bool   `json:"near_station"`
	NearParking  bool   `json:"near_parking"`
	NewBuild     bool   `json:"new_build"`
	BuildingType string `json:"building_type"`
	AreaMin      *int   `json:"area_min" binding:"required_with=AreaMax,omitempty,gte=10,lte=100"`
	AreaMax      *int   `json:"area_max" binding:"required_with=AreaMin,omitempty,gte=10,lte=100"`
	PriceRange   string `json:"price_range"`
	Floor        string `json:"floor"`
	District     string `json:"district"`
}

// Filters converts the request into search filters.
func (r RecommendationRequest) Filters() search.Filters {
	f := search.Filters{
		NearHospital: r.NearHospital,
		NearStation:  r.NearStation,
		NearParking:  r.NearParking,
		NewBuild:     r.NewBuild,
		BuildingType: r.BuildingType,
		PriceRange:   r.PriceRange,
		Floor:        r.Floor,
		District:     r.District,
	}
	if r.AreaMin != nil && r.AreaMax != nil {
		f.Area = &search.AreaRange{Min: *r.AreaMin, Max: *r.AreaMax}
	}
	return f
}

// PreviewResponse is the confirmation step.
type PreviewResponse struct {
	Criteria search.Criteria `json:"criteria"`
	Summary  []string        `json:"summary"`
}

// ListingData is one result card.
type ListingData struct {
	ID                 int64    `json:"id"`
	Rank               int      `json:"rank"`
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	District           string   `json:"district"`
	Purpose            string   `json:"purpose"`
	ConstructionYear   int16    `json:"construction_year"`
	AreaSqm            float64  `json:"area_sqm"`
	AreaPyeong         float64  `json:"area_pyeong"`
	Floor              int16    `json:"floor"`
	LatestPrice        *int32   `json:"latest_price,omitempty"`
	LatestContractDate string   `json:"latest_contract_date,omitempty"`
	Tags               []string `json:"tags"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
}

// RecommendationResponse is the results step.
type RecommendationResponse struct {
	Count          int                      `json:"count"`
	CandidateCount int                      `json:"candidate_count"`
	Listings       []ListingData            `json:"listings"`
	Ranked         bool                     `json:"ranked"`
	FallbackReason string                   `json:"fallback_reason,omitempty"`
	Message        string                   `json:"message,omitempty"`
	Summary        []string                 `json:"summary"`
	Map            models.FeatureCollection `json:"map"`
}

// Options handles GET /api/v1/recommendations/options.
func (h *RecommendationHandler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Options())
}

// Preview handles POST /api/v1/recommendations/preview.
func (h *RecommendationHandler) Preview(c *gin.Context) {
	req, ok := bindRecommendationRequest(c)
	if !ok {
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), req.Filters())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{
		Criteria: preview.Criteria,
		Summary:  preview.Summary,
	})
}

// Recommend handles POST /api/v1/recommendations.
// An empty match set answers 200 with count 0 and a "no results" message.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	log := middleware.GetLogger(c)

	req, ok := bindRecommendationRequest(c)
	if !ok {
		return
	}

	rec, err := h.service.Recommend(c.Request.Context(), req.Filters())
	if err != nil {
		h.handleError(c, err)
		return
	}

	if log != nil {
		log.Info("Recommendation served", map[string]interface{}{
			"candidates":      rec.CandidateCount,
			"picks":           len(rec.Picks),
			"ranked":          rec.Ranked,
			"fallback_reason": rec.FallbackReason,
		})
	}

	listings := make([]ListingData, 0, len(rec.Picks))
	for i, l := range rec.Picks {
		listings = append(listings, mapListingToDTO(l, i+1))
	}

	response := RecommendationResponse{
		Count:          len(listings),
		CandidateCount: rec.CandidateCount,
		Listings:       listings,
		Ranked:         rec.Ranked,
		FallbackReason: rec.FallbackReason,
		Summary:        rec.Summary,
		Map:            rec.Map,
	}
	if len(listings) == 0 {
		response.Message = NoResultsMessage
	}

	c.JSON(http.StatusOK, response)
}

// bindRecommendationRequest binds the JSON body. An empty body is a form with nothing selected.
func bindRecommendationRequest(c *gin.Context) (RecommendationRequest, bool) {
	var req RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.BindingError(c, err)
		return req, false
	}
	return req, true
}

func (h *RecommendationHandler) handleError(c *gin.Context, err error) {
	if errors.Is(err, search.ErrInvalidFilters) {
		apierrors.BadRequest(c, err.Error(), nil)
		return
	}
	apierrors.InternalServerError(c, "Failed to compute recommendations", err)
}

// mapListingToDTO converts a Listing into a result card. rank starts at 1.
func mapListingToDTO(l models.Listing, rank int) ListingData {
	dto := ListingData{
		ID:               l.Building.ID,
		Rank:             rank,
		Name:             l.Building.Name,
		Address:          l.Address.Label(),
		District:         l.Address.District,
		Purpose:          l.Building.Purpose,
		ConstructionYear: l.Building.ConstructionYear,
		AreaSqm:          l.Building.AreaSqm,
		AreaPyeong:       l.Building.AreaSqm / search.PyeongToSqm,
		Floor:            l.Building.Floor,
		Tags:             l.Tags,
		Latitude:         l.Address.Latitude,
		Longitude:        l.Address.Longitude,
	}
	if dto.Tags == nil {
		dto.Tags = []string{}
	}
	if l.LatestDeal != nil {
		price := l.LatestDeal.TransactionPriceMillion
		dto.LatestPrice = &price
		dto.LatestContractDate = l.LatestDeal.ContractDate().Format("2006-01-02")
	}
	return dto
}
