package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/realty/internal/errors"
	"github.com/stwalsh4118/realty/internal/models"
	"github.com/stwalsh4118/realty/internal/services"
)

// BuildingHandler handles building detail and map overlay requests.
type BuildingHandler struct {
	service services.BuildingService
}

// NewBuildingHandler creates a new BuildingHandler instance.
func NewBuildingHandler(service services.BuildingService) *BuildingHandler {
	return &BuildingHandler{
		service: service,
	}
}

// AmenitiesRequest represents the query parameters for the amenities endpoint.
type AmenitiesRequest struct {
	Kind string `form:"kind" binding:"required"`
}

// BuildingResponse is a building with its address, tags and deal history.
type BuildingResponse struct {
	Building   models.Building         `json:"building"`
	Address    models.Address          `json:"address"`
	Label      string                  `json:"label"`
	Tags       []string                `json:"tags"`
	LatestDeal *models.RealestateDeal  `json:"latest_deal,omitempty"`
	Deals      []models.RealestateDeal `json:"deals"`
}

// DistrictsResponse lists the districts usable as a filter.
type DistrictsResponse struct {
	Districts []string `json:"districts"`
	Count     int      `json:"count"`
}

// Get handles GET /api/v1/buildings/:id.
func (h *BuildingHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Building id must be an integer", map[string]interface{}{
			"id": c.Param("id"),
		})
		return
	}

	detail, err := h.service.GetBuilding(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrInvalidBuildingID) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrBuildingNotFound) {
			apierrors.NotFound(c, "Building not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to query building", err)
		return
	}

	tags := make([]string, 0, len(detail.Tags))
	for _, t := range detail.Tags {
		tags = append(tags, t.Label)
	}
	deals := detail.Deals
	if deals == nil {
		deals = []models.RealestateDeal{}
	}

	c.JSON(http.StatusOK, BuildingResponse{
		Building:   detail.Building,
		Address:    detail.Address,
		Label:      detail.Address.Label(),
		Tags:       tags,
		LatestDeal: detail.LatestDeal(),
		Deals:      deals,
	})
}

// Districts handles GET /api/v1/districts.
func (h *BuildingHandler) Districts(c *gin.Context) {
	districts, err := h.service.ListDistricts(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list districts", err)
		return
	}
	if districts == nil {
		districts = []string{}
	}

	c.JSON(http.StatusOK, DistrictsResponse{
		Districts: districts,
		Count:     len(districts),
	})
}

// Amenities handles GET /api/v1/amenities?kind=hospital|subway|bus.
// Returns a GeoJSON FeatureCollection.
func (h *BuildingHandler) Amenities(c *gin.Context) {
	var req AmenitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	fc, err := h.service.ListAmenities(c.Request.Context(), req.Kind)
	if err != nil {
		if errors.Is(err, services.ErrUnknownAmenityKind) {
			apierrors.BadRequest(c, err.Error(), map[string]interface{}{
				"allowed": models.AmenityKinds,
			})
			return
		}
		apierrors.InternalServerError(c, "Failed to list amenities", err)
		return
	}

	c.JSON(http.StatusOK, fc)
}
