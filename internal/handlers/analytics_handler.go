package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/realty/internal/analytics"
	apierrors "github.com/stwalsh4118/realty/internal/errors"
	"github.com/stwalsh4118/realty/internal/models"
)

// XLSXContentType is the media type of the analytics workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsHandler serves dashboard statistics from the loaded CSV datasets.
type AnalyticsHandler struct {
	dataset *analytics.Dataset
}

// NewAnalyticsHandler creates a new AnalyticsHandler instance.
func NewAnalyticsHandler(dataset *analytics.Dataset) *AnalyticsHandler {
	return &AnalyticsHandler{
		dataset: dataset,
	}
}

// TopRequest is the optional list length. Zero means analytics.DefaultTopN.
type TopRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// PriceTrendRequest selects a building's time series.
type PriceTrendRequest struct {
	Building string `form:"building" binding:"required"`
	Forecast bool   `form:"forecast"`
}

// ListResponse wraps a list of statistics.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// Buildings handles GET /api/v1/analytics/buildings.
func (h *AnalyticsHandler) Buildings(c *gin.Context) {
	var req TopRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	items, err := h.dataset.TopBuildings(req.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items))
}

// PriceTrend handles GET /api/v1/analytics/price-trend.
func (h *AnalyticsHandler) PriceTrend(c *gin.Context) {
	var req PriceTrendRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	trend, err := h.dataset.PriceTrend(req.Building, req.Forecast)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

// DistrictsByPrice handles GET /api/v1/analytics/districts/price.
func (h *AnalyticsHandler) DistrictsByPrice(c *gin.Context) {
	var req TopRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	items, err := h.dataset.TopDistrictsByAveragePrice(req.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items))
}

// DistrictsByVolume handles GET /api/v1/analytics/districts/volume.
func (h *AnalyticsHandler) DistrictsByVolume(c *gin.Context) {
	var req TopRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	items, err := h.dataset.TopDistrictsByVolume(req.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items))
}

// VolumeMap handles GET /api/v1/analytics/districts/volume-map.
// Returns a GeoJSON FeatureCollection of buildings sized and colored by deal count.
func (h *AnalyticsHandler) VolumeMap(c *gin.Context) {
	var req TopRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	markers, err := h.dataset.VolumeMap(req.Limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	features := make([]models.Feature, len(markers))
	for i, m := range markers {
		features[i] = m.Feature()
	}
	c.JSON(http.StatusOK, models.NewFeatureCollection(features))
}

// Floors handles GET /api/v1/analytics/floors.
func (h *AnalyticsHandler) Floors(c *gin.Context) {
	items, err := h.dataset.FloorAveragePrice()
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items))
}

// Correlations handles GET /api/v1/analytics/correlations.
func (h *AnalyticsHandler) Correlations(c *gin.Context) {
	items, err := h.dataset.Correlations()
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items))
}

// Export handles GET /api/v1/analytics/export.xlsx.
func (h *AnalyticsHandler) Export(c *gin.Context) {
	data, err := h.dataset.ExportXLSX()
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=realty-analytics.xlsx")
	c.Data(http.StatusOK, XLSXContentType, data)
}

func (h *AnalyticsHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, analytics.ErrDatasetUnavailable):
		apierrors.ServiceUnavailable(c, err.Error(), err)
	case errors.Is(err, analytics.ErrUnknownBuilding):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalServerError(c, "Failed to compute analytics", err)
	}
}
