package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/draggle/rate-my-rez-waterloo/internal/models"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
)

// PropertyHandler serves the housing catalogs and free-text address search.
type PropertyHandler struct {
	reviewService services.IReviewService
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(reviewService services.IReviewService) *PropertyHandler {
	return &PropertyHandler{reviewService: reviewService}
}

// ListProperties handles GET /v1/properties?category=ON|OFF.
// Without a category it returns both catalogs.
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	switch models.Category(c.Query("category")) {
	case models.CategoryOnCampus:
		c.JSON(http.StatusOK, gin.H{"properties": models.OnCampusResidences})
	case models.CategoryOffCampus:
		c.JSON(http.StatusOK, gin.H{"properties": models.PopularOffCampus})
	default:
		all := make([]models.Property, 0, len(models.OnCampusResidences)+len(models.PopularOffCampus))
		all = append(all, models.OnCampusResidences...)
		all = append(all, models.PopularOffCampus...)
		c.JSON(http.StatusOK, gin.H{"properties": all})
	}
}

// SearchProperty handles GET /v1/properties/search?q=. Any address can be
// reviewed: when the search doesn't hit the catalog, a transient property is
// synthesized from the text.
func (h *PropertyHandler) SearchProperty(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search text is required"})
		return
	}

	if property, ok := models.PropertyByID(models.Slugify(query)); ok {
		c.JSON(http.StatusOK, property)
		return
	}
	c.JSON(http.StatusOK, models.SynthesizeProperty(query))
}

// GetProperty handles GET /v1/properties/:id. Custom addresses are not
// persisted, so an unknown id is resolved through the reviews that mention
// it; their denormalized name rebuilds the property.
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	id := c.Param("id")

	if property, ok := models.PropertyByID(id); ok {
		c.JSON(http.StatusOK, property)
		return
	}

	reviews, _, err := h.reviewService.ListByProperty(c.Request.Context(), id, models.SortNewest)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up property"})
		return
	}
	if len(reviews) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	property := models.SynthesizeProperty(reviews[0].PropertyName)
	property.ID = id
	c.JSON(http.StatusOK, property)
}

// GetMeta handles GET /v1/meta: the fixed catalogs the review form needs.
func (h *PropertyHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tags":      models.AmenityTags,
		"faculties": models.Faculties,
	})
}
