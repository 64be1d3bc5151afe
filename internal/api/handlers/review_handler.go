package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/draggle/rate-my-rez-waterloo/internal/api/middleware"
	"github.com/draggle/rate-my-rez-waterloo/internal/models"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
	"github.com/draggle/rate-my-rez-waterloo/internal/tasks"
)

// ReviewHandler handles review endpoints.
type ReviewHandler struct {
	reviewService services.IReviewService
	taskClient    IAsynqClient
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService services.IReviewService, taskClient IAsynqClient) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		taskClient:    taskClient,
	}
}

// reviewRequest is the body for creating or editing a review.
type reviewRequest struct {
	PropertyName   string              `json:"propertyName"`
	Rating         int                 `json:"rating" binding:"required,min=1,max=5"`
	LocationRating int                 `json:"locationRating" binding:"omitempty,min=1,max=5"`
	Rent           int                 `json:"rent" binding:"omitempty,min=0"`
	Distance       int                 `json:"distance" binding:"omitempty,min=0"`
	Comment        string              `json:"comment"`
	Tags           []string            `json:"tags"`
	Image          string              `json:"image"`
	StudentLevel   models.StudentLevel `json:"studentLevel"`
}

func (r *reviewRequest) toInput() services.ReviewInput {
	return services.ReviewInput{
		Rating:         r.Rating,
		LocationRating: r.LocationRating,
		Rent:           r.Rent,
		Distance:       r.Distance,
		Comment:        r.Comment,
		Tags:           r.Tags,
		Image:          r.Image,
		StudentLevel:   r.StudentLevel,
	}
}

// resolveProperty maps a path id to a property: catalog entry, or a
// synthesized one carrying the client-provided display name.
func resolveProperty(id, name string) models.Property {
	if property, ok := models.PropertyByID(id); ok {
		return property
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	property := models.SynthesizeProperty(name)
	property.ID = id
	return property
}

// ListByProperty handles GET /v1/properties/:id/reviews?sort=.
func (h *ReviewHandler) ListByProperty(c *gin.Context) {
	mode := models.ParseSortMode(c.Query("sort"))
	reviews, summary, err := h.reviewService.ListByProperty(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load reviews"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "stats": summary})
}

// Create handles POST /v1/properties/:id/reviews. Requires a verified
// session (enforced by middleware.RequireWriter on the route).
func (h *ReviewHandler) Create(c *gin.Context) {
	claims := middleware.SessionClaims(c)

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review: " + err.Error()})
		return
	}

	property := resolveProperty(c.Param("id"), req.PropertyName)
	review, err := h.reviewService.Create(c.Request.Context(), property, claims.UID, claims.Email, req.toInput())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save review"})
		return
	}

	h.enqueueImageProcessing(c, review)
	c.JSON(http.StatusCreated, review)
}

// Update handles PUT /v1/reviews/:id. Only the author may edit.
func (h *ReviewHandler) Update(c *gin.Context) {
	claims := middleware.SessionClaims(c)

	reviewID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review ID format"})
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review: " + err.Error()})
		return
	}

	review, err := h.reviewService.Update(c.Request.Context(), reviewID, claims.UID, req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotReviewAuthor):
			c.JSON(http.StatusForbidden, gin.H{"error": "You can only edit your own reviews"})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update review"})
		}
		return
	}

	h.enqueueImageProcessing(c, review)
	c.JSON(http.StatusOK, review)
}

// CastHelpfulVote handles POST /v1/reviews/:id/helpful. Any session may
// vote, anonymous ones included; duplicates are silently ignored.
func (h *ReviewHandler) CastHelpfulVote(c *gin.Context) {
	claims := middleware.SessionClaims(c)

	reviewID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review ID format"})
		return
	}

	err = h.reviewService.CastHelpfulVote(c.Request.Context(), reviewID, claims.UID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record vote"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HomeFeed handles GET /v1/feed.
func (h *ReviewHandler) HomeFeed(c *gin.Context) {
	reviews, err := h.reviewService.HomeFeed(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load feed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// enqueueImageProcessing hands inline photos to the background worker. The
// review is readable immediately; the data URL gets swapped for an S3 URL
// once the worker is done.
func (h *ReviewHandler) enqueueImageProcessing(c *gin.Context, review *models.Review) {
	if h.taskClient == nil || !strings.HasPrefix(review.Image, "data:") {
		return
	}
	task, err := tasks.NewImageProcessTask(review.ID.Hex())
	if err != nil {
		log.Printf("Failed to build image task for review %s: %v", review.ID.Hex(), err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("Failed to enqueue image task for review %s: %v", review.ID.Hex(), err)
	}
}
