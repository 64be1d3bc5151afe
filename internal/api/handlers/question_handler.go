package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/draggle/rate-my-rez-waterloo/internal/api/middleware"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
)

// QuestionHandler handles community Q&A endpoints.
type QuestionHandler struct {
	questionService services.IQuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService services.IQuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

type textRequest struct {
	PropertyName string `json:"propertyName"`
	Text         string `json:"text"`
}

// ListByProperty handles GET /v1/properties/:id/questions.
func (h *QuestionHandler) ListByProperty(c *gin.Context) {
	questions, err := h.questionService.ListByProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load questions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// Create handles POST /v1/properties/:id/questions. Any session may ask,
// anonymous ones included.
func (h *QuestionHandler) Create(c *gin.Context) {
	claims := middleware.SessionClaims(c)

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question"})
		return
	}

	property := resolveProperty(c.Param("id"), req.PropertyName)
	question, err := h.questionService.CreateQuestion(c.Request.Context(), property, claims.UID, req.Text)
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Question text is required"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to post question"})
		return
	}
	c.JSON(http.StatusCreated, question)
}

// ListReplies handles GET /v1/questions/:id/replies.
func (h *QuestionHandler) ListReplies(c *gin.Context) {
	questionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID format"})
		return
	}

	replies, err := h.questionService.ListByQuestion(c.Request.Context(), questionID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load replies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

// CreateReply handles POST /v1/questions/:id/replies. Blank text is accepted
// and dropped without creating anything.
func (h *QuestionHandler) CreateReply(c *gin.Context) {
	claims := middleware.SessionClaims(c)

	questionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID format"})
		return
	}

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply"})
		return
	}

	reply, err := h.questionService.CreateReply(c.Request.Context(), questionID, claims.UID, req.Text)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to post reply"})
		return
	}
	if reply == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, reply)
}
