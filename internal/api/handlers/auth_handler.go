package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/draggle/rate-my-rez-waterloo/internal/auth"
	"github.com/draggle/rate-my-rez-waterloo/internal/config"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
	"github.com/draggle/rate-my-rez-waterloo/internal/tasks"
)

// Error strings surfaced verbatim by the SPA.
const (
	msgAccessDenied    = "Access Denied: You must use a @uwaterloo.ca email."
	msgBadCredential   = "Incorrect email or password."
	msgEmailRegistered = "This email is already registered."
)

// IAsynqClient abstracts the asynq client for mocking in tests.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AuthHandler handles session and account endpoints.
type AuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
	taskClient  IAsynqClient
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config, userService services.IUserService, taskClient IAsynqClient) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		userService: userService,
		taskClient:  taskClient,
	}
}

// sessionResponse is the body returned by every endpoint that issues a session.
type sessionResponse struct {
	Token     string `json:"token"`
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
	CanWrite  bool   `json:"canWrite"`
}

func (h *AuthHandler) issueSession(c *gin.Context, uid, email string, anonymous bool) {
	token, err := auth.GenerateJWT(uid, email, anonymous, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Token:     token,
		UID:       uid,
		Email:     email,
		Anonymous: anonymous,
		CanWrite:  !anonymous,
	})
}

// Anonymous handles POST /v1/auth/anonymous. Every visitor starts here; the
// anonymous uid lets them vote and ask questions before signing up.
func (h *AuthHandler) Anonymous(c *gin.Context) {
	h.issueSession(c, auth.NewAnonymousUID(), "", true)
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUp handles POST /v1/auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, err := h.userService.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDomainRejected):
			c.JSON(http.StatusForbidden, gin.H{"error": msgAccessDenied})
		case errors.Is(err, services.ErrEmailExists):
			c.JSON(http.StatusConflict, gin.H{"error": msgEmailRegistered})
		case errors.Is(err, services.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Password must be at least %d characters.", h.cfg.MinPasswordLength)})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		}
		return
	}

	h.issueSession(c, user.UID(), user.Email, false)
}

// LogIn handles POST /v1/auth/login.
func (h *AuthHandler) LogIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, err := h.userService.LogIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDomainRejected):
			c.JSON(http.StatusForbidden, gin.H{"error": msgAccessDenied})
		case errors.Is(err, services.ErrInvalidCredential):
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgBadCredential})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		}
		return
	}

	h.issueSession(c, user.UID(), user.Email, false)
}

// LogOut handles POST /v1/auth/logout. Logging out drops straight into a
// fresh anonymous session rather than no session at all.
func (h *AuthHandler) LogOut(c *gin.Context) {
	h.issueSession(c, auth.NewAnonymousUID(), "", true)
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestReset handles POST /v1/auth/reset. The response never reveals
// whether the email has an account.
func (h *AuthHandler) RequestReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	token, err := h.userService.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, services.ErrDomainRejected) {
			c.JSON(http.StatusForbidden, gin.H{"error": msgAccessDenied})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to request password reset"})
		return
	}

	if token != "" {
		body := fmt.Sprintf("Someone requested a password reset for your Rate My Rez account.\r\n\r\nYour reset code: %s\r\n\r\nIt expires in %s. If this wasn't you, ignore this email.", token, h.cfg.ResetLinkTTL)
		task, err := tasks.NewEmailDeliveryTask(req.Email, "Reset your Rate My Rez password", body)
		if err == nil {
			if _, err = h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.Queue("critical")); err != nil {
				log.Printf("Failed to enqueue reset email for %s: %v", req.Email, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type resetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ConfirmReset handles POST /v1/auth/reset/confirm and logs the user in on
// success.
func (h *AuthHandler) ConfirmReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token and password are required"})
		return
	}

	user, err := h.userService.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrResetTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Reset code is invalid or has expired."})
		case errors.Is(err, services.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Password must be at least %d characters.", h.cfg.MinPasswordLength)})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		}
		return
	}

	h.issueSession(c, user.UID(), user.Email, false)
}
