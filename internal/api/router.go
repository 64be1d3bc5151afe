package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/draggle/rate-my-rez-waterloo/internal/api/handlers"
	"github.com/draggle/rate-my-rez-waterloo/internal/api/middleware"
	"github.com/draggle/rate-my-rez-waterloo/internal/config"
	"github.com/draggle/rate-my-rez-waterloo/internal/live"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient, hub *live.Hub) *gin.Engine {
	// Initialize services needed by API handlers
	userService := services.NewUserService(db, cfg, rdb)
	reviewService := services.NewReviewService(db, cfg, hub)
	questionService := services.NewQuestionService(db, cfg, hub)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Order matters: the session must be parsed before rate limiting so the
	// limiter can key on the session uid rather than the shared campus IP.
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SessionMiddleware(cfg.JwtSecret))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, userService, taskClient)
	propertyHandler := handlers.NewPropertyHandler(reviewService)
	reviewHandler := handlers.NewReviewHandler(reviewService, taskClient)
	questionHandler := handlers.NewQuestionHandler(questionService)
	liveHandler := handlers.NewLiveHandler(hub, reviewService, questionService)

	v1 := r.Group("/v1")
	{
		// Session and account routes
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/anonymous", authHandler.Anonymous)
			authRoutes.POST("/signup", authHandler.SignUp)
			authRoutes.POST("/login", authHandler.LogIn)
			authRoutes.POST("/logout", authHandler.LogOut)
			authRoutes.POST("/reset", authHandler.RequestReset)
			authRoutes.POST("/reset/confirm", authHandler.ConfirmReset)
		}

		// Catalog and property routes
		v1.GET("/properties", propertyHandler.ListProperties)
		v1.GET("/properties/search", propertyHandler.SearchProperty)
		v1.GET("/properties/:id", propertyHandler.GetProperty)
		v1.GET("/meta", propertyHandler.GetMeta)

		// Review routes. Writing a review needs a verified account; helpful
		// votes only need a session of any kind.
		v1.GET("/feed", reviewHandler.HomeFeed)
		v1.GET("/properties/:id/reviews", reviewHandler.ListByProperty)
		v1.POST("/properties/:id/reviews", middleware.RequireWriter(), reviewHandler.Create)
		v1.PUT("/reviews/:id", middleware.RequireWriter(), reviewHandler.Update)
		v1.POST("/reviews/:id/helpful", middleware.RequireSession(), reviewHandler.CastHelpfulVote)

		// Q&A routes: any session may post, anonymous included.
		v1.GET("/properties/:id/questions", questionHandler.ListByProperty)
		v1.POST("/properties/:id/questions", middleware.RequireSession(), questionHandler.Create)
		v1.GET("/questions/:id/replies", questionHandler.ListReplies)
		v1.POST("/questions/:id/replies", middleware.RequireSession(), questionHandler.CreateReply)

		// Live snapshot subscriptions
		v1.GET("/live", liveHandler.Serve)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine. It is an
// internal control surface: end-to-end tests fetch mock emails from Redis
// through it, and deploy tooling can request a clean shutdown.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
			}
		case "getTestEmail":
			var args []string // ["kind", "email"], e.g. ["password_reset", "x@uwaterloo.ca"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			redisKey := fmt.Sprintf("mockemail:%s:%s", args[1], args[0])

			// Poll Redis briefly; the email is delivered by a background worker.
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			var emailJsonData string
			found := false
			for i := 0; i < 10; i++ {
				data, getErr := rdb.GetDel(ctx, redisKey).Result()
				if getErr == nil {
					emailJsonData = data
					found = true
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
