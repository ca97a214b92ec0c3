// Package api exposes the quiz over a JSON REST interface.
package api

import (
	"net/http"
	"time"

	"github.com/example/quizbot/internal/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router needs
type Handlers struct {
	Auth     *AuthHandler
	Content  *ContentHandler
	Attempts *AttemptHandler
	Admin    *AdminHandler
}

// NewRouter builds the gin engine with every route registered.
// An empty corsOrigins list allows any origin.
func NewRouter(authService *auth.Service, h Handlers, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(corsOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = corsOrigins
		corsConfig.AllowCredentials = true
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := JWTAuth(authService)
	requireAdmin := AdminOnly()

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.GET("/me", requireAuth, h.Auth.Me)
		}

		subjects := api.Group("/subjects")
		{
			subjects.GET("", h.Content.ListSubjects)
			subjects.GET("/:id", h.Content.GetSubject)
			subjects.GET("/:id/topics", h.Content.ListSubjectTopics)
			subjects.POST("", requireAuth, requireAdmin, h.Content.CreateSubject)
			subjects.PUT("/:id", requireAuth, requireAdmin, h.Content.UpdateSubject)
			subjects.DELETE("/:id", requireAuth, requireAdmin, h.Content.DeleteSubject)
		}

		topics := api.Group("/topics")
		{
			topics.GET("/:id", h.Content.GetTopic)
			topics.GET("/:id/questions", requireAuth, requireAdmin, h.Content.ListTopicQuestions)
			topics.POST("", requireAuth, requireAdmin, h.Content.CreateTopic)
			topics.PUT("/:id", requireAuth, requireAdmin, h.Content.UpdateTopic)
			topics.DELETE("/:id", requireAuth, requireAdmin, h.Content.DeleteTopic)
		}

		questions := api.Group("/questions")
		questions.Use(requireAuth, requireAdmin)
		{
			questions.POST("", h.Content.CreateQuestion)
			questions.GET("/:id", h.Content.GetQuestion)
			questions.PUT("/:id", h.Content.UpdateQuestion)
			questions.DELETE("/:id", h.Content.DeleteQuestion)
			questions.POST("/:id/choices", h.Content.AddChoice)
		}

		choices := api.Group("/choices")
		choices.Use(requireAuth, requireAdmin)
		{
			choices.PUT("/:id", h.Content.UpdateChoice)
			choices.DELETE("/:id", h.Content.DeleteChoice)
		}

		attempts := api.Group("/attempts")
		attempts.Use(requireAuth)
		{
			attempts.POST("", h.Attempts.StartAttempt)
			attempts.GET("", h.Attempts.ListAttempts)
			attempts.GET("/:id/next", h.Attempts.NextQuestion)
			attempts.POST("/:id/answers", h.Attempts.SubmitAnswer)
			attempts.GET("/:id/result", h.Attempts.GetResult)
			attempts.GET("/:id/review", h.Attempts.Review)
		}

		admin := api.Group("")
		admin.Use(requireAuth, requireAdmin)
		{
			admin.GET("/bad-passwords", h.Admin.ListBadPasswords)
			admin.POST("/bad-passwords", h.Admin.AddBadPassword)
			admin.POST("/import", h.Admin.Import)
		}
	}

	return r
}
