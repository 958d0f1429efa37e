package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trivia-service/internal/app"
)

type RouterConfig struct {
	Service        *app.QuizService
	Auth           *Authenticator
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter wires the REST API, the websocket endpoint, health and metrics.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))

	handler := NewHandler(cfg.Service, logger)
	ws := NewWSHandler(cfg.Service, logger)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", cfg.Auth.Optional(), ws.Serve)

	api := router.Group("/api")
	{
		api.GET("/leaderboard", cfg.Auth.Optional(), handler.Leaderboard)

		protected := api.Group("")
		protected.Use(cfg.Auth.Required())
		{
			protected.GET("/me/stats", handler.Stats)

			sessions := protected.Group("/sessions")
			{
				sessions.POST("", handler.StartSession)
				sessions.GET("/:id", handler.GetSession)
				sessions.PUT("/:id/answer", handler.SelectOption)
				sessions.POST("/:id/advance", handler.Advance)
				sessions.POST("/:id/submission", handler.OpenSubmission)
				sessions.POST("/:id/complete", handler.Complete)
				sessions.POST("/:id/retry", handler.RetrySave)
			}
		}
	}
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
