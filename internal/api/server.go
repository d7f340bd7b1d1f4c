// Package api exposes the classification service over HTTP with gin.
package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/pilar/internal/config"
	"github.com/crimson-sun/pilar/internal/service"
)

// Server holds the handler dependencies.
type Server struct {
	svc     *service.Service
	log     *slog.Logger
	cfg     config.ServerConfig
	version string
}

// New builds the gin engine with every route registered. The debug route
// is only present when DebugEndpoints is set; the reload route only when
// an admin token is configured.
func New(svc *service.Service, cfg config.ServerConfig, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, log: logger, cfg: cfg, version: config.Version}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(logger), cors())

	router.GET("/", s.root)
	router.GET("/health", s.health)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/test", s.test)
		apiGroup.GET("/model/status", s.modelStatus)
		apiGroup.POST("/predict", s.predict)
		if cfg.DebugEndpoints {
			apiGroup.POST("/predict/debug", s.predictDebug)
		}
		if cfg.AdminToken != "" {
			apiGroup.POST("/model/reload", s.requireAdmin(s.reload))
		}
	}
	return router
}

// requireAdmin checks the bearer token before calling the real handler.
func (s *Server) requireAdmin(realHandler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "detail": "invalid admin token"})
			return
		}
		realHandler(c)
	}
}

func (s *Server) timeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 30 * time.Second
}
