package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kamiscan-backend/internal/shared/config"
	"kamiscan-backend/internal/shared/metrics"
	"kamiscan-backend/internal/shared/server/middleware"
	"kamiscan-backend/internal/shared/server/respond"
)

const apiPrefix = "/api/v1"

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// DevRouteRegistrar is implemented by handlers with dev-only routes.
type DevRouteRegistrar interface {
	RegisterDevRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries the handlers mounted under /api/v1.
type RouterDeps struct {
	Config      config.Config
	Handlers    []RouteRegistrar
	DevHandlers []DevRouteRegistrar
	// Limiter is shared by every request; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

// Rate limit groups. Generation routes cost far more than reads.
var rateLimitRules = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 5, Burst: 20},
	"AI":      {Rate: 0.2, Burst: 5},
}

var aiRoutes = map[string]bool{
	apiPrefix + "/summarize":           true,
	apiPrefix + "/ai/advanced-process": true,
	apiPrefix + "/ai/chat-with-pdf":    true,
}

// PublicPrefixes are reachable without a session.
var PublicPrefixes = []string{
	apiPrefix + "/health",
	apiPrefix + "/metrics",
	apiPrefix + "/env-check",
	apiPrefix + "/auth/google/",
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(PublicPrefixes...),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rateLimitRules,
			DefaultGroup: "DEFAULT",
			GroupFor:     rateLimitGroup,
			Limiter:      deps.Limiter,
		}),
	)

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "env": deps.Config.Env})
	})
	api.GET("/metrics", metrics.Handler())
	api.GET("/env-check", func(c *gin.Context) {
		respond.OK(c, gin.H{"env": deps.Config.Env, "configured": deps.Config.Presence()})
	})

	for _, handler := range deps.Handlers {
		if handler != nil {
			handler.RegisterRoutes(api)
		}
	}
	if isDevLike(deps.Config.Env) {
		dev := api.Group("/dev")
		for _, handler := range deps.DevHandlers {
			if handler != nil {
				handler.RegisterDevRoutes(dev)
			}
		}
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if aiRoutes[c.FullPath()] {
		return "AI"
	}
	return "DEFAULT"
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
