package httpapi

import (
	"net/http"

	"seat_monitor_bot/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Router wires the admin API endpoints. Watcher management requires the
// configured API key; health and session state are open, and everything is
// open when no key is configured.
type Router struct {
	Engine *gin.Engine
}

func NewRouter(admin *app.AdminService, apiKey string, logger *logrus.Logger) *Router {
	r := gin.Default()
	h := &handlers{admin: admin, logger: logger}

	r.GET("/health", h.health)
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/session", h.sessionStatus)

	guarded := r.Group("/", requireAPIKey(apiKey))
	guarded.GET("/watchers", h.listWatchers)
	guarded.POST("/watchers", h.createWatcher)
	guarded.POST("/watchers/:id/disable", h.disableWatcher)

	return &Router{Engine: r}
}

// requireAPIKey checks the X-API-Key header. When no key is configured the
// check is skipped entirely.
func requireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid API key"})
			return
		}
		c.Next()
	}
}

func (r *Router) Run(addr string) error {
	return r.Engine.Run(addr)
}
