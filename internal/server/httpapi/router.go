// Package httpapi is the JSON HTTP surface of the counter server.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/wxcounter/internal/logging"
	"github.com/gin-gonic/gin"
)

// HTTPMetrics instruments the engine and serves the scrape endpoint.
type HTTPMetrics interface {
	Middleware() gin.HandlerFunc
	Handler() http.Handler
}

// Deps bundles what NewRouter wires together. Metrics, Exports and
// LoginLimiter are optional. TrustedProxies lists the peers whose
// X-Forwarded-For is believed when resolving the client IP; empty means the
// TCP peer address is always used.
type Deps struct {
	BasePath       string
	TrustedProxies []string
	Secret         []byte
	Logger         logging.Logger
	Counters       CounterLedger
	Sessions       SessionIssuer
	Exports        Exporter
	Metrics        HTTPMetrics
	LoginLimiter   *RateLimiter
}

// NewRouter builds the gin engine with every route mounted under BasePath.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}

	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Logger.Error(context.Background(), "invalid trusted proxies, trusting none", "error", err.Error())
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), RequestID(d.Logger), AccessLog())
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	h := &handler{counters: d.Counters, sessions: d.Sessions, exports: d.Exports}

	api := r.Group(d.BasePath)

	login := []gin.HandlerFunc{}
	if d.LoginLimiter != nil {
		login = append(login, d.LoginLimiter.Middleware())
	}
	api.POST("/login", append(login, h.login)...)

	protected := api.Group("")
	protected.Use(Authenticate(d.Secret))

	protected.GET("/counters", h.listCounters)
	protected.POST("/counters", h.createCounter)
	protected.GET("/counters/:id", h.showCounter)
	protected.PUT("/counters/:id", h.updateCounter)
	protected.DELETE("/counters/:id", h.deleteCounter)
	protected.POST("/counters/top/:id", h.topCounter)

	protected.POST("/counters_records/:id", h.addRecord)
	protected.GET("/counters_records/:id", h.listRecords)

	if d.Exports != nil {
		protected.POST("/exports", h.export)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})

	return r
}
