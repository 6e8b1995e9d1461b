package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"maintenance-backend/internal/mw"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	RateLimit      float64
	RateBurst      int
	IPHeader       string
	CacheTTL       time.Duration
	AllowedOrigins []string
	// MetricsPath exposes Prometheus metrics when set.
	MetricsPath string
	// Cache holds cached dashboard responses. Background writers flush it too; nil
	// gives the router a private cache.
	Cache *cache.Cache
}

// NewViewCache creates the store for cached dashboard responses.
func NewViewCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return cache.New(ttl, 2*ttl)
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	if len(opts.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = opts.AllowedOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, mw.UserHeader)
		r.Use(cors.New(corsCfg))
	}

	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst, opts.IPHeader)

	cacheStore := opts.Cache
	if cacheStore == nil {
		cacheStore = NewViewCache(opts.CacheTTL)
	}
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Actor(), mw.InvalidateOnWrite(cacheStore))
	{
		api.POST("/generate", h.Generate)

		api.POST("/plans", h.CreatePlan)
		api.GET("/plans/overview", caching, h.PlanOverview)

		api.GET("/machines/status", caching, h.MachineStatus)
		api.POST("/machines/:id/readings", h.RecordReading)

		api.PUT("/users/:id/skill-level", h.SetSkillLevel)
		api.GET("/users/:id/tasks/today", caching, h.TodayTasks)

		api.POST("/tasks", h.CreateTask)
		api.GET("/tasks/:id", h.GetTask)
		api.DELETE("/tasks/:id", h.DeleteTask)
		api.POST("/tasks/:id/start", h.StartTask)
		api.POST("/tasks/:id/complete", h.CompleteTask)
		api.POST("/tasks/:id/cancel", h.CancelTask)
		api.POST("/tasks/:id/checklist", h.SubmitChecklist)
		api.PUT("/tasks/:id/assignee", h.AssignTask)
		api.POST("/tasks/:id/escalations", h.OpenEscalation)

		api.GET("/escalations/unassigned", caching, h.UnassignedEscalations)
		api.GET("/escalations/:id", h.GetEscalation)
		api.POST("/escalations/:id/acknowledge", h.AcknowledgeEscalation)
		api.POST("/escalations/:id/resolve", h.ResolveEscalation)
		api.POST("/escalations/:id/close", h.CloseEscalation)
		api.POST("/escalations/:id/raise", h.RaiseEscalation)

		api.POST("/assignments", h.CreateAssignment)
		api.POST("/assignments/auto", h.AutoAssign)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
