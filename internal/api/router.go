package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"facilities-maintenance-backend/config"
	"facilities-maintenance-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestID(), mw.Logger(), gin.Recovery())

	policyCache := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	handler := NewHandler(d, policyCache)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader))
	{
		api.POST("/jobs/generate", handler.RunGeneration)
		api.POST("/jobs/escalations", handler.RunEscalation)

		api.POST("/work-orders", handler.CreateWorkOrder)
		api.GET("/work-orders/:id", handler.GetWorkOrder)
		api.PATCH("/work-orders/:id", handler.UpdateWorkOrder)
		api.POST("/work-orders/:id/transitions", handler.TransitionWorkOrder)
		api.POST("/work-orders/:id/sla/recalculate", handler.RecalculateSLA)
		api.GET("/work-orders/:id/escalations", handler.GetEscalations)
		api.POST("/work-orders/:id/assignments", handler.AddAssignment)
		api.PATCH("/work-orders/:id/assignments/:assignment_id", handler.UpdateAssignment)
		api.PUT("/work-orders/:id/tasks/:task_id", handler.ToggleTask)

		api.POST("/schedules", handler.CreateSchedule)
		api.GET("/schedules/:id", handler.GetSchedule)
		api.DELETE("/schedules/:id", handler.DeactivateSchedule)
		api.POST("/schedules/:id/generate", handler.GenerateSchedule)

		policies := api.Group("/sla-policies", policyCache.FlushOnWrite())
		policies.GET("", policyCache.Handler(), handler.ListPolicies)
		policies.GET("/:id", policyCache.Handler(), handler.GetPolicy)
		policies.POST("", handler.CreatePolicy)
		policies.PUT("/:id", handler.UpdatePolicy)
		policies.DELETE("/:id", handler.DeactivatePolicy)

		api.GET("/subscriptions", handler.GetSubscriptions)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
