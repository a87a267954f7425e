package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"facilities-maintenance-backend/internal/escalation"
	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/mw"
	"facilities-maintenance-backend/internal/schedule"
	"facilities-maintenance-backend/internal/sla"
	"facilities-maintenance-backend/internal/store"
	"facilities-maintenance-backend/internal/workorder"
)

// UserIDHeader names the acting user. Requests without it act as the system.
const UserIDHeader = "X-User-ID"

// Generator runs the generation batch.
type Generator interface {
	GenerateDueSchedules(ctx context.Context, ec execution.Context) (schedule.Result, error)
}

// Sweeper runs the escalation sweep.
type Sweeper interface {
	RunSweep(ctx context.Context, ec execution.Context) (escalation.SweepResult, error)
}

// Deps are the services the handlers adapt.
type Deps struct {
	Store      store.Store
	WorkOrders *workorder.Service
	Schedules  *schedule.Service
	Factory    *schedule.Factory
	Generator  Generator
	Sweeper    Sweeper
	Webpush    *webpush.Options
	Clock      execution.Clock
	// Location decides the calendar day of API-triggered generation.
	Location *time.Location
	// DefaultWarningHours fills policies saved without a warning window.
	DefaultWarningHours float64
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
	cache *mw.ResponseCache
}

// NewHandler creates a new API handler.
func NewHandler(d Deps, cache *mw.ResponseCache) *Handler {
	if d.Clock == nil {
		d.Clock = execution.SystemClock{}
	}
	return &Handler{Deps: d, cache: cache}
}

// actor builds the execution context of a request from the user header.
func (h *Handler) actor(c *gin.Context) (execution.Context, bool) {
	raw := c.GetHeader(UserIDHeader)
	if raw == "" {
		return execution.System(h.Clock).In(h.Location), true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid " + UserIDHeader})
		return execution.Context{}, false
	}
	user, err := h.Store.GetUser(c.Request.Context(), id)
	if err != nil || !user.Active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return execution.Context{}, false
	}
	return execution.ForUser(*user, h.Clock).In(h.Location), true
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		woErr    *workorder.ValidationError
		schedErr *schedule.ValidationError
		slaErr   *sla.ValidationError
	)
	switch {
	case errors.As(err, &woErr), errors.As(err, &schedErr), errors.As(err, &slaErr),
		errors.Is(err, schedule.ErrNoAssetsInLocation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, sla.ErrNoActivePolicy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.WithError(err, "api").WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
