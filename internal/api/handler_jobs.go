package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facilities-maintenance-backend/internal/schedule"
)

// RunGeneration handles POST /api/jobs/generate.
func (h *Handler) RunGeneration(c *gin.Context) {
	ec, ok := h.policyWriter(c)
	if !ok {
		return
	}

	res, err := h.Generator.GenerateDueSchedules(c.Request.Context(), ec)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Errors == nil {
		res.Errors = []schedule.ScheduleError{}
	}
	c.JSON(http.StatusOK, res)
}

// RunEscalation handles POST /api/jobs/escalations.
func (h *Handler) RunEscalation(c *gin.Context) {
	ec, ok := h.policyWriter(c)
	if !ok {
		return
	}

	res, err := h.Sweeper.RunSweep(c.Request.Context(), ec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
