package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/parse"
	"facilities-maintenance-backend/internal/schedule"
)

type createScheduleRequest struct {
	Name            string                `json:"name" binding:"required"`
	Kind            model.ScheduleKind    `json:"kind" binding:"required"`
	AssetID         *int64                `json:"asset_id"`
	FacilityID      *int64                `json:"facility_id"`
	BuildingID      *int64                `json:"building_id"`
	FloorID         *int64                `json:"floor_id"`
	RoomID          *int64                `json:"room_id"`
	MaintenanceKind model.MaintenanceKind `json:"maintenance_kind" binding:"required"`
	IntervalCount   int                   `json:"interval_count" binding:"required"`
	IntervalUnit    string                `json:"interval_unit" binding:"required"`
	JobPlanID       *int64                `json:"job_plan_id"`
	DefaultPriority string                `json:"default_priority"`
	LastOccurrence  *time.Time            `json:"last_occurrence"`
	NextOccurrence  *time.Time            `json:"next_occurrence"`
}

// CreateSchedule handles POST /api/schedules.
func (h *Handler) CreateSchedule(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := parse.IntervalUnit(req.IntervalUnit)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	var priority model.Priority
	if req.DefaultPriority != "" {
		if priority, err = parse.Priority(req.DefaultPriority); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}

	s := &model.MaintenanceSchedule{
		Name:            req.Name,
		Kind:            req.Kind,
		AssetID:         req.AssetID,
		FacilityID:      req.FacilityID,
		BuildingID:      req.BuildingID,
		FloorID:         req.FloorID,
		RoomID:          req.RoomID,
		MaintenanceKind: req.MaintenanceKind,
		IntervalCount:   req.IntervalCount,
		IntervalUnit:    unit,
		JobPlanID:       req.JobPlanID,
		DefaultPriority: priority,
		LastOccurrence:  req.LastOccurrence,
		NextOccurrence:  req.NextOccurrence,
		Active:          true,
	}
	if err := h.Schedules.Create(c.Request.Context(), ec, s); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newScheduleResponse(*s))
}

// GetSchedule handles GET /api/schedules/:id.
func (h *Handler) GetSchedule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s, err := h.Schedules.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newScheduleResponse(*s))
}

// DeactivateSchedule handles DELETE /api/schedules/:id.
func (h *Handler) DeactivateSchedule(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Schedules.Deactivate(c.Request.Context(), ec, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OutcomeResponse reports a manual generation.
type OutcomeResponse struct {
	Created []WorkOrderResponse `json:"created"`
	Skipped []int64             `json:"skipped_asset_ids"`
	Dates   []string            `json:"dates"`
}

// GenerateSchedule handles POST /api/schedules/:id/generate. With lead_days
// it generates every occurrence up to that many days ahead; otherwise only
// the next one, optionally for a single asset_id or target date.
func (h *Handler) GenerateSchedule(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s, err := h.Schedules.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	var out *schedule.Outcome
	if raw := c.Query("lead_days"); raw != "" {
		leadDays, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead_days"})
			return
		}
		overwrite, _ := strconv.ParseBool(c.DefaultQuery("overwrite", "false"))
		out, err = h.Factory.GenerateWithLeadTime(c.Request.Context(), ec, s, leadDays, overwrite)
		if err != nil {
			respondError(c, err)
			return
		}
	} else {
		var opts schedule.Options
		if raw := c.Query("asset_id"); raw != "" {
			assetID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset_id"})
				return
			}
			opts.AssetID = &assetID
		}
		if raw := c.Query("date"); raw != "" {
			day, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
				return
			}
			opts.TargetDate = &day
		}
		out, err = h.Factory.Generate(c.Request.Context(), ec, s, opts)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	resp := OutcomeResponse{
		Created: make([]WorkOrderResponse, 0, len(out.Created)),
		Skipped: out.Skipped,
		Dates:   make([]string, 0, len(out.Dates)),
	}
	if resp.Skipped == nil {
		resp.Skipped = []int64{}
	}
	for _, wo := range out.Created {
		resp.Created = append(resp.Created, newWorkOrderResponse(wo, nil))
	}
	for _, d := range out.Dates {
		resp.Dates = append(resp.Dates, d.Format(time.DateOnly))
	}
	c.JSON(http.StatusOK, resp)
}
