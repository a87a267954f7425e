package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"facilities-maintenance-backend/internal/location"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/parse"
	"facilities-maintenance-backend/internal/workorder"
)

type createWorkOrderRequest struct {
	Title            string                `json:"title" binding:"required"`
	Description      string                `json:"description"`
	AssetID          *int64                `json:"asset_id"`
	FacilityID       int64                 `json:"facility_id"`
	BuildingID       int64                 `json:"building_id"`
	FloorID          int64                 `json:"floor_id"`
	RoomID           int64                 `json:"room_id"`
	Kind             model.MaintenanceKind `json:"kind" binding:"required"`
	Priority         string                `json:"priority"`
	ServiceRequestID *int64                `json:"service_request_id"`
	ScheduledDate    *time.Time            `json:"scheduled_date"`
	EstimatedHours   float64               `json:"estimated_hours"`
}

// CreateWorkOrder handles POST /api/work-orders.
func (h *Handler) CreateWorkOrder(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	var req createWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	priority := model.PriorityNormal
	if req.Priority != "" {
		p, err := parse.Priority(req.Priority)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		priority = p
	}

	wo, err := h.WorkOrders.Create(c.Request.Context(), ec, workorder.Draft{
		Title:            req.Title,
		Description:      req.Description,
		AssetID:          req.AssetID,
		Location:         location.Ref{FacilityID: req.FacilityID, BuildingID: req.BuildingID, FloorID: req.FloorID, RoomID: req.RoomID},
		Kind:             req.Kind,
		Priority:         priority,
		ServiceRequestID: req.ServiceRequestID,
		ScheduledDate:    req.ScheduledDate,
		EstimatedHours:   req.EstimatedHours,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWorkOrderResponse(*wo, nil))
}

// GetWorkOrder handles GET /api/work-orders/:id. The SLA standing is
// evaluated at read time.
func (h *Handler) GetWorkOrder(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	wo, report, err := h.WorkOrders.Inspect(c.Request.Context(), ec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkOrderResponse(*wo, &report))
}

type transitionRequest struct {
	Action workorder.Action `json:"action" binding:"required"`
	workorder.Params
}

// TransitionWorkOrder handles POST /api/work-orders/:id/transitions.
func (h *Handler) TransitionWorkOrder(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wo, err := h.WorkOrders.Transition(c.Request.Context(), ec, id, req.Action, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkOrderResponse(*wo, nil))
}

// UpdateWorkOrder handles PATCH /api/work-orders/:id.
func (h *Handler) UpdateWorkOrder(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req workorder.FieldChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wo, err := h.WorkOrders.UpdateFields(c.Request.Context(), ec, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkOrderResponse(*wo, nil))
}

// RecalculateSLA handles POST /api/work-orders/:id/sla/recalculate.
func (h *Handler) RecalculateSLA(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	wo, err := h.WorkOrders.RecalculateSLA(c.Request.Context(), ec, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkOrderResponse(*wo, nil))
}

// GetEscalations handles GET /api/work-orders/:id/escalations.
func (h *Handler) GetEscalations(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.WorkOrders.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]EscalationResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newEscalationResponse(e))
	}
	c.JSON(http.StatusOK, resp)
}

type assignmentRequest struct {
	TechnicianID   int64  `json:"technician_id" binding:"required"`
	TechnicianName string `json:"technician_name"`
}

// AddAssignment handles POST /api/work-orders/:id/assignments.
func (h *Handler) AddAssignment(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wo, err := h.WorkOrders.AddAssignment(c.Request.Context(), ec, id, req.TechnicianID, req.TechnicianName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWorkOrderResponse(*wo, nil))
}

type assignmentActionRequest struct {
	Action workorder.AssignmentAction `json:"action" binding:"required"`
}

// UpdateAssignment handles PATCH /api/work-orders/:id/assignments/:assignment_id.
func (h *Handler) UpdateAssignment(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	assignmentID, ok := idParam(c, "assignment_id")
	if !ok {
		return
	}
	var req assignmentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wo, err := h.WorkOrders.UpdateAssignment(c.Request.Context(), ec, id, assignmentID, req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWorkOrderResponse(*wo, nil))
}

type taskRequest struct {
	Done bool `json:"done"`
}

// ToggleTask handles PUT /api/work-orders/:id/tasks/:task_id.
func (h *Handler) ToggleTask(c *gin.Context) {
	ec, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	taskID, ok := idParam(c, "task_id")
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.WorkOrders.ToggleTask(c.Request.Context(), ec, id, taskID, req.Done); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
