package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/parse"
	"facilities-maintenance-backend/internal/sla"
)

var policyRoles = []string{model.RoleManager, model.RoleAdmin}

type policyRequest struct {
	Name                string    `json:"name" binding:"required"`
	Active              *bool     `json:"active"`
	Rank                int       `json:"rank"`
	Priority            string    `json:"priority"`
	ResponseHours       float64   `json:"response_hours"`
	ResolutionHours     float64   `json:"resolution_hours"`
	WarningHours        float64   `json:"warning_hours"`
	EscalationEnabled   bool      `json:"escalation_enabled"`
	EscalationIntervals []float64 `json:"escalation_intervals"`
	MaxEscalationLevel  int       `json:"max_escalation_level"`
	BusinessHoursOnly   bool      `json:"business_hours_only"`
	BusinessStartHour   float64   `json:"business_start_hour"`
	BusinessEndHour     float64   `json:"business_end_hour"`
	IncludeWeekends     bool      `json:"include_weekends"`
	IncludeHolidays     bool      `json:"include_holidays"`
	FacilityIDs         []int64   `json:"facility_ids"`
	RecipientIDs        []int64   `json:"recipient_ids"`
}

func (r policyRequest) policy() (model.SLAPolicy, error) {
	p := model.SLAPolicy{
		Name:                r.Name,
		Active:              r.Active == nil || *r.Active,
		Rank:                r.Rank,
		ResponseHours:       r.ResponseHours,
		ResolutionHours:     r.ResolutionHours,
		WarningHours:        r.WarningHours,
		EscalationEnabled:   r.EscalationEnabled,
		EscalationIntervals: parse.FormatIntervals(r.EscalationIntervals),
		MaxEscalationLevel:  r.MaxEscalationLevel,
		BusinessHoursOnly:   r.BusinessHoursOnly,
		BusinessStartHour:   r.BusinessStartHour,
		BusinessEndHour:     r.BusinessEndHour,
		IncludeWeekends:     r.IncludeWeekends,
		IncludeHolidays:     r.IncludeHolidays,
	}
	if r.Priority != "" {
		priority, err := parse.Priority(r.Priority)
		if err != nil {
			return p, err
		}
		p.Priority = priority
	}
	return p, nil
}

// ListPolicies handles GET /api/sla-policies.
func (h *Handler) ListPolicies(c *gin.Context) {
	policies, err := h.Store.ListPolicies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		resp = append(resp, newPolicyResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// GetPolicy handles GET /api/sla-policies/:id.
func (h *Handler) GetPolicy(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.Store.GetPolicy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPolicyResponse(*p))
}

// CreatePolicy handles POST /api/sla-policies.
func (h *Handler) CreatePolicy(c *gin.Context) {
	ec, ok := h.policyWriter(c)
	if !ok {
		return
	}
	h.savePolicy(c, ec, nil, http.StatusCreated, "create")
}

// UpdatePolicy handles PUT /api/sla-policies/:id.
func (h *Handler) UpdatePolicy(c *gin.Context) {
	ec, ok := h.policyWriter(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	existing, err := h.Store.GetPolicy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.savePolicy(c, ec, existing, http.StatusOK, "update")
}

// DeactivatePolicy handles DELETE /api/sla-policies/:id. Work orders keep
// the deadlines they were given.
func (h *Handler) DeactivatePolicy(c *gin.Context) {
	ec, ok := h.policyWriter(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	audit := model.NewAuditEntry(model.SLAPolicy{ID: id}, ec.Actor(), ec.Now(), "deactivate", "policy deactivated")
	if err := h.Store.DeactivatePolicy(c.Request.Context(), id, audit); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) savePolicy(c *gin.Context, ec execution.Context, existing *model.SLAPolicy, status int, action string) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.policy()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if existing != nil {
		p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
	}
	if err := sla.Normalize(&p, h.DefaultWarningHours); err != nil {
		respondError(c, err)
		return
	}

	audit := model.NewAuditEntry(p, ec.Actor(), ec.Now(), action, "policy "+p.Name)
	if err := h.Store.SavePolicy(c.Request.Context(), &p, req.FacilityIDs, req.RecipientIDs, audit); err != nil {
		respondError(c, err)
		return
	}
	saved, err := h.Store.GetPolicy(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, newPolicyResponse(*saved))
}

// policyWriter rejects users without a manager or admin role.
func (h *Handler) policyWriter(c *gin.Context) (execution.Context, bool) {
	ec, ok := h.actor(c)
	if !ok {
		return ec, false
	}
	if ec.ActorID != 0 && !ec.HasRole(policyRoles...) {
		c.JSON(http.StatusForbidden, gin.H{"error": "manager role required"})
		return ec, false
	}
	return ec, true
}
