package workorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/location"
	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/sla"
	"facilities-maintenance-backend/internal/store"
)

// Service applies work order operations against the store.
type Service struct {
	store        store.Store
	resolver     *sla.Resolver
	calc         *sla.Calculator
	warningHours float64
	log          *logrus.Entry
}

// NewService creates a work order service. defaultWarningHours applies to
// work orders whose policy no longer exists.
func NewService(st store.Store, calc *sla.Calculator, defaultWarningHours float64) *Service {
	return &Service{
		store:        st,
		resolver:     sla.NewResolver(st),
		calc:         calc,
		warningHours: defaultWarningHours,
		log:          logger.WithComponent("workorder"),
	}
}

// Draft describes a work order to create.
type Draft struct {
	Title            string
	Description      string
	AssetID          *int64
	Location         location.Ref
	Kind             model.MaintenanceKind
	Priority         model.Priority
	ScheduleID       *int64
	ServiceRequestID *int64
	ScheduledDate    *time.Time
	EstimatedHours   float64
	Sections         []model.WorkOrderSection
	// Note is appended to the creation audit entry.
	Note string
}

// Create validates d, resolves its location and SLA, and stores a new draft
// work order. A missing SLA policy blocks creation with sla.ErrNoActivePolicy.
func (s *Service) Create(ctx context.Context, ec execution.Context, d Draft) (*model.WorkOrder, error) {
	if d.Title == "" {
		return nil, reject("a title is required")
	}
	if !d.Kind.Valid() {
		return nil, reject("unknown work order kind %q", d.Kind)
	}
	if !d.Priority.Valid() {
		return nil, reject("unknown priority %q", d.Priority)
	}
	if d.ScheduleID != nil && d.Kind != model.KindPreventive {
		return nil, reject("work orders generated from a schedule must be preventive")
	}

	chain, err := s.chain(ctx, d.AssetID, d.Location)
	if err != nil {
		return nil, err
	}
	if d.AssetID == nil && chain.Empty() {
		return nil, reject("an asset or a location is required")
	}

	now := ec.Now()
	wo := &model.WorkOrder{
		Title:            d.Title,
		Description:      d.Description,
		AssetID:          d.AssetID,
		Kind:             d.Kind,
		Priority:         d.Priority,
		ScheduleID:       d.ScheduleID,
		ServiceRequestID: d.ServiceRequestID,
		ScheduledDate:    d.ScheduledDate,
		EstimatedHours:   d.EstimatedHours,
		State:            model.StateDraft,
		ApprovalState:    model.ApprovalDraft,
		HoldApproval:     model.HoldNone,
		CreatedByID:      ec.Actor(),
		CreatedAt:        now,
		UpdatedAt:        now,
		Sections:         d.Sections,
	}
	chain.Apply(wo)

	policy, err := s.resolver.Resolve(ctx, wo.Priority, chain.FacilityID)
	if err != nil {
		return nil, err
	}
	s.applyPolicy(wo, *policy, now)

	note := fmt.Sprintf("created with SLA %q", policy.Name)
	if d.Note != "" {
		note = d.Note + "; " + note
	}
	if err := s.store.CreateWorkOrder(ctx, wo, model.NewAuditEntry(wo, ec.Actor(), now, "create", note)); err != nil {
		return nil, err
	}

	logger.WithWorkOrder(wo.ID, wo.Reference).WithField("sla_policy_id", policy.ID).Info("Work order created")
	return wo, nil
}

// Get returns a work order with its checklist and assignments.
func (s *Service) Get(ctx context.Context, id int64) (*model.WorkOrder, error) {
	return s.store.GetWorkOrder(ctx, id)
}

// Transition applies a lifecycle or approval action. The write is accepted
// only while the work order is still in the state it was read in.
func (s *Service) Transition(ctx context.Context, ec execution.Context, id int64, action Action, p Params) (*model.WorkOrder, error) {
	wo, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	change, err := Plan(*wo, action, p, ec)
	if err != nil {
		return nil, err
	}

	now := ec.Now()
	audit := model.NewAuditEntry(wo, ec.Actor(), now, string(action), auditNote(change))
	err = s.store.UpdateWorkOrder(ctx, id, store.WorkOrderUpdate{
		ExpectedState: change.From,
		Fields:        change.Fields,
		BumpVersion:   true,
		NewAssignment: change.NewAssignment,
		Audit:         &audit,
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithWorkOrder(wo.ID, wo.Reference).WithFields(logrus.Fields{
		"action": action,
		"from":   change.From,
		"to":     change.To,
	})
	log.Info("Work order transitioned")

	if change.ResolvesEscalations {
		n, err := s.store.ResolveEscalations(ctx, id, ec.Actor(), now)
		if err != nil {
			// The transition is committed; open entries stay visible until the next close.
			log.WithError(err).Error("Failed to resolve escalations")
		} else if n > 0 {
			log.WithField("resolved", n).Info("Resolved open escalations")
		}
	}

	return s.store.GetWorkOrder(ctx, id)
}

// RecalculateSLA re-resolves the policy and deadlines from the creation time.
func (s *Service) RecalculateSLA(ctx context.Context, ec execution.Context, id int64) (*model.WorkOrder, error) {
	wo, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if wo.State.Terminal() {
		return nil, reject("cannot recalculate SLA: work order %s is %s", wo.Reference, wo.State)
	}

	fields, policy, err := s.slaFields(ctx, *wo, wo.Priority, location.Chain(location.OfWorkOrder(*wo)))
	if err != nil {
		return nil, err
	}

	audit := model.NewAuditEntry(wo, ec.Actor(), ec.Now(), "recalculate_sla", fmt.Sprintf("SLA %q", policy.Name))
	if err := s.store.UpdateWorkOrder(ctx, id, store.WorkOrderUpdate{
		ExpectedState: wo.State,
		Fields:        fields,
		Audit:         &audit,
	}); err != nil {
		return nil, err
	}
	return s.store.GetWorkOrder(ctx, id)
}

// FieldChange lists user-editable fields. Nil means unchanged.
type FieldChange struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *model.Priority `json:"priority"`
	AssetID     *int64          `json:"asset_id"`
	SLAPolicyID *int64          `json:"sla_policy_id"`
}

// UpdateFields edits a work order. A priority or asset change re-resolves the
// SLA; the SLA reference itself cannot be set by a user.
func (s *Service) UpdateFields(ctx context.Context, ec execution.Context, id int64, fc FieldChange) (*model.WorkOrder, error) {
	if fc.SLAPolicyID != nil {
		return nil, reject("the SLA policy is assigned automatically and cannot be edited")
	}

	wo, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if wo.State.Terminal() && wo.State != model.StateCompleted {
		return nil, reject("cannot edit: work order %s is %s", wo.Reference, wo.State)
	}

	fields := map[string]any{}
	if fc.Title != nil {
		if *fc.Title == "" {
			return nil, reject("a title is required")
		}
		fields["title"] = *fc.Title
	}
	if fc.Description != nil {
		fields["description"] = *fc.Description
	}

	priority := wo.Priority
	if fc.Priority != nil && *fc.Priority != wo.Priority {
		if !fc.Priority.Valid() {
			return nil, reject("unknown priority %q", *fc.Priority)
		}
		if wo.State == model.StateCompleted {
			return nil, reject("cannot change priority: work order %s is completed", wo.Reference)
		}
		priority = *fc.Priority
		fields["priority"] = priority
	}

	chain := location.Chain(location.OfWorkOrder(*wo))
	assetChanged := fc.AssetID != nil && (wo.AssetID == nil || *wo.AssetID != *fc.AssetID)
	if assetChanged {
		if wo.State == model.StateInProgress || wo.State == model.StateCompleted {
			return nil, reject("cannot change the asset of a work order that is %s", wo.State)
		}
		chain, err = s.chain(ctx, fc.AssetID, location.Ref{})
		if err != nil {
			return nil, err
		}
		fields["asset_id"] = *fc.AssetID
		fields["facility_id"] = nullable(chain.FacilityID)
		fields["building_id"] = nullable(chain.BuildingID)
		fields["floor_id"] = nullable(chain.FloorID)
		fields["room_id"] = nullable(chain.RoomID)
	}

	note := "fields updated"
	if priority != wo.Priority || assetChanged {
		slaFields, policy, err := s.slaFields(ctx, *wo, priority, chain)
		if err != nil {
			return nil, err
		}
		for k, v := range slaFields {
			fields[k] = v
		}
		note = fmt.Sprintf("fields updated; SLA %q", policy.Name)
	}
	if len(fields) == 0 {
		return wo, nil
	}

	audit := model.NewAuditEntry(wo, ec.Actor(), ec.Now(), "update", note)
	if err := s.store.UpdateWorkOrder(ctx, id, store.WorkOrderUpdate{
		ExpectedState: wo.State,
		Fields:        fields,
		Audit:         &audit,
	}); err != nil {
		return nil, err
	}
	return s.store.GetWorkOrder(ctx, id)
}

// Inspect evaluates the SLA status of a work order at the context's time and
// stamps the first observed breach.
func (s *Service) Inspect(ctx context.Context, ec execution.Context, id int64) (*model.WorkOrder, sla.Report, error) {
	wo, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, sla.Report{}, err
	}

	warning := s.warningHours
	if wo.SLAPolicyID != nil {
		p, err := s.store.GetPolicy(ctx, *wo.SLAPolicyID)
		switch {
		case err == nil:
			warning = p.WarningHours
		case !errors.Is(err, store.ErrNotFound):
			return nil, sla.Report{}, err
		}
	}

	now := ec.Now()
	report := sla.Inspect(*wo, warning, now)
	if report.Breached() && wo.SLABreachedAt == nil {
		if err := s.store.MarkBreached(ctx, wo.ID, now); err != nil {
			return nil, sla.Report{}, err
		}
		wo.SLABreachedAt = &now
		report.BreachedAt = &now
	}
	return wo, report, nil
}

// History returns the escalation log of a work order.
func (s *Service) History(ctx context.Context, id int64) ([]model.EscalationLogEntry, error) {
	if _, err := s.store.GetWorkOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.store.EscalationHistory(ctx, id)
}

// chain resolves the location of an asset, or of ref when no asset is given.
func (s *Service) chain(ctx context.Context, assetID *int64, ref location.Ref) (location.Chain, error) {
	if assetID != nil {
		asset, err := s.store.GetAsset(ctx, *assetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return location.Chain{}, reject("asset %d does not exist", *assetID)
			}
			return location.Chain{}, err
		}
		ref = location.OfAsset(*asset)
	}
	tree, err := s.store.LocationTree(ctx)
	if err != nil {
		return location.Chain{}, err
	}
	return location.Resolve(ref, tree), nil
}

func (s *Service) applyPolicy(wo *model.WorkOrder, p model.SLAPolicy, created time.Time) {
	response, resolution := s.calc.Deadlines(p, created)
	wo.SLAPolicyID = &p.ID
	wo.ResponseDeadline = &response
	wo.ResolutionDeadline = &resolution
}

func (s *Service) slaFields(ctx context.Context, wo model.WorkOrder, priority model.Priority, chain location.Chain) (map[string]any, *model.SLAPolicy, error) {
	policy, err := s.resolver.Resolve(ctx, priority, chain.FacilityID)
	if err != nil {
		return nil, nil, err
	}
	s.applyPolicy(&wo, *policy, wo.CreatedAt)
	return map[string]any{
		"sla_policy_id":       policy.ID,
		"response_deadline":   *wo.ResponseDeadline,
		"resolution_deadline": *wo.ResolutionDeadline,
	}, policy, nil
}

func auditNote(c *Change) string {
	note := string(c.From)
	if c.To != c.From {
		note += " -> " + string(c.To)
	}
	if c.NewAssignment != nil {
		note += fmt.Sprintf("; assigned technician %d", c.NewAssignment.TechnicianID)
	}
	if c.Note != "" {
		note += ": " + c.Note
	}
	return note
}

func nullable(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
