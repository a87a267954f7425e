package escalation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"facilities-maintenance-backend/config"
	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/metrics"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/notification"
	"facilities-maintenance-backend/internal/parse"
	"facilities-maintenance-backend/internal/sla"
	"facilities-maintenance-backend/internal/store"
)

// Store is the persistence the engine needs.
type Store interface {
	OpenWorkOrdersWithSLA(ctx context.Context) ([]model.WorkOrder, error)
	GetPolicy(ctx context.Context, id int64) (*model.SLAPolicy, error)
	EscalationHistory(ctx context.Context, workOrderID int64) ([]model.EscalationLogEntry, error)
	ApplyEscalation(ctx context.Context, workOrderID int64, fromLevel int, entry *model.EscalationLogEntry, audit model.AuditEntry) (bool, error)
}

// Dispatcher hands a notice to delivery without waiting for it.
type Dispatcher interface {
	Dispatch(n notification.Notice) bool
}

// SweepResult counts the outcome of one sweep.
type SweepResult struct {
	EscalatedCount int `json:"escalated_count"`
	CheckedCount   int `json:"checked_count"`
}

// Engine runs escalation sweeps.
type Engine struct {
	store        Store
	directory    RoleDirectory
	dispatcher   Dispatcher
	cfg          config.EscalationConfig
	warningHours float64
	log          *logrus.Entry
}

// NewEngine creates an Engine. defaultWarningHours applies to policies
// without a warning window.
func NewEngine(st Store, directory RoleDirectory, dispatcher Dispatcher, cfg config.EscalationConfig, defaultWarningHours float64) *Engine {
	return &Engine{
		store:        st,
		directory:    directory,
		dispatcher:   dispatcher,
		cfg:          cfg,
		warningHours: defaultWarningHours,
		log:          logger.WithComponent("escalation"),
	}
}

// RunSweep evaluates every open work order with an SLA and applies at most
// one escalation to each. A failing work order is logged and skipped.
func (e *Engine) RunSweep(ctx context.Context, ec execution.Context) (SweepResult, error) {
	var res SweepResult
	if !e.cfg.Enabled {
		e.log.Debug("Escalation disabled, skipping sweep")
		return res, nil
	}
	timer := prometheus.NewTimer(metrics.JobDuration.WithLabelValues("escalation"))
	defer timer.ObserveDuration()

	wos, err := e.store.OpenWorkOrdersWithSLA(ctx)
	if err != nil {
		return res, err
	}

	policies := map[int64]*model.SLAPolicy{}
	for _, wo := range wos {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.CheckedCount++

		escalated, err := e.check(ctx, ec, wo, policies)
		if err != nil {
			logger.WithWorkOrder(wo.ID, wo.Reference).WithError(err).Error("Escalation check failed")
			continue
		}
		if escalated {
			res.EscalatedCount++
		}
	}

	e.log.WithFields(logrus.Fields{
		"checked":   res.CheckedCount,
		"escalated": res.EscalatedCount,
	}).Info("Escalation sweep finished")
	return res, nil
}

func (e *Engine) check(ctx context.Context, ec execution.Context, wo model.WorkOrder, policies map[int64]*model.SLAPolicy) (bool, error) {
	policy, err := e.policy(ctx, *wo.SLAPolicyID, policies)
	if err != nil {
		return false, err
	}
	if !policy.EscalationEnabled {
		return false, nil
	}

	var history []model.EscalationLogEntry
	if wo.EscalationTriggered {
		if history, err = e.store.EscalationHistory(ctx, wo.ID); err != nil {
			return false, err
		}
	}

	now := ec.Now()
	decision, due := Evaluate(wo, e.rules(*policy), history, now)
	if !due {
		return false, nil
	}
	return e.escalate(ctx, ec, wo, policy, decision)
}

func (e *Engine) escalate(ctx context.Context, ec execution.Context, wo model.WorkOrder, policy *model.SLAPolicy, d Decision) (bool, error) {
	log := logger.WithWorkOrder(wo.ID, wo.Reference).WithFields(logrus.Fields{
		"level": d.Level,
		"kind":  d.Kind,
	})
	now := ec.Now()

	recipients := e.recipients(ctx, wo, policy, d.Level)
	entry := &model.EscalationLogEntry{
		PolicyID:     wo.SLAPolicyID,
		Level:        d.Level,
		Kind:         d.Kind,
		Reason:       d.Reason,
		Status:       model.EscalationOpen,
		RecipientIDs: parse.FormatIDList(recipients),
		DeliveryKey:  uuid.NewString(),
		EscalatedAt:  now,
		CreatedAt:    now,
	}
	audit := model.NewAuditEntry(wo, ec.Actor(), now, "escalation", fmt.Sprintf("level %d (%s): %s", d.Level, d.Kind, d.Reason))

	applied, err := e.store.ApplyEscalation(ctx, wo.ID, wo.EscalationLevel, entry, audit)
	if err != nil {
		return false, err
	}
	if !applied {
		log.Debug("Work order escalated by a concurrent sweep")
		return false, nil
	}
	metrics.Escalations.WithLabelValues(string(d.Kind)).Inc()
	log.WithField("recipients", recipients).Warn("Work order escalated")

	e.dispatcher.Dispatch(notification.Notice{
		WorkOrderID:  wo.ID,
		Reference:    wo.Reference,
		Title:        wo.Title,
		Level:        d.Level,
		Kind:         d.Kind,
		Reason:       d.Reason,
		RecipientIDs: recipients,
		DeliveryKey:  entry.DeliveryKey,
	})
	return true, nil
}

// recipients resolves who hears about an escalation: the policy's list, else
// the users holding the level's configured roles, else the creator.
func (e *Engine) recipients(ctx context.Context, wo model.WorkOrder, policy *model.SLAPolicy, level int) []int64 {
	if len(policy.Recipients) > 0 {
		return userIDs(policy.Recipients)
	}
	if roles := rolesForLevel(e.cfg.LevelRoles, level); len(roles) > 0 {
		users, err := e.directory.UsersWithRoles(ctx, roles)
		if err != nil {
			logger.WithWorkOrder(wo.ID, wo.Reference).WithError(err).Warn("Role lookup failed, falling back to creator")
		} else if len(users) > 0 {
			return userIDs(users)
		}
	}
	if wo.CreatedByID != nil {
		return []int64{*wo.CreatedByID}
	}
	return nil
}

func (e *Engine) policy(ctx context.Context, id int64, cached map[int64]*model.SLAPolicy) (*model.SLAPolicy, error) {
	if p, ok := cached[id]; ok {
		return p, nil
	}
	p, err := e.store.GetPolicy(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("policy of work order is gone: %w", err)
		}
		return nil, err
	}
	cached[id] = p
	return p, nil
}

func (e *Engine) rules(p model.SLAPolicy) Rules {
	warning := p.WarningHours
	if warning == 0 {
		warning = e.warningHours
	}
	defaults := e.cfg.DefaultIntervalsHours
	if len(defaults) == 0 {
		defaults = DefaultIntervals
	}
	return Rules{
		MaxLevel:  p.MaxEscalationLevel,
		Warning:   hours(warning),
		Intervals: sla.Intervals(p, defaults),
	}
}
