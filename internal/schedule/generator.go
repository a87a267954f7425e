package schedule

import (
	"context"
	"fmt"
	"time"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/metrics"
	"facilities-maintenance-backend/internal/model"
)

// DueLister lists schedules ready for generation and records audit notes.
type DueLister interface {
	DueSchedules(ctx context.Context, now time.Time) ([]model.MaintenanceSchedule, error)
	AddAuditEntry(ctx context.Context, e *model.AuditEntry) error
}

// ScheduleError is the failure of one schedule within a batch.
type ScheduleError struct {
	ScheduleID int64  `json:"schedule_id"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

// Result summarises a batch run.
type Result struct {
	GeneratedCount int             `json:"generated_count"`
	Errors         []ScheduleError `json:"errors"`
}

// Generator runs the periodic generation batch.
type Generator struct {
	schedules DueLister
	factory   *Factory
}

// NewGenerator creates a Generator.
func NewGenerator(schedules DueLister, factory *Factory) *Generator {
	return &Generator{schedules: schedules, factory: factory}
}

// GenerateDueSchedules generates every due preventive schedule. A failing
// schedule is noted on its audit trail and the batch moves on.
func (g *Generator) GenerateDueSchedules(ctx context.Context, ec execution.Context) (Result, error) {
	var res Result
	log := logger.WithJob("generate")

	due, err := g.schedules.DueSchedules(ctx, ec.Today())
	if err != nil {
		return res, err
	}
	log.WithField("due", len(due)).Info("Generating due schedules")

	for i := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s := &due[i]
		out, err := g.factory.Generate(ctx, ec, s, Options{})
		if out != nil {
			res.GeneratedCount += len(out.Created)
			metrics.WorkOrdersGenerated.Add(float64(len(out.Created)))
			for _, wo := range out.Created {
				g.note(ctx, ec, s, "generated", fmt.Sprintf("generated %s with %d tasks", wo.Reference, taskCount(wo)))
			}
		}
		if err != nil {
			metrics.GenerationFailures.Inc()
			logger.WithSchedule(s.ID, s.Name).WithError(err).Warn("Schedule generation failed")
			res.Errors = append(res.Errors, ScheduleError{ScheduleID: s.ID, Name: s.Name, Error: err.Error()})
			g.note(ctx, ec, s, "generation_failed", err.Error())
		}
	}

	log.WithField("generated", res.GeneratedCount).WithField("failed", len(res.Errors)).Info("Generation finished")
	return res, nil
}

func (g *Generator) note(ctx context.Context, ec execution.Context, s *model.MaintenanceSchedule, action, note string) {
	entry := model.NewAuditEntry(s, ec.Actor(), ec.Now(), action, note)
	if err := g.schedules.AddAuditEntry(ctx, &entry); err != nil {
		logger.WithSchedule(s.ID, s.Name).WithError(err).Error("Failed to write audit note")
	}
}

func taskCount(wo model.WorkOrder) int {
	n := 0
	for _, s := range wo.Sections {
		n += len(s.Tasks)
	}
	return n
}
