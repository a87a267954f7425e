// Package scheduler triggers the generation and escalation batches on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"facilities-maintenance-backend/config"
	"facilities-maintenance-backend/internal/escalation"
	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/metrics"
	"facilities-maintenance-backend/internal/schedule"
)

// Generator runs the schedule generation batch.
type Generator interface {
	GenerateDueSchedules(ctx context.Context, ec execution.Context) (schedule.Result, error)
}

// Sweeper runs the escalation sweep.
type Sweeper interface {
	RunSweep(ctx context.Context, ec execution.Context) (escalation.SweepResult, error)
}

// Service owns the cron triggers of both batches.
type Service struct {
	cfg       config.SchedulerConfig
	loc       *time.Location
	generator Generator
	sweeper   Sweeper
	clock     execution.Clock
	log       *logrus.Entry
}

// NewService validates the cron expressions and timezone of cfg.
func NewService(cfg config.SchedulerConfig, generator Generator, sweeper Sweeper, clock execution.Clock) (*Service, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
		}
	}
	for name, spec := range map[string]string{"generate_cron": cfg.GenerateCron, "escalation_cron": cfg.EscalationCron} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}
	if clock == nil {
		clock = execution.SystemClock{}
	}
	return &Service{
		cfg:       cfg,
		loc:       loc,
		generator: generator,
		sweeper:   sweeper,
		clock:     clock,
		log:       logger.WithComponent("scheduler"),
	}, nil
}

// Run fires both batches on their schedules until ctx is done. Overlapping
// runs of the same job are allowed.
func (s *Service) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("Scheduler is disabled. Not starting.")
		return nil
	}

	cronLog := cron.PrintfLogger(logger.Logger)
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog)),
	)
	if _, err := c.AddFunc(s.cfg.GenerateCron, func() { s.GenerateOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule generation: %w", err)
	}
	if _, err := c.AddFunc(s.cfg.EscalationCron, func() { s.SweepOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule escalation sweep: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"generate":   s.cfg.GenerateCron,
		"escalation": s.cfg.EscalationCron,
		"timezone":   s.loc.String(),
	}).Info("Starting scheduler")
	c.Start()

	<-ctx.Done()
	s.log.Info("Scheduler shutting down, waiting for running jobs")
	<-c.Stop().Done()
	return nil
}

// GenerateOnce runs one generation batch.
func (s *Service) GenerateOnce(ctx context.Context) (schedule.Result, error) {
	timer := prometheus.NewTimer(metrics.JobDuration.WithLabelValues("generate"))
	defer timer.ObserveDuration()

	res, err := s.generator.GenerateDueSchedules(ctx, execution.System(s.clock).In(s.loc))
	if err != nil {
		logger.WithJob("generate").WithError(err).Error("Generation batch failed")
	}
	return res, err
}

// SweepOnce runs one escalation sweep.
func (s *Service) SweepOnce(ctx context.Context) (escalation.SweepResult, error) {
	res, err := s.sweeper.RunSweep(ctx, execution.System(s.clock).In(s.loc))
	if err != nil {
		logger.WithJob("escalation").WithError(err).Error("Escalation sweep failed")
	}
	return res, err
}
