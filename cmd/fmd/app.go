package main

import (
	"fmt"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"facilities-maintenance-backend/config"
	"facilities-maintenance-backend/internal/api"
	"facilities-maintenance-backend/internal/db"
	"facilities-maintenance-backend/internal/escalation"
	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/notification"
	"facilities-maintenance-backend/internal/schedule"
	"facilities-maintenance-backend/internal/scheduler"
	"facilities-maintenance-backend/internal/sla"
	"facilities-maintenance-backend/internal/store"
	"facilities-maintenance-backend/internal/workorder"
)

// app is the wired process.
type app struct {
	cfg       *config.Config
	store     store.Store
	pool      *notification.WorkerPool
	scheduler *scheduler.Service
	deps      api.Deps
}

func newApp(cfg *config.Config) (*app, error) {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.NewGormStore(gormDB)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	holidays := make([]sla.Holiday, 0, len(cfg.SLA.Holidays))
	for _, h := range cfg.SLA.Holidays {
		holidays = append(holidays, sla.Holiday{Name: h.Name, Month: time.Month(h.Month), Day: h.Day})
	}
	calc := sla.NewCalculator(loc, holidays)

	var (
		options   *webpush.Options
		deliverer notification.Deliverer
	)
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		options = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		deliverer = notification.NewPushDeliverer(st, options)
	} else {
		logger.Logger.Warn("VAPID keys are not configured; escalation notices will only be logged")
		deliverer = notification.LogDeliverer{}
	}
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, deliverer)

	workOrders := workorder.NewService(st, calc, cfg.SLA.DefaultWarningHours)
	factory := schedule.NewFactory(st, st, workOrders, schedule.NewGuard(st))
	generator := schedule.NewGenerator(st, factory)
	engine := escalation.NewEngine(st, escalation.NewStoreDirectory(st), pool, cfg.Escalation, cfg.SLA.DefaultWarningHours)

	clock := execution.SystemClock{}
	sched, err := scheduler.NewService(cfg.Scheduler, generator, engine, clock)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     st,
		pool:      pool,
		scheduler: sched,
		deps: api.Deps{
			Store:               st,
			WorkOrders:          workOrders,
			Schedules:           schedule.NewService(st),
			Factory:             factory,
			Generator:           generator,
			Sweeper:             engine,
			Webpush:             options,
			Clock:               clock,
			Location:            loc,
			DefaultWarningHours: cfg.SLA.DefaultWarningHours,
		},
	}, nil
}
