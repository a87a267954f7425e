package schedule

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
	"facilities-maintenance-backend/internal/recurrence"
	"facilities-maintenance-backend/internal/workorder"
)

// DefaultEstimatedHours applies when a schedule has no job plan hours.
const DefaultEstimatedHours = 8

// MaxLeadDays bounds lead-time generation.
const MaxLeadDays = 366

// ErrNoAssetsInLocation is returned when a location schedule matches no
// active asset.
var ErrNoAssetsInLocation = errors.New("no active assets in location")

// Registry resolves assets and the location hierarchy.
type Registry interface {
	GetAsset(ctx context.Context, id int64) (*model.Asset, error)
	ActiveAssets(ctx context.Context) ([]model.Asset, error)
	LocationTree(ctx context.Context) (location.Tree, error)
}

// Advancer moves a schedule's occurrence dates, provided its next occurrence
// is still from. It reports false when another run got there first.
type Advancer interface {
	AdvanceSchedule(ctx context.Context, id int64, from, last *time.Time, next time.Time) (bool, error)
}

// Creator creates work orders; satisfied by *workorder.Service.
type Creator interface {
	Create(ctx context.Context, ec execution.Context, d workorder.Draft) (*model.WorkOrder, error)
}

// Options narrows a single generation. Zero values use the schedule's own
// asset and next occurrence.
type Options struct {
	AssetID    *int64
	TargetDate *time.Time
}

// Outcome reports what a generation did.
type Outcome struct {
	Created []model.WorkOrder
	// Skipped lists asset ids already covered by an open work order.
	Skipped []int64
	Dates   []time.Time
}

// Factory turns schedules into work orders.
type Factory struct {
	registry Registry
	advancer Advancer
	creator  Creator
	guard    *Guard
}

// NewFactory creates a Factory.
func NewFactory(registry Registry, advancer Advancer, creator Creator, guard *Guard) *Factory {
	return &Factory{registry: registry, advancer: advancer, creator: creator, guard: guard}
}

// Generate creates the work orders of one occurrence of s and advances the
// schedule when that occurrence is its next one.
func (f *Factory) Generate(ctx context.Context, ec execution.Context, s *model.MaintenanceSchedule, opts Options) (*Outcome, error) {
	if !s.Active {
		return nil, reject("schedule %q is inactive", s.Name)
	}

	var day time.Time
	if opts.TargetDate != nil {
		day = execution.Day(*opts.TargetDate)
	} else {
		next, err := nextOccurrence(*s)
		if err != nil {
			return nil, err
		}
		day = next
	}

	assets, err := f.targets(ctx, *s, opts.AssetID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Dates: []time.Time{day}}
	if opts.TargetDate != nil && (s.NextOccurrence == nil || !execution.Day(*s.NextOccurrence).Equal(day)) {
		return out, f.generateOn(ctx, ec, s, assets, day, On(day), false, out)
	}

	undo, ok, err := f.claim(ctx, s, day, day)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.WithSchedule(s.ID, s.Name).WithField("date", day.Format(time.DateOnly)).Info("Occurrence already taken by another run")
		out.Skipped = append(out.Skipped, assetIDs(assets)...)
		return out, nil
	}
	if err := f.generateOn(ctx, ec, s, assets, day, On(day), false, out); err != nil {
		undo()
		return out, err
	}
	return out, nil
}

// GenerateWithLeadTime creates one work order per asset for every occurrence
// from the next due date up to today plus leadDays. Unless overwrite is set,
// occurrences already covered by an open work order are skipped.
func (f *Factory) GenerateWithLeadTime(ctx context.Context, ec execution.Context, s *model.MaintenanceSchedule, leadDays int, overwrite bool) (*Outcome, error) {
	if !s.Active {
		return nil, reject("schedule %q is inactive", s.Name)
	}
	if leadDays < 0 || leadDays > MaxLeadDays {
		return nil, reject("lead time must be between 0 and %d days", MaxLeadDays)
	}

	anchor, err := nextOccurrence(*s)
	if err != nil {
		return nil, err
	}
	today := ec.Today()
	from := today
	if anchor.Before(from) {
		from = anchor
	}
	dates, err := recurrence.Between(anchor, s.IntervalCount, s.IntervalUnit, from, today.AddDate(0, 0, leadDays))
	if err != nil {
		return nil, reject("schedule %q: %v", s.Name, err)
	}

	out := &Outcome{Dates: dates}
	if len(dates) == 0 {
		return out, nil
	}

	assets, err := f.targets(ctx, *s, nil)
	if err != nil {
		return nil, err
	}
	undo, ok, err := f.claim(ctx, s, anchor, dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	if !ok && !overwrite {
		logger.WithSchedule(s.ID, s.Name).Info("Occurrences already taken by another run")
		for range dates {
			out.Skipped = append(out.Skipped, assetIDs(assets)...)
		}
		return out, nil
	}
	for _, day := range dates {
		next, err := recurrence.Next(day, s.IntervalCount, s.IntervalUnit)
		if err != nil {
			if ok {
				undo()
			}
			return out, err
		}
		// Anything already open up to the next occurrence counts as covering this one.
		window := Window{From: day, To: next.AddDate(0, 0, -1)}
		if err := f.generateOn(ctx, ec, s, assets, day, window, overwrite, out); err != nil {
			if ok {
				undo()
			}
			return out, err
		}
	}
	return out, nil
}

func (f *Factory) generateOn(ctx context.Context, ec execution.Context, s *model.MaintenanceSchedule, assets []model.Asset, day time.Time, w Window, overwrite bool, out *Outcome) error {
	log := logger.WithSchedule(s.ID, s.Name).WithField("date", day.Format(time.DateOnly))
	for _, asset := range assets {
		if !overwrite {
			exists, err := f.guard.Exists(ctx, *s, asset.ID, w)
			if err != nil {
				return err
			}
			if exists {
				log.WithField("asset_id", asset.ID).Debug("Open work order already covers occurrence")
				out.Skipped = append(out.Skipped, asset.ID)
				continue
			}
		}

		wo, err := f.creator.Create(ctx, ec, draftFor(*s, asset, day))
		if err != nil {
			return fmt.Errorf("schedule %d asset %d: %w", s.ID, asset.ID, err)
		}
		log.WithFields(logrus.Fields{"asset_id": asset.ID, "reference": wo.Reference}).Info("Generated work order")
		out.Created = append(out.Created, *wo)
	}
	return nil
}

// targets returns the assets a schedule generates for.
func (f *Factory) targets(ctx context.Context, s model.MaintenanceSchedule, override *int64) ([]model.Asset, error) {
	assetID := override
	if assetID == nil && s.Kind == model.ScheduleAsset {
		assetID = s.AssetID
	}
	if assetID != nil {
		asset, err := f.registry.GetAsset(ctx, *assetID)
		if err != nil {
			return nil, err
		}
		return []model.Asset{*asset}, nil
	}
	if s.Kind != model.ScheduleLocation {
		return nil, reject("schedule %q has no asset", s.Name)
	}

	tree, err := f.registry.LocationTree(ctx)
	if err != nil {
		return nil, err
	}
	level, id := location.Resolve(location.OfSchedule(s), tree).MostSpecific()
	all, err := f.registry.ActiveAssets(ctx)
	if err != nil {
		return nil, err
	}

	var assets []model.Asset
	for _, a := range all {
		if location.Resolve(location.OfAsset(a), tree).Contains(level, id) {
			assets = append(assets, a)
		}
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("schedule %q at %s %d: %w", s.Name, level, id, ErrNoAssetsInLocation)
	}
	return assets, nil
}

// claim advances s past last before anything is generated, so of two runs
// working from the same snapshot only one proceeds. The returned undo puts
// the schedule back on anchor when generation fails.
func (f *Factory) claim(ctx context.Context, s *model.MaintenanceSchedule, anchor, last time.Time) (func(), bool, error) {
	next, err := recurrence.Next(last, s.IntervalCount, s.IntervalUnit)
	if err != nil {
		return nil, false, err
	}
	prevLast, prevNext := s.LastOccurrence, s.NextOccurrence
	ok, err := f.advancer.AdvanceSchedule(ctx, s.ID, prevNext, &last, next)
	if err != nil || !ok {
		return nil, false, err
	}
	s.LastOccurrence = &last
	s.NextOccurrence = &next

	undo := func() {
		ctx := context.WithoutCancel(ctx)
		if _, err := f.advancer.AdvanceSchedule(ctx, s.ID, &next, prevLast, anchor); err != nil {
			logger.WithSchedule(s.ID, s.Name).WithError(err).Error("Failed to release schedule occurrence")
			return
		}
		s.LastOccurrence, s.NextOccurrence = prevLast, &anchor
	}
	return undo, true, nil
}

func assetIDs(assets []model.Asset) []int64 {
	ids := make([]int64, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	return ids
}

// nextOccurrence returns the stored next date, or derives it from the last.
func nextOccurrence(s model.MaintenanceSchedule) (time.Time, error) {
	if s.NextOccurrence != nil {
		return execution.Day(*s.NextOccurrence), nil
	}
	if s.LastOccurrence != nil {
		next, err := recurrence.Next(execution.Day(*s.LastOccurrence), s.IntervalCount, s.IntervalUnit)
		if err != nil {
			return time.Time{}, reject("schedule %q: %v", s.Name, err)
		}
		return next, nil
	}
	return time.Time{}, reject("schedule %q has no next occurrence", s.Name)
}

func draftFor(s model.MaintenanceSchedule, asset model.Asset, day time.Time) workorder.Draft {
	priority := s.DefaultPriority
	if priority == "" {
		priority = model.PriorityNormal
	}
	hours := float64(DefaultEstimatedHours)
	var sections []model.WorkOrderSection
	if s.JobPlan != nil {
		if total := s.JobPlan.TotalHours(); total > 0 {
			hours = total
		}
		sections = cloneSections(*s.JobPlan)
	}
	scheduleID := s.ID
	assetID := asset.ID
	return workorder.Draft{
		Title:          fmt.Sprintf("%s - %s", s.Name, asset.Name),
		AssetID:        &assetID,
		Kind:           s.MaintenanceKind,
		Priority:       priority,
		ScheduleID:     &scheduleID,
		ScheduledDate:  &day,
		EstimatedHours: hours,
		Sections:       sections,
		Note:           fmt.Sprintf("generated from schedule %q for %s", s.Name, day.Format(time.DateOnly)),
	}
}

// cloneSections copies the plan's checklist so later template edits do not
// reach issued work orders.
func cloneSections(plan model.JobPlan) []model.WorkOrderSection {
	sections := make([]model.WorkOrderSection, 0, len(plan.Sections))
	for _, ps := range plan.Sections {
		tasks := make([]model.WorkOrderTask, 0, len(ps.Tasks))
		for _, pt := range ps.Tasks {
			tasks = append(tasks, model.WorkOrderTask{
				Name:            pt.Name,
				Sequence:        pt.Sequence,
				Description:     pt.Description,
				IsChecklistItem: pt.IsChecklistItem,
				DurationHours:   pt.DurationHours,
				ToolsMaterials:  pt.ToolsMaterials,
			})
		}
		sections = append(sections, model.WorkOrderSection{
			Name:     ps.Name,
			Sequence: ps.Sequence,
			Tasks:    tasks,
		})
	}
	return sections
}
