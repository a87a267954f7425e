// Package escalation raises breached and at-risk work orders through the
// levels of their SLA policy.
package escalation

import (
	"fmt"
	"time"

	"facilities-maintenance-backend/internal/model"
)

// DefaultIntervals are the hours between levels when neither the policy nor
// the configuration sets any.
var DefaultIntervals = []float64{2, 4, 8}

// Decision is an escalation that is due.
type Decision struct {
	Level  int
	Kind   model.EscalationKind
	Reason string
}

// Rules are the policy values an evaluation runs against.
type Rules struct {
	MaxLevel  int
	Warning   time.Duration
	Intervals []float64
}

// Evaluate decides whether wo is due for its next escalation at now. history
// is the work order's escalation log.
func Evaluate(wo model.WorkOrder, r Rules, history []model.EscalationLogEntry, now time.Time) (Decision, bool) {
	if wo.State.Terminal() {
		return Decision{}, false
	}
	if !wo.EscalationTriggered || wo.EscalationLevel == 0 {
		return initial(wo, r.Warning, now)
	}
	return progressive(wo, r, history, now)
}

// initial fires level 1 on the first matching condition: a missed response
// while work has not started, a missed resolution, or the warning window.
func initial(wo model.WorkOrder, warning time.Duration, now time.Time) (Decision, bool) {
	if d := wo.ResponseDeadline; d != nil && now.After(*d) && unstarted(wo.State) {
		return Decision{
			Level:  1,
			Kind:   model.EscalationResponseBreach,
			Reason: fmt.Sprintf("response deadline %s passed while %s", stamp(*d), wo.State),
		}, true
	}
	d := wo.ResolutionDeadline
	if d == nil {
		return Decision{}, false
	}
	if now.After(*d) {
		return Decision{
			Level:  1,
			Kind:   model.EscalationResolutionBreach,
			Reason: fmt.Sprintf("resolution deadline %s passed", stamp(*d)),
		}, true
	}
	if !now.Before(d.Add(-warning)) {
		return Decision{
			Level:  1,
			Kind:   model.EscalationWarning,
			Reason: fmt.Sprintf("resolution deadline %s is within %s", stamp(*d), warning),
		}, true
	}
	return Decision{}, false
}

// progressive raises the level once the cumulative interval since the
// level-1 escalation has elapsed. Level L+1 is due at
// first + intervals[0] + ... + intervals[L-1]; the last interval repeats.
func progressive(wo model.WorkOrder, r Rules, history []model.EscalationLogEntry, now time.Time) (Decision, bool) {
	maxLevel := r.MaxLevel
	if maxLevel < 1 {
		maxLevel = 1
	}
	if wo.EscalationLevel >= maxLevel {
		return Decision{}, false
	}
	first, ok := anchor(history)
	if !ok {
		return Decision{}, false
	}

	intervals := r.Intervals
	if len(intervals) == 0 {
		intervals = DefaultIntervals
	}
	var elapsed time.Duration
	for i := 0; i < wo.EscalationLevel; i++ {
		elapsed += hours(intervals[min(i, len(intervals)-1)])
	}
	due := first.Add(elapsed)
	if now.Before(due) {
		return Decision{}, false
	}

	return Decision{
		Level:  wo.EscalationLevel + 1,
		Kind:   model.EscalationProgressive,
		Reason: fmt.Sprintf("unresolved %s after the first escalation at %s", elapsed, stamp(first)),
	}, true
}

// anchor returns when the work order was first escalated to level 1.
func anchor(history []model.EscalationLogEntry) (time.Time, bool) {
	var first time.Time
	found := false
	for _, e := range history {
		if e.Level != 1 {
			continue
		}
		if !found || e.EscalatedAt.Before(first) {
			first, found = e.EscalatedAt, true
		}
	}
	return first, found
}

func unstarted(s model.WorkOrderState) bool {
	return s == model.StateDraft || s == model.StateAssigned
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
