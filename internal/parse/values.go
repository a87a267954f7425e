package parse

import (
	"fmt"
	"strconv"
	"strings"

	"facilities-maintenance-backend/internal/model"
)

// legacyPriorities maps the numeric priority levels used by imported data.
var legacyPriorities = map[string]model.Priority{
	"0": model.PriorityVeryLow,
	"1": model.PriorityLow,
	"2": model.PriorityNormal,
	"3": model.PriorityHigh,
	"4": model.PriorityCritical,
}

// unitAliases accepts both nouns and the adverbs used by bulk imports.
var unitAliases = map[string]model.IntervalUnit{
	"day":       model.UnitDay,
	"days":      model.UnitDay,
	"daily":     model.UnitDay,
	"week":      model.UnitWeek,
	"weeks":     model.UnitWeek,
	"weekly":    model.UnitWeek,
	"month":     model.UnitMonth,
	"months":    model.UnitMonth,
	"monthly":   model.UnitMonth,
	"quarter":   model.UnitQuarter,
	"quarters":  model.UnitQuarter,
	"quarterly": model.UnitQuarter,
	"year":      model.UnitYear,
	"years":     model.UnitYear,
	"yearly":    model.UnitYear,
	"annually":  model.UnitYear,
}

// Intervals parses a comma separated list of positive hour values such as
// "2,4,8". An empty string yields an empty list.
func Intervals(raw string) ([]float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		h, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q in %q", p, raw)
		}
		if h <= 0 {
			return nil, fmt.Errorf("interval %q in %q must be positive", p, raw)
		}
		out = append(out, h)
	}
	return out, nil
}

// FormatIntervals is the inverse of Intervals.
func FormatIntervals(hours []float64) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = strconv.FormatFloat(h, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Priority parses a priority name or a legacy numeric level.
func Priority(raw string) (model.Priority, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	if p, ok := legacyPriorities[s]; ok {
		return p, nil
	}
	if p := model.Priority(s); p.Valid() {
		return p, nil
	}
	return "", fmt.Errorf("unknown priority %q", raw)
}

// IntervalUnit parses a recurrence unit.
func IntervalUnit(raw string) (model.IntervalUnit, error) {
	if u, ok := unitAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return u, nil
	}
	return "", fmt.Errorf("unknown interval unit %q", raw)
}

// IDList parses a comma separated list of ids, as stored on escalation entries.
func IDList(raw string) ([]int64, error) {
	var out []int64
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q in %q", p, raw)
		}
		out = append(out, id)
	}
	return out, nil
}

// FormatIDList is the inverse of IDList.
func FormatIDList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
