// Package sla resolves SLA policies for work orders, computes their deadlines
// and evaluates deadline status.
package sla

import (
	"errors"
	"sort"

	"facilities-maintenance-backend/internal/model"
)

// ErrNoActivePolicy is a configuration error: no active policy exists at all.
var ErrNoActivePolicy = errors.New("no active SLA policy is configured")

type tier func(p model.SLAPolicy, priority model.Priority, facilityID int64) bool

// tiers are tried most specific first.
var tiers = []tier{
	// facility and priority
	func(p model.SLAPolicy, priority model.Priority, facilityID int64) bool {
		return facilityID != 0 && p.CoversFacility(facilityID) && p.Priority == priority
	},
	// facility, any priority
	func(p model.SLAPolicy, _ model.Priority, facilityID int64) bool {
		return facilityID != 0 && p.CoversFacility(facilityID) && p.Priority == ""
	},
	// any facility, priority
	func(p model.SLAPolicy, priority model.Priority, _ int64) bool {
		return len(p.Facilities) == 0 && p.Priority == priority
	},
	// any active policy
	func(model.SLAPolicy, model.Priority, int64) bool {
		return true
	},
}

// Select picks the most specific active policy for a work order with the given
// priority at facilityID (zero if unknown). Within a tier the highest Rank
// wins, then the lowest id.
func Select(policies []model.SLAPolicy, priority model.Priority, facilityID int64) (*model.SLAPolicy, error) {
	active := make([]model.SLAPolicy, 0, len(policies))
	for _, p := range policies {
		if p.Active {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoActivePolicy
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Rank != active[j].Rank {
			return active[i].Rank > active[j].Rank
		}
		return active[i].ID < active[j].ID
	})

	for _, match := range tiers {
		for i := range active {
			if match(active[i], priority, facilityID) {
				p := active[i]
				return &p, nil
			}
		}
	}
	return nil, ErrNoActivePolicy
}
