// Package location derives the full facility/building/floor/room chain of an
// asset or partial location reference.
package location

import "facilities-maintenance-backend/internal/model"

// Level is a tier of the location hierarchy.
type Level int

const (
	LevelNone Level = iota
	LevelFacility
	LevelBuilding
	LevelFloor
	LevelRoom
)

func (l Level) String() string {
	switch l {
	case LevelFacility:
		return "facility"
	case LevelBuilding:
		return "building"
	case LevelFloor:
		return "floor"
	case LevelRoom:
		return "room"
	}
	return "none"
}

// Ref is a possibly partial location reference. Zero means unset.
type Ref struct {
	FacilityID int64
	BuildingID int64
	FloorID    int64
	RoomID     int64
}

// Chain is a resolved location. Levels that cannot be derived stay zero.
type Chain Ref

// Tree holds the parent links of the hierarchy.
type Tree struct {
	RoomFloor        map[int64]int64
	FloorBuilding    map[int64]int64
	BuildingFacility map[int64]int64
}

// NewTree builds a Tree from registry records.
func NewTree(buildings []model.Building, floors []model.Floor, rooms []model.Room) Tree {
	t := Tree{
		RoomFloor:        make(map[int64]int64, len(rooms)),
		FloorBuilding:    make(map[int64]int64, len(floors)),
		BuildingFacility: make(map[int64]int64, len(buildings)),
	}
	for _, b := range buildings {
		t.BuildingFacility[b.ID] = b.FacilityID
	}
	for _, f := range floors {
		t.FloorBuilding[f.ID] = f.BuildingID
	}
	for _, r := range rooms {
		t.RoomFloor[r.ID] = r.FloorID
	}
	return t
}

// Resolve fills every ancestor of the most specific level in ref. When ref
// names a room, its floor, building and facility come from the tree and
// override whatever ref says at those levels.
func Resolve(ref Ref, tree Tree) Chain {
	c := Chain(ref)
	if c.RoomID != 0 {
		if floor, ok := tree.RoomFloor[c.RoomID]; ok {
			c.FloorID = floor
		}
	}
	if c.FloorID != 0 {
		if building, ok := tree.FloorBuilding[c.FloorID]; ok {
			c.BuildingID = building
		}
	}
	if c.BuildingID != 0 {
		if facility, ok := tree.BuildingFacility[c.BuildingID]; ok {
			c.FacilityID = facility
		}
	}
	return c
}

// MostSpecific returns the deepest level set in c and its id.
func (c Chain) MostSpecific() (Level, int64) {
	switch {
	case c.RoomID != 0:
		return LevelRoom, c.RoomID
	case c.FloorID != 0:
		return LevelFloor, c.FloorID
	case c.BuildingID != 0:
		return LevelBuilding, c.BuildingID
	case c.FacilityID != 0:
		return LevelFacility, c.FacilityID
	}
	return LevelNone, 0
}

// Contains reports whether c lies at or below the location (level, id).
func (c Chain) Contains(level Level, id int64) bool {
	switch level {
	case LevelRoom:
		return c.RoomID == id
	case LevelFloor:
		return c.FloorID == id
	case LevelBuilding:
		return c.BuildingID == id
	case LevelFacility:
		return c.FacilityID == id
	}
	return false
}

// Empty reports whether no level is set.
func (c Chain) Empty() bool {
	l, _ := c.MostSpecific()
	return l == LevelNone
}

// OfAsset returns the reference stored on an asset.
func OfAsset(a model.Asset) Ref {
	return refOf(a.FacilityID, a.BuildingID, a.FloorID, a.RoomID)
}

// OfSchedule returns the location target of a schedule.
func OfSchedule(s model.MaintenanceSchedule) Ref {
	return refOf(s.FacilityID, s.BuildingID, s.FloorID, s.RoomID)
}

// OfWorkOrder returns the explicit location of a work order.
func OfWorkOrder(w model.WorkOrder) Ref {
	return refOf(w.FacilityID, w.BuildingID, w.FloorID, w.RoomID)
}

// Apply writes the chain onto a work order's location fields.
func (c Chain) Apply(w *model.WorkOrder) {
	w.FacilityID = ptr(c.FacilityID)
	w.BuildingID = ptr(c.BuildingID)
	w.FloorID = ptr(c.FloorID)
	w.RoomID = ptr(c.RoomID)
}

func refOf(facility, building, floor, room *int64) Ref {
	return Ref{
		FacilityID: val(facility),
		BuildingID: val(building),
		FloorID:    val(floor),
		RoomID:     val(room),
	}
}

func val(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
