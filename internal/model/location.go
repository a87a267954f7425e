package model

import "time"

// Facility is the root of the location hierarchy.
type Facility struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	Code      string `gorm:"size:32;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Building belongs to a facility.
type Building struct {
	ID         int64  `gorm:"primaryKey"`
	FacilityID int64  `gorm:"index;not null"`
	Name       string `gorm:"size:128;not null"`
	CreatedAt  time.Time
}

// Floor belongs to a building.
type Floor struct {
	ID         int64  `gorm:"primaryKey"`
	BuildingID int64  `gorm:"index;not null"`
	Name       string `gorm:"size:64;not null"`
	CreatedAt  time.Time
}

// Room belongs to a floor.
type Room struct {
	ID        int64  `gorm:"primaryKey"`
	FloorID   int64  `gorm:"index;not null"`
	Name      string `gorm:"size:64;not null"`
	CreatedAt time.Time
}

// Asset is a maintained piece of equipment. Its location references may be
// partial; the full chain is derived with location.Resolve.
type Asset struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"size:256;not null"`
	Code          string `gorm:"size:64;index"`
	FacilityID    *int64 `gorm:"index"`
	BuildingID    *int64 `gorm:"index"`
	FloorID       *int64 `gorm:"index"`
	RoomID        *int64 `gorm:"index"`
	Active        bool   `gorm:"not null;index"`
	ResponsibleID *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
