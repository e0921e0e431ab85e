// models/hero.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Universe is the publisher a hero belongs to.
type Universe int32

const (
	UniverseMarvel Universe = 0
	UniverseDC     Universe = 1
)

func (u Universe) String() string {
	switch u {
	case UniverseMarvel:
		return "marvel"
	case UniverseDC:
		return "dc"
	default:
		return fmt.Sprintf("universe(%d)", int32(u))
	}
}

// Valid reports whether u is a known universe.
func (u Universe) Valid() bool {
	return u == UniverseMarvel || u == UniverseDC
}

// ParseUniverse accepts "marvel" or "dc" in any case.
func ParseUniverse(s string) (Universe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "marvel":
		return UniverseMarvel, nil
	case "dc":
		return UniverseDC, nil
	}
	return 0, fmt.Errorf("unknown universe %q", s)
}

type Hero struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:100"`
	Abilities string    `json:"abilities" gorm:"type:text"`
	Universe  Universe  `json:"universe" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Hero) TableName() string {
	return "heroes"
}
