// models/team_hero.go
package models

import "time"

// TeamHero is one roster slot. The composite key keeps a hero from
// appearing twice on the same team.
type TeamHero struct {
	TeamID    uint      `json:"team_id" gorm:"primaryKey;autoIncrement:false"`
	HeroID    uint      `json:"hero_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (TeamHero) TableName() string {
	return "team_heroes"
}
