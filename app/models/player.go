package models

import "time"

// Player is an enrolled academy player. Only the fields needed for payment
// linking and enrollment flows live here; roster management is a separate
// surface.
type Player struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"type:varchar(150);not null;index" json:"full_name" validate:"required,min=3,max=150"`
	FamilyID  *uint     `gorm:"default:null;index" json:"family_id,omitempty"`
	Category  string    `gorm:"type:varchar(50);default:''" json:"category"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
