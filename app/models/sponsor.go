package models

import "time"

// Sponsor is an external party covering fees for one or more players.
type Sponsor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"type:varchar(150);not null;index" json:"full_name" validate:"required,min=3,max=150"`
	Email     string    `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
