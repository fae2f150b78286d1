package models

import "time"

// Family groups players under one paying household.
type Family struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(150);not null;index" json:"name" validate:"required,min=3,max=150"`
	ContactName string    `gorm:"type:varchar(150);default:''" json:"contact_name"`
	Email       string    `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email"`
	Phone       string    `gorm:"type:varchar(30);default:''" json:"phone"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
