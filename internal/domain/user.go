// Package domain holds the persistent models and the pure domain helpers.
package domain

import "time"

// User is an account that can own rooms and check out of them.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"userId"`
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null" json:"username"`
	Password  string    `gorm:"type:text;not null" json:"-"` // bcrypt hash, never serialized
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_email" json:"email"`
	Nickname  string    `gorm:"type:varchar(100)" json:"nickname"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
