package domain

import "time"

// History records one completed room session for one user. Rows are append-only.
type History struct {
	ID          uint      `gorm:"primaryKey" json:"historyId"`
	UserID      uint      `gorm:"index;not null" json:"userId"`
	RoomID      uint      `gorm:"index;not null" json:"roomId"` // internal room id, not the uuid
	CheckIn     time.Time `gorm:"not null" json:"checkIn"`
	CheckOut    time.Time `gorm:"not null" json:"checkOut"`
	HistoryType string    `gorm:"type:varchar(50);not null" json:"historyType"`
	TotalHours  int64     `gorm:"not null;default:0" json:"totalHours"` // seconds
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
