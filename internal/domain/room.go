package domain

import "time"

// Room is a bounded-capacity study session with an owner and an RTC channel.
// The UUID is the public handle and doubles as the RTC channel name.
type Room struct {
	ID           uint      `gorm:"primaryKey" json:"roomId"`
	UUID         string    `gorm:"type:varchar(36);uniqueIndex:idx_room_uuid;not null" json:"uuid"`
	Title        string    `gorm:"type:varchar(191);not null" json:"title"`
	MaxHeadcount int       `gorm:"not null" json:"maxHeadcount"`
	NowHeadcount int       `gorm:"not null;default:0" json:"nowHeadcount"` // 0 <= NowHeadcount <= MaxHeadcount
	Count        int       `gorm:"not null;default:0" json:"count"`        // lifetime joins, never decremented
	Category     string    `gorm:"type:varchar(50);index" json:"category"`
	Note         string    `gorm:"type:text" json:"note"`
	OwnerID      uint      `gorm:"index;not null" json:"ownerId"`
	AgoraAppID   string    `gorm:"type:varchar(64)" json:"agoraAppId"`
	AgoraToken   string    `gorm:"type:text" json:"agoraToken"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsFull reports whether another join would exceed capacity.
func (r *Room) IsFull() bool {
	return r.NowHeadcount >= r.MaxHeadcount
}

// IsEmpty reports whether nobody is currently in the room.
func (r *Room) IsEmpty() bool {
	return r.NowHeadcount < 1
}

// RoomSummary is the list view of a room. Headcount and capacity are not exposed.
type RoomSummary struct {
	UUID       string `json:"uuid"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	AgoraAppID string `json:"agoraAppId"`
	AgoraToken string `json:"agoraToken"`
	OwnerID    uint   `json:"ownerId"`
}
