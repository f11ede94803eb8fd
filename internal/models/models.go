package models

import "time"

type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash      string    `gorm:"not null" json:"-"`
	Username          string    `gorm:"size:64" json:"username,omitempty"`
	Age               int       `json:"age,omitempty"`
	Role              string    `gorm:"size:64" json:"role,omitempty"`
	IsProfileComplete bool      `gorm:"default:false" json:"isProfileComplete"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"-"`
}

type Room struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	CreatorID   uint      `gorm:"not null" json:"creatorId"`
	InviteToken string    `gorm:"uniqueIndex;size:16;not null" json:"inviteToken"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

// RoomMember 是房间成员关系表，(room_id, user_id) 唯一索引保证集合语义。
type RoomMember struct {
	ID        uint `gorm:"primaryKey"`
	RoomID    uint `gorm:"uniqueIndex:idx_room_member;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_room_member;not null"`
	CreatedAt time.Time
}

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index:idx_msg_room_id;not null" json:"roomId"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Content   string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:512;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
