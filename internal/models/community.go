package models

import "time"

// Note 学习笔记
type Note struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"index;not null" json:"user_id"`
	Title     string `gorm:"size:100;not null" json:"title"`
	Content   string `gorm:"type:text" json:"content"`
	Category  string `gorm:"size:50" json:"category"`
	IsStarred bool   `gorm:"default:false" json:"is_starred"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Post 社区帖子
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"index;not null" json:"user_id"`
	Title   string `gorm:"size:100;not null" json:"title"`
	Content string `gorm:"type:text" json:"content"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
