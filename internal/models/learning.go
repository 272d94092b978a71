package models

import "time"

// Course 课程（学习模块，占位 CRUD 实体）
type Course struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     string  `gorm:"size:100;not null" json:"name"`
	Code     string  `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Credit   float64 `gorm:"type:numeric(3,1)" json:"credit"`
	Semester string  `gorm:"size:20" json:"semester"`

	CreatedAt time.Time `json:"created_at"`
}
