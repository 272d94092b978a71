package models

import "time"

// Major 专业
type Major struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:50;not null" json:"name"`
	College string `gorm:"size:50" json:"college"`

	Users []User `gorm:"foreignKey:MajorID" json:"-"`
}

// User 本地用户记录，镜像 Auth0 身份。
// auth0_id / email 全局唯一；student_id 非空时唯一。
type User struct {
	ID            uint    `gorm:"primaryKey"`
	StudentID     *string `gorm:"size:20;uniqueIndex"` // 学号，可选
	Auth0ID       string  `gorm:"size:64;uniqueIndex;not null"`
	Name          string  `gorm:"size:50"`
	Email         string  `gorm:"size:100;uniqueIndex;not null"`
	EmailVerified bool    `gorm:"default:false"` // 镜像字段，最终一致
	AvatarURL     string  `gorm:"size:255"`
	Bio           string  `gorm:"type:text"`
	MajorID       *uint   `gorm:"index"`
	Major         *Major
	Grade         string `gorm:"size:10"`
	IsAdmin       bool   `gorm:"default:false"`
	Status        string `gorm:"size:10;default:active"` // active / inactive / banned

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastActive *time.Time

	Profile *UserProfile `gorm:"constraint:OnDelete:CASCADE"`
}

// UserProfile 用户画像，与 User 一对一，随用户创建、级联删除。
type UserProfile struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"uniqueIndex;not null"`

	LearningStyle string `gorm:"size:16"` // visual / auditory / kinesthetic / mixed
	PreferredTime string `gorm:"size:16"` // morning / afternoon / evening / night
	Strengths     string `gorm:"type:text"`
	Weaknesses    string `gorm:"type:text"`
	StudyHabits   string `gorm:"type:text"`

	NotificationEmailEnabled bool `gorm:"default:true"`
	NotificationAppEnabled   bool `gorm:"default:true"`

	UpdatedAt time.Time
}

// PublicMap 返回可直接下发给客户端的字段（不含敏感信息）。
func (u *User) PublicMap() map[string]interface{} {
	var studentID interface{}
	if u.StudentID != nil {
		studentID = *u.StudentID
	}
	var majorID interface{}
	if u.MajorID != nil {
		majorID = *u.MajorID
	}
	return map[string]interface{}{
		"id":             u.ID,
		"student_id":     studentID,
		"name":           u.Name,
		"email":          u.Email,
		"email_verified": u.EmailVerified,
		"avatar_url":     u.AvatarURL,
		"bio":            u.Bio,
		"major_id":       majorID,
		"grade":          u.Grade,
		"is_admin":       u.IsAdmin,
	}
}
