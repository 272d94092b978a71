package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wisdom-campus/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 本地没有匹配记录。
	ErrNotFound = errors.New("user not found")
	// ErrConflict 邮箱/学号/auth0_id 撞了唯一约束。
	ErrConflict = errors.New("user already exists")
)

// UserStore 本地用户记录的 CRUD，唯一性由数据库约束兜底。
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 构造函数
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// DB 暴露底层连接给只读查询（admin 列表等）。
func (s *UserStore) DB() *gorm.DB { return s.db }

func (s *UserStore) FindByID(id uint) (*models.User, error) {
	return s.findOne("id = ?", id)
}

func (s *UserStore) FindByAuth0ID(auth0ID string) (*models.User, error) {
	return s.findOne("auth0_id = ?", auth0ID)
}

func (s *UserStore) FindByEmail(email string) (*models.User, error) {
	return s.findOne("email = ?", email)
}

func (s *UserStore) FindByStudentID(studentID string) (*models.User, error) {
	return s.findOne("student_id = ?", studentID)
}

func (s *UserStore) findOne(query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Profile").Preload("Major").Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// CreateParams 创建本地用户需要的字段。
type CreateParams struct {
	Auth0ID       string
	Email         string
	Name          string
	StudentID     string
	MajorID       *uint
	Grade         string
	EmailVerified bool
}

// Create 在同一个事务里创建用户和空画像，保证不会出现没有画像的用户。
// 唯一约束冲突返回 ErrConflict：预检查和插入之间可能有并发竞争，
// 最终以数据库约束为准。
func (s *UserStore) Create(p CreateParams) (*models.User, error) {
	user := &models.User{
		Auth0ID:       p.Auth0ID,
		Email:         p.Email,
		Name:          p.Name,
		MajorID:       p.MajorID,
		Grade:         p.Grade,
		EmailVerified: p.EmailVerified,
		Status:        "active",
	}
	if p.StudentID != "" {
		sid := p.StudentID
		user.StudentID = &sid
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		profile := &models.UserProfile{UserID: user.ID}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SyncVerification 把远端验证状态同步到镜像字段，只有状态变化时才写库。
// 返回是否发生了写入。
func (s *UserStore) SyncVerification(user *models.User, remoteVerified bool) (bool, error) {
	if user.EmailVerified == remoteVerified {
		return false, nil
	}
	if err := s.db.Model(user).Update("email_verified", remoteVerified).Error; err != nil {
		return false, fmt.Errorf("sync verification: %w", err)
	}
	user.EmailVerified = remoteVerified
	return true, nil
}

// TouchLastActive 更新最近活跃时间。
func (s *UserStore) TouchLastActive(user *models.User) error {
	now := time.Now()
	if err := s.db.Model(user).Update("last_active", now).Error; err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	user.LastActive = &now
	return nil
}

// UpdateStudentID 补写学号（未验证账号重新注册时可能换学号）。
func (s *UserStore) UpdateStudentID(user *models.User, studentID string) error {
	sid := studentID
	if err := s.db.Model(user).Update("student_id", &sid).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update student id: %w", err)
	}
	user.StudentID = &sid
	return nil
}

// Delete 删除用户，画像随事务一起删。远端身份由调用方先行处理。
func (s *UserStore) Delete(user *models.User) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserProfile{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ListUsers 分页列出用户（管理端）。
func (s *UserStore) ListUsers(page, size int) ([]models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	var total int64
	if err := s.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	err := s.db.Preload("Major").
		Order("id").
		Offset((page - 1) * size).
		Limit(size).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// isUniqueViolation 识别唯一约束冲突。gorm 的错误翻译在不同驱动下不一致，
// 这里同时检查翻译后的错误和 SQLite 的原始文案。
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
