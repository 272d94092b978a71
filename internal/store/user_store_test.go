package store

import (
	"errors"
	"fmt"
	"testing"

	"wisdom-campus/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 每个测试独立的内存库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Major{}, &models.User{}, &models.UserProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// TestCreate_UserWithProfile 创建用户必须同时带出空画像
func TestCreate_UserWithProfile(t *testing.T) {
	s := NewUserStore(newTestDB(t))

	user, err := s.Create(CreateParams{
		Auth0ID:   "auth0|u1",
		Email:     "a@x.edu",
		Name:      "A",
		StudentID: "2021001",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("user id not assigned")
	}
	if user.Profile == nil || user.Profile.UserID != user.ID {
		t.Fatalf("profile not created alongside user: %+v", user.Profile)
	}

	// 画像确实落了库
	var count int64
	s.DB().Model(&models.UserProfile{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Fatalf("profile rows = %d, want 1", count)
	}
}

// TestCreate_DuplicateEmail 邮箱唯一约束冲突返回 ErrConflict
func TestCreate_DuplicateEmail(t *testing.T) {
	s := NewUserStore(newTestDB(t))

	if _, err := s.Create(CreateParams{Auth0ID: "auth0|u1", Email: "a@x.edu"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.Create(CreateParams{Auth0ID: "auth0|u2", Email: "a@x.edu"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// 冲突的事务不能留下半截数据
	var users int64
	s.DB().Model(&models.User{}).Count(&users)
	if users != 1 {
		t.Fatalf("user rows = %d, want 1", users)
	}
}

// TestCreate_DuplicateStudentID 学号唯一约束冲突返回 ErrConflict
func TestCreate_DuplicateStudentID(t *testing.T) {
	s := NewUserStore(newTestDB(t))

	if _, err := s.Create(CreateParams{Auth0ID: "auth0|u1", Email: "a@x.edu", StudentID: "2021001"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.Create(CreateParams{Auth0ID: "auth0|u2", Email: "b@x.edu", StudentID: "2021001"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

// TestCreate_EmptyStudentID 学号可以为空，而且多个空学号不冲突
func TestCreate_EmptyStudentID(t *testing.T) {
	s := NewUserStore(newTestDB(t))

	if _, err := s.Create(CreateParams{Auth0ID: "auth0|u1", Email: "a@x.edu"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Create(CreateParams{Auth0ID: "auth0|u2", Email: "b@x.edu"}); err != nil {
		t.Fatalf("second create without student id: %v", err)
	}
}

// TestSyncVerification 只有状态变化时才写库
func TestSyncVerification(t *testing.T) {
	s := NewUserStore(newTestDB(t))

	user, err := s.Create(CreateParams{Auth0ID: "auth0|u1", Email: "a@x.edu"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := s.SyncVerification(user, false)
	if err != nil {
		t.Fatalf("sync (no-op): %v", err)
	}
	if changed {
		t.Error("sync with same flag should not write")
	}

	changed, err = s.SyncVerification(user, true)
	if err != nil {
		t.Fatalf("sync (flip): %v", err)
	}
	if !changed {
		t.Error("sync with new flag should write")
	}

	got, err := s.FindByEmail("a@x.edu")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.EmailVerified {
		t.Error("email_verified not persisted")
	}
}

// TestDelete_CascadesProfile 删除用户时画像一起删
func TestDelete_CascadesProfile(t *testing.T) {
	s := NewUserStore(newTestDB(t))

	user, err := s.Create(CreateParams{Auth0ID: "auth0|u1", Email: "a@x.edu"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(user); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.FindByEmail("a@x.edu"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("find after delete: err = %v, want ErrNotFound", err)
	}
	var profiles int64
	s.DB().Model(&models.UserProfile{}).Count(&profiles)
	if profiles != 0 {
		t.Fatalf("profile rows = %d, want 0", profiles)
	}
}

// TestFindByStudentID 学号查询
func TestFindByStudentID(t *testing.T) {
	s := NewUserStore(newTestDB(t))

	if _, err := s.Create(CreateParams{Auth0ID: "auth0|u1", Email: "a@x.edu", StudentID: "2021001"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.FindByStudentID("2021001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Email != "a@x.edu" {
		t.Errorf("email = %q, want a@x.edu", got.Email)
	}

	if _, err := s.FindByStudentID("9999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing student id: err = %v, want ErrNotFound", err)
	}
}
