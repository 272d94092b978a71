package database

import (
	"fmt"

	"wisdom-campus/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Major{},
		&models.User{},
		&models.UserProfile{},
		&models.Course{},
		&models.Note{},
		&models.Post{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
