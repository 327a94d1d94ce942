package database

import (
	"fmt"

	"teamflow/backend/internal/models"

	"gorm.io/gorm"
)

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Task{}, "Tags", &models.TaskTag{}); err != nil {
		return fmt.Errorf("setup task_tags join table: %w", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
