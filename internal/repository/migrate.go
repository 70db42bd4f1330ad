package repository

import (
	"gorm.io/gorm"

	"taskboard/internal/model"
)

// Migrate creates or updates the tables of every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.Task{}, &model.Attachment{}, &model.HistoryEntry{})
}
