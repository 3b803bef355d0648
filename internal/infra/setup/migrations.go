package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"studyroom/internal/domain"
)

// MigrateDB creates or updates the users, rooms and histories tables.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	// users first: rooms and histories reference it
	models := []interface{}{&domain.User{}, &domain.Room{}, &domain.History{}}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			logrus.Errorf("Failed to auto-migrate %T: %v", model, err)
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
