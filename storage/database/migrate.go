package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"CoParent/internal/model"
	"CoParent/pkg/logger"
)

// Migrate 建表：引导会话、用户、家庭档案
func Migrate() error {
	db := DB()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.OnboardingSession{},
		&model.User{},
		&model.Profile{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
