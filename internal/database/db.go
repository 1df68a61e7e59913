package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/model"
)

// NewDB opens the job tracker database and migrates the timeline table.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Error().Err(err).Str("host", cfg.Database.Host).Msg("Failed to connect to MySQL")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&model.TimelineEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate timeline events: %w", err)
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("MySQL connection established")
	return db, nil
}
