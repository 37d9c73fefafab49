package database

import (
	"errors"

	"github.com/thereayou/residence-chat/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func (d *Database) Connect(dsn string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return classify(err)
	}

	err = db.AutoMigrate(&models.ChatRoom{}, &models.ChatMessage{}, &models.Notification{})
	if err != nil {
		return err
	}

	d.db = db

	return nil
}
