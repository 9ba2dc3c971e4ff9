// Package db contains the credential store and its gorm bootstrap
package db

import (
	"fmt"

	"bitwise74/account-api/config"
	"bitwise74/account-api/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func New(cfg *config.Config) (*gorm.DB, error) {
	var dial gorm.Dialector

	switch cfg.Database.Driver {
	case "postgres":
		dial = postgres.Open(cfg.Database.DSN)
	default:
		dial = sqlite.Open(cfg.Database.DSN)
	}

	db, err := gorm.Open(dial)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database, %w", cfg.Database.Driver, err)
	}

	err = db.AutoMigrate(model.User{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
