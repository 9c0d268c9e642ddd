package models

import (
	"github.com/atelierpos/boutique_backend/config"
)

func MigrateDatabase() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Article{},
		&Customer{},
		&Sale{},
		&SaleLine{},
		&CashMovement{},
		&History{},
	)
}
