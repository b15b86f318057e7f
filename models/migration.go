package models

import (
	"github.com/mmdatafocus/assets_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Business{},
		&User{},
		&AssetCategory{},
		&Department{},
		&Asset{},
		&InventoryTask{},
		&InventoryRecord{},
	)
}
