package models

import (
	"log"

	"bitbucket.org/sitefocus/qctrack_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Project{}, &User{},
		&Inspection{}, &ChecklistTemplate{}, &Deficiency{},
		&Document{}, &DocumentRevision{},
		&Photo{},
		&Comment{}, &Activity{},
		&Notification{},
		&History{},
		&ChangeFeedRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
