package database

import (
	"fmt"
	"testing"

	"gatekeeper/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStoreTestDB(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.BlacklistEntry{},
		&domain.IPReputation{},
		&domain.BlacklistEvent{},
		&domain.TrafficEvent{},
		&domain.StatsMinute{},
		&domain.StatsHour{},
		&domain.StatsDay{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	return NewStore(db), db
}
