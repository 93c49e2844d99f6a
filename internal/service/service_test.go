package service

import (
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trend-scribe/internal/model"
)

// newTestDB 每个测试一个独立的内存库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := "file:" + name + "?mode=memory&cache=shared"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Feed{},
		&model.Article{},
		&model.AutomationSource{},
		&model.AutomationLog{},
		&model.Config{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

func setConfig(t *testing.T, db *gorm.DB, key, value string) {
	t.Helper()
	saveConfigValue(db, key, value)
}
