// Package dbtest 提供测试用的内存 sqlite 数据库
package dbtest

import (
	"testing"

	"Romaly/config"
	"Romaly/db"

	"gorm.io/gorm"
)

// NewSQLite 每次调用返回一个独立的已迁移内存库
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.Config{DBDriver: config.DriverSQLite, SQLitePath: ":memory:", LogLevel: "error"}
	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.CloseGormDB(gdb) })
	return gdb
}
