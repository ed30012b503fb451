package db

import (
	"testing"

	"Romaly/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(&config.Config{DBUser: "root", DBPassword: "pw", DBHost: "db", DBPort: "3306", DBName: "romaly"})
	assert.Contains(t, dsn, "root:pw@tcp(db:3306)/romaly")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(&config.Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d"})
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable TimeZone=UTC", dsn)
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := ConnectGormDB(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestSQLiteMigrate(t *testing.T) {
	gdb, err := ConnectGormDB(&config.Config{DBDriver: config.DriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer CloseGormDB(gdb)

	require.NoError(t, AutoMigrate(gdb))
	assert.True(t, gdb.Migrator().HasTable("tracks"))
	assert.True(t, gdb.Migrator().HasTable("collections"))
	assert.True(t, gdb.Migrator().HasTable("users"))
	// 再次迁移不报错
	require.NoError(t, AutoMigrate(gdb))
}
