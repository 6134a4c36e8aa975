// Package dbtest opens throwaway sqlite databases carrying the POS schema.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/migrate"
)

// New returns an isolated in-memory database migrated with the embedded
// sqlite set.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:pos_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if _, err := migrate.UpEmbedded(context.Background(), sqlDB, config.DriverSQLite); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}
