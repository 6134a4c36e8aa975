package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/pos-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateDir(migrate.EmbeddedDir); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	disk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(disk) != len(embedded) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(disk))
	}
}

func TestEmbeddedDialectMigrationsMatchDisk(t *testing.T) {
	for _, driver := range []string{"mysql", "sqlite"} {
		fsys, err := migrate.EmbeddedFor(driver)
		if err != nil {
			t.Fatalf("embedded %s: %v", driver, err)
		}
		embedded, err := fs.Glob(fsys, "*.sql")
		if err != nil {
			t.Fatalf("glob embedded: %v", err)
		}
		disk, err := filepath.Glob(filepath.Join("migrations", driver, "*.sql"))
		if err != nil {
			t.Fatalf("glob: %v", err)
		}
		if len(embedded) == 0 || len(embedded) != len(disk) {
			t.Fatalf("embedded %d %s migrations, disk has %d", len(embedded), driver, len(disk))
		}
	}
	if _, err := migrate.EmbeddedFor("oracle"); err == nil {
		t.Fatal("oracle has no migration set")
	}
}

func TestValidateDirRejectsUnmirroredDialect(t *testing.T) {
	up := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "mysql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"20260301090000_a.sql", "20260301090100_b.sql", filepath.Join("mysql", "20260301090000_a.sql")} {
		if err := os.WriteFile(filepath.Join(dir, name), up, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected missing mysql counterpart to fail")
	}
}

func TestMySQLProductsEmulatePartialUniqueCode(t *testing.T) {
	content := readMigration(t, filepath.Join("mysql", "*_create_products.sql"))
	checks := []string{
		"active_code varchar(64) GENERATED ALWAYS AS (CASE WHEN is_active THEN code END) STORED",
		"UNIQUE KEY ux_products_code_active (active_code)",
		"id char(36)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
	if strings.Contains(content, "StatementBegin") {
		t.Error("mysql migrations must let goose split statements")
	}
}

func TestMySQLStockLevelsForbidNegativeQuantity(t *testing.T) {
	content := readMigration(t, filepath.Join("mysql", "*_create_stock_levels.sql"))
	for _, sub := range []string{"CHECK (quantity >= 0)", "FOREIGN KEY (product_id) REFERENCES products(id)"} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateFSRejectsUnbalancedStatements(t *testing.T) {
	fsys := fstest.MapFS{
		"20260301090000_broken.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
	}
	if err := migrate.ValidateFS(fsys); err == nil {
		t.Fatal("expected unbalanced StatementBegin to fail")
	}
}

func TestStockLevelsMigrationForbidsNegativeQuantity(t *testing.T) {
	content := readMigration(t, "*_create_stock_levels.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_levels",
		"FOREIGN KEY (product_id) REFERENCES products(id)",
		"CHECK (quantity >= 0)",
		"DROP TABLE IF EXISTS stock_levels",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductsMigrationEnforcesActiveCodeUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_products.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_products_code_active ON products (code) WHERE is_active",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMovementsMigrationRestrictsEnums(t *testing.T) {
	content := readMigration(t, "*_create_inventory_movements.sql")
	checks := []string{
		"CHECK (direction IN ('in', 'out'))",
		"CHECK (quantity > 0)",
		"'purchase', 'sale', 'return', 'adjustment', 'loss', 'initial'",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Supplier Ref")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_supplier_ref.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}
