package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/pos-backend/pkg/config"
)

// DefaultDir is the on-disk location used by create and validate. Postgres
// files sit at its root; the mysql and sqlite sets mirror them in
// subdirectories.
const DefaultDir = "pkg/migrate/migrations"

// EmbeddedDir selects the SQL files compiled into the binary, so deployed
// services can migrate without shipping the source tree.
const EmbeddedDir = "embedded"

//go:embed migrations/*.sql migrations/mysql/*.sql migrations/sqlite/*.sql
var embedded embed.FS

type dialect struct {
	goose  goose.Dialect
	subdir string
}

var dialects = map[string]dialect{
	config.DriverPostgres: {goose: goose.DialectPostgres},
	config.DriverMySQL:    {goose: goose.DialectMySQL, subdir: "mysql"},
	config.DriverSQLite:   {goose: goose.DialectSQLite3, subdir: "sqlite"},
}

func dialectFor(driver string) (dialect, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = config.DriverPostgres
	}
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("no migrations for driver %q", driver)
	}
	return d, nil
}

// Supports reports whether driver has a migration set.
func Supports(driver string) bool {
	_, err := dialectFor(driver)
	return err == nil
}

// Embedded exposes the compiled-in migrations with the postgres files at the
// root.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// EmbeddedFor exposes the compiled-in migrations of one driver.
func EmbeddedFor(driver string) (fs.FS, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.subdir == "" {
		return Embedded(), nil
	}
	return fs.Sub(Embedded(), d.subdir)
}

// prepare points goose at the driver's dialect and files and returns the
// directory goose should read.
func prepare(dir, driver string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return "", err
	}
	if err := goose.SetDialect(string(d.goose)); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	if dir == EmbeddedDir {
		goose.SetBaseFS(embedded)
		return path.Join("migrations", d.subdir), nil
	}
	goose.SetBaseFS(nil)
	return filepath.Join(dir, d.subdir), nil
}

// UpEmbedded applies every pending compiled-in migration of driver and
// returns the resulting schema version. It keeps no goose global state, so
// test helpers may call it freely.
func UpEmbedded(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return 0, err
	}
	fsys, err := EmbeddedFor(driver)
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(d.goose, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("goose up: %w", err)
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Run executes a goose command such as up, down, redo or status against the
// migration set of driver.
func Run(ctx context.Context, db *sql.DB, dir, driver, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	migrations, err := prepare(dir, driver)
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, migrations, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, driver, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	migrations, err := prepare(dir, driver)
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, migrations, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, migrations, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
