package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

// MaybeRunDev brings a dev schema up to date from the embedded migrations
// of the configured driver at start-up. It does nothing outside dev or
// without POS_AUTO_MIGRATE.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case !cfg.App.IsDev(), !cfg.FeatureFlags.AutoMigrate:
		return nil
	case !Supports(cfg.DB.Driver):
		logg.Warn(logg.WithField(ctx, "driver", cfg.DB.Driver), "migrate.autorun.skipped")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	began := time.Now()
	version, err := UpEmbedded(ctx, sqlDB, cfg.DB.Driver)
	if err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"driver":      cfg.DB.Driver,
		"version":     version,
		"duration_ms": time.Since(began).Milliseconds(),
	}), "migrate.autorun.complete")
	return nil
}
