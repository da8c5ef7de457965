package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/db/models"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot when running in dev with
// the auto-migrate flag on. Postgres gets the embedded goose files; sqlite
// gets AutoMigrateModels since the SQL is Postgres-only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if db.IsSQLite(client.DB()) {
		if err := AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.dev_schema_synced")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	applied, err := Run(ctx, sqlDB, Migrations(), "up")
	if err != nil {
		return err
	}
	for _, r := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": r.Version, "file": r.Path}), "migrate.applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "migrate.dev_up_done")
	return nil
}

// AutoMigrateModels creates or alters every table from the gorm models.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
