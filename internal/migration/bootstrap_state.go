package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railzwaylabs/parkway/internal/config"
	"gorm.io/gorm"
)

var ErrSchemaOutdated = errors.New("schema_outdated")

func recordSchemaState(ctx context.Context, db *sql.DB, schemaVersion string, checksum string) error {
	version := strings.TrimSpace(schemaVersion)
	if version == "" {
		return errors.New("schema version is required")
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO schema_state (id, schema_version, checksum, activated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    activated_at = EXCLUDED.activated_at
	`, version, nullIfEmpty(checksum), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record schema state: %w", err)
	}
	return nil
}

// CheckSchema refuses to serve against a postgres schema older than the
// migrations compiled into the binary. Other drivers are auto-migrated and
// always pass.
func CheckSchema(ctx context.Context, conn *gorm.DB, cfg config.Config) error {
	if cfg.Database.Driver != "postgres" {
		return nil
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}

	var version string
	err = conn.WithContext(ctx).
		Raw("SELECT schema_version FROM schema_state WHERE id = TRUE").
		Scan(&version).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaOutdated, err)
	}
	if version != fmt.Sprintf("%d", latest) {
		return fmt.Errorf("%w: have %q want %d, run parkway migrate", ErrSchemaOutdated, version, latest)
	}
	return nil
}

func nullIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
