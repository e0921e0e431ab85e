// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"
	"log/slog"

	"superparty/logging"
	"superparty/models"

	"gorm.io/gorm"
)

// RunMigrations creates or updates the hero, team and roster tables.
func RunMigrations(conn *gorm.DB, log *slog.Logger) error {
	log = logging.Default(log)
	log.Debug("running database migrations")

	if err := conn.AutoMigrate(
		&models.Hero{},
		&models.Team{},
		&models.TeamHero{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := createIndexes(conn); err != nil {
		return err
	}

	log.Debug("migrations completed")
	return nil
}

// createIndexes adds the expression indexes AutoMigrate cannot express.
// Listings sort by LOWER(name).
func createIndexes(conn *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_heroes_name_lower ON heroes (LOWER(name))",
		"CREATE INDEX IF NOT EXISTS idx_teams_name_lower ON teams (LOWER(name))",
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
