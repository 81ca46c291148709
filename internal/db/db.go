package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"resource-manager/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ActiveAssignmentIndex enforces one active assignment per resource.
const ActiveAssignmentIndex = "assignments_one_active_per_resource"

const uniqueViolation = "23505"

func New(cfg config.DatabaseConfig) (*bun.DB, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		sslMode,
	)

	db, err := NewWithDSN(dsn)
	if err != nil {
		return nil, err
	}
	configurePool(db, cfg)
	return db, nil
}

// NewWithDSN creates a new database connection with a custom DSN (useful for testing)
func NewWithDSN(dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	slog.Info("database connected successfully")
	return db, nil
}

func configurePool(db *bun.DB, cfg config.DatabaseConfig) {
	sqlDB := db.DB

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxIdleConns(maxIdle)

	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime == 0 {
		connMaxLifetime = 300
	}
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 60
	}
	sqlDB.SetConnMaxIdleTime(time.Duration(connMaxIdleTime) * time.Second)

	slog.Info("database pool configured",
		"max_open_conns", maxOpen,
		"max_idle_conns", maxIdle,
		"conn_max_lifetime_seconds", connMaxLifetime,
		"conn_max_idle_time_seconds", connMaxIdleTime,
	)
}

func Close(db *bun.DB) {
	if db != nil {
		db.Close()
	}
}

// RunMigrations creates the tables for models, then the constraints, indexes and
// updated_at triggers of the scheduling schema.
func RunMigrations(ctx context.Context, db *bun.DB, models ...interface{}) error {
	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model: %w", err)
		}
	}

	if err := ApplyConstraints(ctx, db); err != nil {
		return err
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// ApplyConstraints is idempotent.
func ApplyConstraints(ctx context.Context, db bun.IDB) error {
	statements := []string{
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'assignments_project_id_fkey') THEN
				ALTER TABLE assignments ADD CONSTRAINT assignments_project_id_fkey
					FOREIGN KEY (project_id) REFERENCES projects (id) ON UPDATE CASCADE ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'assignments_resource_id_fkey') THEN
				ALTER TABLE assignments ADD CONSTRAINT assignments_resource_id_fkey
					FOREIGN KEY (resource_id) REFERENCES resources (id) ON UPDATE CASCADE ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'projects_time_estimate_positive') THEN
				ALTER TABLE projects ADD CONSTRAINT projects_time_estimate_positive CHECK (time_estimate_hours > 0);
			END IF;
		END $$;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + ActiveAssignmentIndex + ` ON assignments (resource_id) WHERE active`,
		`CREATE INDEX IF NOT EXISTS assignments_project_id_idx ON assignments (project_id)`,
		`CREATE INDEX IF NOT EXISTS activity_logs_action_idx ON activity_logs (action, "timestamp" DESC)`,
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql';`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema constraints: %w", err)
		}
	}

	for _, table := range []string{"projects", "resources", "assignments"} {
		if err := CreateUpdateTrigger(ctx, db, table); err != nil {
			return err
		}
	}
	return nil
}

func CreateUpdateTrigger(ctx context.Context, db bun.IDB, table string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		DROP TRIGGER IF EXISTS update_%[1]s_updated_at ON %[1]s;
		CREATE TRIGGER update_%[1]s_updated_at
			BEFORE UPDATE ON %[1]s
			FOR EACH ROW
			EXECUTE FUNCTION update_updated_at_column();
	`, table))
	if err != nil {
		return fmt.Errorf("failed to create trigger for %s: %w", table, err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique violation, optionally on a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Field('C') != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.Field('n') == constraint
}
