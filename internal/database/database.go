package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"clinicbook/internal/logging"
)

// ActiveSlotIndex enforces at most one non-cancelled reservation per
// (date, time). Partial indexes work on both PostgreSQL and SQLite.
const ActiveSlotIndex = "idx_reservations_active_slot"

const activeSlotIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS ` + ActiveSlotIndex + `
ON reservations (appointment_date, appointment_time)
WHERE status <> 'cancelled'`

// Connect opens PostgreSQL for postgres:// DSNs and SQLite otherwise.
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	log = logging.OrNop(log)
	// Driver errors stay untranslated so the repository can tell which
	// constraint failed.
	cfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Info("connecting to PostgreSQL")
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	log.Info("using SQLite for local development", zap.String("dsn", dsn))
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		cfg,
	)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases alive and serializes
	// SQLite writers.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates the reservations table and its uniqueness constraint.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if err := db.Exec(activeSlotIndexDDL).Error; err != nil {
		return fmt.Errorf("create active slot index: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
