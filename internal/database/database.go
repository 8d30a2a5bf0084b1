package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"toko/internal/config"
	"toko/internal/models"
	"toko/internal/repositories"
)

// Repositories bundles the stores used by the application.
type Repositories struct {
	Products repositories.ProductRepository
	Users    repositories.UserRepository

	db *gorm.DB
}

// Close releases the underlying connection pool, if any.
func (r *Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Product{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// NewRepositories builds the stores for cfg.DBDriver.
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	if cfg.DBDriver == config.DriverMemory {
		return &Repositories{
			Products: repositories.NewMemoryProductRepository(),
			Users:    repositories.NewMemoryUserRepository(),
		}, nil
	}

	db, err := Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return FromDB(db), nil
}

// FromDB builds GORM-backed stores on an open connection.
func FromDB(db *gorm.DB) *Repositories {
	return &Repositories{
		Products: repositories.NewGORMProductRepository(db),
		Users:    repositories.NewGORMUserRepository(db),
		db:       db,
	}
}
