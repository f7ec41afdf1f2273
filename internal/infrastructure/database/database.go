package database

import (
	"dealdesk-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// AutoMigrate runs migrations for the deal store models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Broker{},
		&domain.Deal{},
		&domain.DealDate{},
		&domain.DealMember{},
		&domain.DealEvent{},
	)
}
