package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chat-hub/internal/domain"
)

// MigrateDB handles all database migrations using the provided GORM DB
// instance. Users and rooms are created with explicit SQL so the index
// lengths on VARCHAR columns stay under control; messages go through
// AutoMigrate.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migrateUsersTable(db); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	if err := migrateRoomsTable(db); err != nil {
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		logrus.Errorf("Failed to auto-migrate messages table: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

func migrateUsersTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'users'").Count(&count)
	if count == 0 {
		return createUsersTable(db)
	}
	// Existing table: let AutoMigrate reconcile columns and indexes.
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate user indexes: %w", err)
	}
	return nil
}

func createUsersTable(db *gorm.DB) error {
	sql := `
	CREATE TABLE users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(191) NOT NULL,
		password TEXT NOT NULL,
		verification_code VARCHAR(10) NOT NULL,
		created_at DATETIME(3),
		updated_at DATETIME(3),
		UNIQUE INDEX idx_email (email),
		UNIQUE INDEX idx_verification_code (verification_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		logrus.Errorf("Failed to create users table: %v", err)
		return fmt.Errorf("failed to create users table: %w", err)
	}
	logrus.Info("Users table created successfully")
	return nil
}

func migrateRoomsTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'rooms'").Count(&count)
	if count == 0 {
		return createRoomsTable(db)
	}
	if err := db.AutoMigrate(&domain.Room{}); err != nil {
		return fmt.Errorf("failed to migrate room indexes: %w", err)
	}
	return nil
}

func createRoomsTable(db *gorm.DB) error {
	sql := `
	CREATE TABLE rooms (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(8) NOT NULL,
		name VARCHAR(100) NOT NULL,
		category VARCHAR(50) NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		creator_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME(3),
		last_active DATETIME(3),
		updated_at DATETIME(3),
		INDEX idx_creator_id (creator_id),
		INDEX idx_last_active (last_active),
		UNIQUE INDEX idx_code (code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		logrus.Errorf("Failed to create rooms table: %v", err)
		return fmt.Errorf("failed to create rooms table: %w", err)
	}
	logrus.Info("Rooms table created successfully")
	return nil
}
