package db

import (
	"fmt"

	"chatbot-api/internal/models"

	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// autoMigrateModels runs AutoMigrate over every persisted model.
func autoMigrateModels(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
		&models.Payment{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}

// ddl defines an index or DDL statement to apply.
type ddl struct {
	name string // Human-readable name for error reporting.
	sql  string // SQL to execute.
}

// sharedDDLs lists index statements valid on both dialects.
var sharedDDLs = []ddl{
	{
		name: "idx_chats_user_id_updated_at",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_chats_user_id_updated_at
			ON chats (user_id, updated_at DESC)
		`,
	},
	{
		name: "idx_messages_chat_id_created_at",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_messages_chat_id_created_at
			ON messages (chat_id, created_at ASC, id ASC)
		`,
	},
	{
		name: "idx_payments_user_id_created_at",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_payments_user_id_created_at
			ON payments (user_id, created_at DESC)
		`,
	},
	{
		name: "idx_users_reset_otp_expiry",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_users_reset_otp_expiry
			ON users (email, password_reset_otp_expiry)
		`,
	},
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := autoMigrateModels(conn); errAutoMigrate != nil {
		return errAutoMigrate
	}

	if errCheck := conn.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'chk_users_credits_non_negative'
			) THEN
				ALTER TABLE users ADD CONSTRAINT chk_users_credits_non_negative CHECK (credits >= 0);
			END IF;
		END $$;
	`).Error; errCheck != nil {
		return fmt.Errorf("db: add credits check constraint: %w", errCheck)
	}

	for _, item := range sharedDDLs {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}
	return nil
}

// migrateSQLite applies SQLite-specific schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := autoMigrateModels(conn); errAutoMigrate != nil {
		return errAutoMigrate
	}
	for _, item := range sharedDDLs {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}
	return nil
}
