package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"groupsend/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	// Read migration files and execute them
	// This is a simplified version - you might want to use a proper migration tool
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			owner_id INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			id SERIAL PRIMARY KEY,
			group_id INTEGER REFERENCES groups(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(30) DEFAULT '',
			email VARCHAR(255) DEFAULT '',
			chat_id VARCHAR(100) DEFAULT '',
			notes TEXT DEFAULT '',
			is_default_recipient BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS channel_configs (
			user_id INTEGER NOT NULL,
			channel VARCHAR(20) NOT NULL,
			enabled BOOLEAN DEFAULT FALSE,
			PRIMARY KEY (user_id, channel)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			group_id INTEGER REFERENCES groups(id) ON DELETE CASCADE,
			subject VARCHAR(255) DEFAULT '',
			content TEXT NOT NULL,
			status VARCHAR(20) DEFAULT 'draft',
			is_scheduled BOOLEAN DEFAULT FALSE,
			scheduled_at TIMESTAMP,
			is_recurring BOOLEAN DEFAULT FALSE,
			recurring_count INTEGER,
			recurring_unit VARCHAR(10),
			is_reminders BOOLEAN DEFAULT FALSE,
			created_by INTEGER NOT NULL,
			sent_by INTEGER,
			last_updated_by INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			sent_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS reminders (
			id SERIAL PRIMARY KEY,
			message_id UUID REFERENCES messages(id) ON DELETE CASCADE,
			count INTEGER NOT NULL,
			unit VARCHAR(10) NOT NULL,
			fired_at TIMESTAMP,
			UNIQUE (message_id, count, unit)
		)`,

		`CREATE TABLE IF NOT EXISTS recipient_snapshots (
			id SERIAL PRIMARY KEY,
			message_id UUID REFERENCES messages(id) ON DELETE CASCADE,
			member_id INTEGER NOT NULL,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(30) DEFAULT '',
			email VARCHAR(255) DEFAULT '',
			chat_id VARCHAR(100) DEFAULT '',
			notes TEXT DEFAULT '',
			is_recipient BOOLEAN DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS delivery_attempts (
			id SERIAL PRIMARY KEY,
			message_id UUID REFERENCES messages(id) ON DELETE CASCADE,
			snapshot_id INTEGER NOT NULL,
			channel VARCHAR(20) NOT NULL,
			outcome VARCHAR(10) NOT NULL,
			error TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_messages_group_id ON messages(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_scheduled_at ON messages(scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_status_scheduled ON messages(status, scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_message_id ON reminders(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_message_id ON recipient_snapshots(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_message_id ON delivery_attempts(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_members_group_id ON group_members(group_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
