package store

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddlStatements := []string{
		// link_codes: single-use pairing codes. Redeemed codes are kept as
		// tombstones (used = 1), never deleted, so a code is never reissued.
		`CREATE TABLE IF NOT EXISTS link_codes (
			code TEXT PRIMARY KEY,
			internal_ref TEXT NOT NULL,
			scopes TEXT NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,

		// bot_users: pseudonymous identity minted at redemption. internal_ref
		// never leaves this table across the trust boundary.
		`CREATE TABLE IF NOT EXISTS bot_users (
			bot_user_id TEXT PRIMARY KEY,
			internal_ref TEXT NOT NULL,
			channel TEXT NOT NULL DEFAULT '',
			sender_id TEXT NOT NULL DEFAULT '',
			linked_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bot_users_internal_ref ON bot_users(internal_ref)`,

		// game_data: arbitrary JSON keyed by the internal reference.
		`CREATE TABLE IF NOT EXISTS game_data (
			internal_ref TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// action_nonces: prepared admin actions awaiting confirmation.
		`CREATE TABLE IF NOT EXISTS action_nonces (
			nonce TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			bot_user_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			used INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_action_nonces_expires ON action_nonces(expires_at)`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}
