package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite implements Store on a SQLite database. Single-use transitions use
// conditional UPDATEs so they stay atomic even with concurrent requests,
// and the file can live on shared storage if the deployment needs
// durability across cold starts.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and initializes the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLite(db), nil
}

// NewSQLite creates a SQLite store over an existing database handle.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity with a lightweight query.
func (s *SQLite) Ping(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// CreateLinkCode generates and persists a fresh single-use code, retrying
// on the rare primary-key collision.
func (s *SQLite) CreateLinkCode(ctx context.Context, internalRef string, scopes []string, ttl time.Duration) (*LinkCode, error) {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}

	scopesJSON, err := json.Marshal(scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scopes: %w", err)
	}

	now := s.now()
	expires := now.Add(ttl)

	for {
		code, err := newLinkCode()
		if err != nil {
			return nil, err
		}

		_, err = s.db.ExecContext(ctx,
			"INSERT INTO link_codes (code, internal_ref, scopes, used, created_at, expires_at) VALUES (?, ?, ?, 0, ?, ?)",
			code, internalRef, string(scopesJSON), now, expires)
		if err != nil {
			if isConstraintViolation(err) {
				continue
			}
			return nil, fmt.Errorf("failed to create link code: %w", err)
		}

		return &LinkCode{
			Code:        code,
			InternalRef: internalRef,
			Scopes:      append([]string(nil), scopes...),
			CreatedAt:   now,
			ExpiresAt:   expires,
		}, nil
	}
}

// RedeemLinkCode consumes a code with a conditional UPDATE: only one of two
// racing redemptions can flip used from 0 to 1.
func (s *SQLite) RedeemLinkCode(ctx context.Context, code, channel, senderID string) (*Redemption, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		"UPDATE link_codes SET used = 1 WHERE code = ? AND used = 0 AND expires_at > ?",
		normalized, now)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem link code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrCodeNotRedeemable
	}

	var internalRef, scopesJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT internal_ref, scopes FROM link_codes WHERE code = ?",
		normalized).Scan(&internalRef, &scopesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load redeemed link code: %w", err)
	}

	var scopes []string
	if err := json.Unmarshal([]byte(scopesJSON), &scopes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scopes: %w", err)
	}

	botUserID := NewBotUserID()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO bot_users (bot_user_id, internal_ref, channel, sender_id, linked_at) VALUES (?, ?, ?, ?, ?)",
		botUserID, internalRef, channel, senderID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot user mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	return &Redemption{BotUserID: botUserID, Scopes: scopes}, nil
}

// GetMapping retrieves a bot-user mapping by id.
func (s *SQLite) GetMapping(ctx context.Context, botUserID string) (*BotUserMapping, error) {
	var m BotUserMapping
	err := s.db.QueryRowContext(ctx,
		"SELECT bot_user_id, internal_ref, channel, sender_id, linked_at FROM bot_users WHERE bot_user_id = ?",
		botUserID).
		Scan(&m.BotUserID, &m.InternalRef, &m.Channel, &m.SenderID, &m.LinkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bot user mapping: %w", err)
	}
	return &m, nil
}

// PutGameData merges data into the record for the internal reference.
func (s *SQLite) PutGameData(ctx context.Context, internalRef string, data map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	merged := make(map[string]any, len(data))

	var existingJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM game_data WHERE internal_ref = ?", internalRef).Scan(&existingJSON)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(existingJSON), &merged); err != nil {
			return fmt.Errorf("failed to unmarshal existing game data: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// First write for this ref
	default:
		return fmt.Errorf("failed to load game data: %w", err)
	}

	for k, v := range data {
		merged[k] = v
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal game data: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO game_data (internal_ref, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(internal_ref) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		internalRef, string(mergedJSON), s.now())
	if err != nil {
		return fmt.Errorf("failed to store game data: %w", err)
	}

	return tx.Commit()
}

// GetGameDataByBotUser resolves the botUserId through the mapping table.
func (s *SQLite) GetGameDataByBotUser(ctx context.Context, botUserID string) (map[string]any, error) {
	mapping, err := s.GetMapping(ctx, botUserID)
	if err != nil {
		return nil, err
	}

	var dataJSON string
	err = s.db.QueryRowContext(ctx,
		"SELECT data FROM game_data WHERE internal_ref = ?", mapping.InternalRef).Scan(&dataJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to get game data: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game data: %w", err)
	}
	return data, nil
}

// CreateNonce persists a prepared admin-action nonce.
func (s *SQLite) CreateNonce(ctx context.Context, n *ActionNonce) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO action_nonces (nonce, action, bot_user_id, created_at, expires_at, used) VALUES (?, ?, ?, ?, ?, 0)",
		n.Nonce, n.Action, n.BotUserID, n.CreatedAt, n.ExpiresAt)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create nonce: %w", err)
	}
	return nil
}

// ConsumeNonce validates and consumes a nonce inside a transaction. The
// final conditional UPDATE guarantees only one confirm can succeed.
func (s *SQLite) ConsumeNonce(ctx context.Context, nonce, action, botUserID string) (*ActionNonce, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var n ActionNonce
	var used int
	err = tx.QueryRowContext(ctx,
		"SELECT nonce, action, bot_user_id, created_at, expires_at, used FROM action_nonces WHERE nonce = ?",
		nonce).Scan(&n.Nonce, &n.Action, &n.BotUserID, &n.CreatedAt, &n.ExpiresAt, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNonceNotFound
		}
		return nil, fmt.Errorf("failed to load nonce: %w", err)
	}

	if used != 0 {
		return nil, ErrNonceUsed
	}
	if s.now().After(n.ExpiresAt) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM action_nonces WHERE nonce = ?", nonce); err != nil {
			return nil, fmt.Errorf("failed to evict expired nonce: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit nonce eviction: %w", err)
		}
		return nil, ErrNonceExpired
	}
	if n.Action != action {
		return nil, ErrActionMismatch
	}
	if n.BotUserID != botUserID {
		return nil, ErrBotUserMismatch
	}

	// The nonce row stays behind with used = 1 until swept, so a replayed
	// confirm reports already-used rather than not-found.
	result, err := tx.ExecContext(ctx,
		"UPDATE action_nonces SET used = 1 WHERE nonce = ? AND used = 0", nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNonceUsed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit nonce consumption: %w", err)
	}

	n.Used = true
	return &n, nil
}

// SweepNonces evicts expired nonces.
func (s *SQLite) SweepNonces(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM action_nonces WHERE expires_at <= ?", s.now())
	if err != nil {
		return fmt.Errorf("failed to sweep nonces: %w", err)
	}
	return nil
}

// isConstraintViolation reports whether err is a SQLite UNIQUE/constraint
// failure. The extended error code for UNIQUE constraint is 2067.
func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == 2067 || (sqliteErr.Code()&0xFF) == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
