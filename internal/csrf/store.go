// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package csrf implements the double-submit CSRF defense: a persistent
// per-user token store plus the guard middleware that issues and
// validates tokens.
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vinovest/sqlx"

	"github.com/assesshub/platform/internal/apperr"
)

const (
	// DefaultTokenTTL is the lifetime of an issued CSRF token.
	DefaultTokenTTL = 24 * time.Hour
	// DefaultSweepInterval is how often expired rows are purged.
	DefaultSweepInterval = time.Hour
)

// Store maps a user to their currently valid anti-forgery token. Tokens
// are cryptographically bound to a per-user secret derived from the
// master secret, so rows written under an older secret epoch fail
// verification even if they still match in the table.
type Store struct {
	db     *sqlx.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a Store. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewStore(db *sqlx.DB, secret []byte, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Store{db: db, secret: secret, ttl: ttl, now: time.Now}
}

// Issue generates a fresh token for the user and upserts it keyed by
// user_id, superseding any previous row. A missing csrf_tokens table is
// created on the fly and the write retried once.
func (s *Store) Issue(ctx context.Context, userID int64) (string, error) {
	token := s.mint(userID)
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	err := s.upsert(ctx, userID, token, expiresAt, now)
	if isMissingTable(err) {
		if schemaErr := s.EnsureSchema(ctx); schemaErr != nil {
			return "", apperr.Wrap(apperr.InternalError, "create csrf schema", schemaErr)
		}
		err = s.upsert(ctx, userID, token, expiresAt, now)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.InternalError, "store csrf token", err)
	}

	return token, nil
}

// Verify reports whether the presented token is the user's current,
// unexpired token. The HMAC binding is checked before the store is
// consulted. When the backing table does not exist yet, the schema is
// created and a SchemaNotReady error returned so the guard can apply its
// first-run policy.
func (s *Store) Verify(ctx context.Context, userID int64, presented string) (bool, error) {
	if !s.checkBinding(userID, presented) {
		return false, nil
	}

	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT count(*) FROM csrf_tokens WHERE user_id = ? AND token = ? AND expires_at > ?`,
		userID, presented, s.now().UTC())
	if isMissingTable(err) {
		if schemaErr := s.EnsureSchema(ctx); schemaErr != nil {
			return false, apperr.Wrap(apperr.InternalError, "create csrf schema", schemaErr)
		}
		return false, apperr.New(apperr.SchemaNotReady, "csrf schema created on first use")
	}
	if err != nil {
		return false, apperr.Wrap(apperr.InternalError, "lookup csrf token", err)
	}

	if count == 0 {
		// Bound store growth: drop this user's expired row while we are here.
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM csrf_tokens WHERE user_id = ? AND expires_at <= ?`,
			userID, s.now().UTC())
		return false, nil
	}

	return true, nil
}

// Sweep deletes all expired rows and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM csrf_tokens WHERE expires_at <= ?`, s.now().UTC())
	if isMissingTable(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartSweeper runs Sweep on a timer until ctx is cancelled. It runs off
// the request path and is safe alongside concurrent reads and writes
// because it only removes already-expired rows.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Sweep(ctx)
				if err != nil {
					slog.Warn("csrf sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Debug("csrf sweep", "removed", removed)
				}
			}
		}
	}()
}

// EnsureSchema creates the csrf_tokens table and its indexes if absent.
// Idempotent; safe to call concurrently.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS csrf_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_csrf_tokens_user_token ON csrf_tokens(user_id, token)`,
		`CREATE INDEX IF NOT EXISTS idx_csrf_tokens_expires_at ON csrf_tokens(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, userID int64, token string, expiresAt, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO csrf_tokens (user_id, token, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		userID, token, expiresAt, createdAt)
	return err
}

// mint builds a token of the form nonce.signature, where the signature is
// an HMAC of the nonce under the user's derived secret.
func (s *Store) mint(userID int64) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	return nonce + "." + s.sign(userID, nonce)
}

// checkBinding verifies the token was derived from this user's secret,
// rejecting tokens minted for another user or under a rotated master
// secret.
func (s *Store) checkBinding(userID int64, token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || sig == "" {
		return false
	}
	expected := s.sign(userID, nonce)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (s *Store) sign(userID int64, nonce string) string {
	mac := hmac.New(sha256.New, s.userSecret(userID))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// userSecret derives the per-user secret from the master secret.
func (s *Store) userSecret(userID int64) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("user:" + strconv.FormatInt(userID, 10)))
	return mac.Sum(nil)
}

// isMissingTable detects SQLite's missing-table error so first use can
// self-heal instead of hard-failing.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
