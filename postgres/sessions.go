package postgres

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/session"
	"github.com/jackc/pgx/v5"
)

var _ session.Store = (*SessionStore)(nil)

// SessionStore keeps one refresh record per user in the refresh_tokens
// table. Expired rows stay readable until [SessionStore.PurgeExpired]
// removes them.
type SessionStore struct {
	db  *DB
	now func() time.Time
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// WithClock replaces the clock used by CompareAndSwap.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	if now != nil {
		s.now = now
	}
	return s
}

const (
	qSessionGet = `
SELECT token_hash, expires_at
FROM refresh_tokens
WHERE user_id = $1;`

	qSessionLock = `
SELECT token_hash, expires_at
FROM refresh_tokens
WHERE user_id = $1
FOR UPDATE;`

	qSessionUpsert = `
INSERT INTO refresh_tokens (user_id, token_hash, expires_at, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id) DO UPDATE
SET token_hash = EXCLUDED.token_hash,
    expires_at = EXCLUDED.expires_at,
    updated_at = NOW();`

	qSessionUpdate = `
UPDATE refresh_tokens
SET token_hash = $2,
    expires_at = $3,
    updated_at = NOW()
WHERE user_id = $1;`

	qSessionDelete = `
DELETE FROM refresh_tokens WHERE user_id = $1;`

	qSessionPurge = `
DELETE FROM refresh_tokens WHERE expires_at < $1;`
)

func (s *SessionStore) Get(ctx context.Context, userID string) (session.Record, error) {
	if userID == "" {
		return session.Record{}, session.ErrInvalidUserID
	}
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	return scanRecord(s.db.Pool.QueryRow(ctx, qSessionGet, userID))
}

// Put overwrites the record for userID; the last writer wins.
func (s *SessionStore) Put(ctx context.Context, userID string, rec session.Record) error {
	if userID == "" {
		return session.ErrInvalidUserID
	}
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Pool.Exec(ctx, qSessionUpsert, userID, internal.EncodeRefreshHash(rec.TokenHash), rec.ExpiresAt); err != nil {
		return fmt.Errorf("put refresh record: %w", err)
	}
	return nil
}

// CompareAndSwap locks the row, checks digest and expiry, and writes next in
// the same transaction.
func (s *SessionStore) CompareAndSwap(ctx context.Context, userID string, expected [32]byte, next session.Record) error {
	if userID == "" {
		return session.ErrInvalidUserID
	}
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		cur, err := scanRecord(tx.QueryRow(ctx, qSessionLock, userID))
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare(cur.TokenHash[:], expected[:]) != 1 {
			return session.ErrHashMismatch
		}
		if cur.Expired(s.now()) {
			return session.ErrRecordExpired
		}
		if _, err := tx.Exec(ctx, qSessionUpdate, userID, internal.EncodeRefreshHash(next.TokenHash), next.ExpiresAt); err != nil {
			return fmt.Errorf("swap refresh record: %w", err)
		}
		return nil
	})
}

// Delete is idempotent.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return session.ErrInvalidUserID
	}
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Pool.Exec(ctx, qSessionDelete, userID); err != nil {
		return fmt.Errorf("delete refresh record: %w", err)
	}
	return nil
}

// PurgeExpired deletes records that expired before cutoff and reports how
// many were removed.
func (s *SessionStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.Pool.Exec(ctx, qSessionPurge, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge refresh records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (session.Record, error) {
	var (
		encoded string
		rec     session.Record
	)
	if err := row.Scan(&encoded, &rec.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Record{}, session.ErrRecordNotFound
		}
		return session.Record{}, fmt.Errorf("scan refresh record: %w", err)
	}
	hash, err := internal.DecodeRefreshHash(encoded)
	if err != nil {
		return session.Record{}, err
	}
	rec.TokenHash = hash
	return rec, nil
}
