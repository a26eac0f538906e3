package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goToken "github.com/MrEthical07/goToken"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ goToken.UserProvider = (*Users)(nil)

// Users is the Postgres-backed goToken.UserProvider.
type Users struct {
	db *DB
}

func NewUsers(db *DB) *Users { return &Users{db: db} }

const (
	userColumns = `id, username, email, full_name, employee_id, role, role_id, password_hash, active, created_at`

	qUserInsert = `
INSERT INTO users (id, username, email, full_name, employee_id, role, role_id, password_hash, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	// Email matches win over username matches.
	qUserByIdentifier = `
SELECT ` + userColumns + `
FROM users
WHERE lower(email) = lower($1) OR lower(username) = lower($1)
ORDER BY (lower(email) = lower($1)) DESC, created_at
LIMIT 1;`

	qUserEmailExists = `
SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1));`

	qUserUpdatePassword = `
UPDATE users
SET password_hash = $2,
    updated_at    = NOW()
WHERE id = $1;`
)

func (u *Users) GetUserByIdentifier(ctx context.Context, identifier string) (goToken.UserRecord, error) {
	ctx, cancel := u.db.withTimeout(ctx)
	defer cancel()
	return scanUser(u.db.Pool.QueryRow(ctx, qUserByIdentifier, strings.TrimSpace(identifier)))
}

func (u *Users) GetUserByID(ctx context.Context, userID string) (goToken.UserRecord, error) {
	ctx, cancel := u.db.withTimeout(ctx)
	defer cancel()
	return scanUser(u.db.Pool.QueryRow(ctx, qUserByID, userID))
}

func (u *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := u.db.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := u.db.Pool.QueryRow(ctx, qUserEmailExists, strings.TrimSpace(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: email exists: %v", goToken.ErrUnavailable, err)
	}
	return exists, nil
}

// CreateUser inserts an active user. A duplicate email, compared
// case-insensitively, is goToken.ErrConflict.
func (u *Users) CreateUser(ctx context.Context, in goToken.CreateUserInput) (goToken.UserRecord, error) {
	ctx, cancel := u.db.withTimeout(ctx)
	defer cancel()

	rec, err := scanUser(u.db.Pool.QueryRow(ctx, qUserInsert,
		uuid.NewString(), in.Username, in.Email, in.FullName, in.EmployeeID, in.Role, in.RoleID, in.PasswordHash,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return goToken.UserRecord{}, goToken.ErrConflict
		}
		return goToken.UserRecord{}, err
	}
	return rec, nil
}

func (u *Users) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	ctx, cancel := u.db.withTimeout(ctx)
	defer cancel()

	tag, err := u.db.Pool.Exec(ctx, qUserUpdatePassword, userID, hash)
	if err != nil {
		return fmt.Errorf("%w: update password hash: %v", goToken.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return goToken.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (goToken.UserRecord, error) {
	var out goToken.UserRecord
	err := row.Scan(
		&out.UserID, &out.Username, &out.Email, &out.FullName, &out.EmployeeID,
		&out.Role, &out.RoleID, &out.PasswordHash, &out.Active, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return goToken.UserRecord{}, goToken.ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return goToken.UserRecord{}, err
		}
		return goToken.UserRecord{}, fmt.Errorf("%w: scan user: %v", goToken.ErrUnavailable, err)
	}
	return out, nil
}
