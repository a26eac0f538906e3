// Package postgres provides Postgres implementations of goToken.UserProvider
// and session.Store on a pgx pool, plus the goose migrations for their
// tables.
//
// Migrations are embedded; run them with [Migrate] or the gotoken-migrate
// command before opening the stores.
package postgres
