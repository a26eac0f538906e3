package userstore

import (
	"context"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/stretchr/testify/require"
)

func TestMemoryLookup(t *testing.T) {
	m := NewMemory()
	u := m.Put(goToken.UserRecord{Username: "Alice", Email: "Alice@Example.com", Active: true})
	require.NotEmpty(t, u.UserID)
	ctx := context.Background()

	got, err := m.GetUserByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.UserID, got.UserID)

	got, err = m.GetUserByIdentifier(ctx, " ALICE ")
	require.NoError(t, err)
	require.Equal(t, u.UserID, got.UserID)

	_, err = m.GetUserByIdentifier(ctx, "bob")
	require.ErrorIs(t, err, goToken.ErrUserNotFound)

	exists, err := m.EmailExists(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMemoryCreateDuplicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u, err := m.CreateUser(ctx, goToken.CreateUserInput{Username: "bob", Email: "bob@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.True(t, u.Active)

	_, err = m.CreateUser(ctx, goToken.CreateUserInput{Username: "bob2", Email: "BOB@example.com"})
	require.ErrorIs(t, err, goToken.ErrConflict)
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	u := m.Put(goToken.UserRecord{UserID: "u1", Email: "c@example.com"})

	require.NoError(t, m.UpdatePasswordHash(ctx, u.UserID, "new"))
	got, err := m.GetUserByID(ctx, u.UserID)
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)

	m.Delete(u.UserID)
	_, err = m.GetUserByID(ctx, u.UserID)
	require.ErrorIs(t, err, goToken.ErrUserNotFound)
	require.ErrorIs(t, m.UpdatePasswordHash(ctx, u.UserID, "x"), goToken.ErrUserNotFound)

	exists, _ := m.EmailExists(ctx, "c@example.com")
	require.False(t, exists)
}
