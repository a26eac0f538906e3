package goToken

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/session"
)

func newTestIssuer(t *testing.T) (*TokenIssuer, *session.MemoryStore, *testUserProvider, *testClock) {
	t.Helper()
	clock := newTestClock()
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:  time.Hour,
		SigningKey: []byte(testSigningKey),
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	store := session.NewMemoryStore().WithClock(clock.Now)
	users := newTestUserProvider()
	return NewTokenIssuer(jm, store, users, 7*24*time.Hour, clock.Now), store, users, clock
}

func TestIssueAccessTokenNilUser(t *testing.T) {
	issuer, _, _, _ := newTestIssuer(t)
	if _, _, err := issuer.IssueAccessToken(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestIssueAccessTokenClaims(t *testing.T) {
	issuer, _, users, clock := newTestIssuer(t)
	alice := seedAlice(t, users)

	token, exp, err := issuer.IssueAccessToken(&alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected exp %v", exp)
	}
	p, err := issuer.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.UserID != alice.UserID || p.Email != alice.Email || p.FullName != alice.FullName || p.EmployeeID != "E-100" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestIssueRefreshTokenLength(t *testing.T) {
	issuer, _, _, _ := newTestIssuer(t)
	a, err := issuer.IssueRefreshToken()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, _ := issuer.IssueRefreshToken()
	if len(a) < 86 || a == b {
		t.Fatalf("expected distinct tokens of at least 64 bytes, got %d chars", len(a))
	}
}

func TestPersistRefreshToken(t *testing.T) {
	issuer, store, users, clock := newTestIssuer(t)
	alice := seedAlice(t, users)
	ctx := context.Background()

	if err := issuer.PersistRefreshToken(ctx, alice.UserID, "tok"); err != nil {
		t.Fatalf("persist: %v", err)
	}
	rec, err := store.Get(ctx, alice.UserID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.TokenHash != internal.HashRefreshToken("tok") {
		t.Fatal("stored digest mismatch")
	}
	if !rec.ExpiresAt.Equal(clock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", rec.ExpiresAt)
	}
}

func TestPersistAndRevokeMissingUserAreNoops(t *testing.T) {
	issuer, store, _, _ := newTestIssuer(t)
	ctx := context.Background()

	if err := issuer.PersistRefreshToken(ctx, "ghost", "tok"); err != nil {
		t.Fatalf("persist for missing user: %v", err)
	}
	if _, err := store.Get(ctx, "ghost"); !errors.Is(err, session.ErrRecordNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
	if err := issuer.RevokeRefreshToken(ctx, "ghost"); err != nil {
		t.Fatalf("revoke for missing user: %v", err)
	}
	if err := issuer.RevokeRefreshToken(ctx, ""); err != nil {
		t.Fatalf("revoke for empty id: %v", err)
	}
}

func TestRotateRefreshToken(t *testing.T) {
	issuer, _, users, clock := newTestIssuer(t)
	alice := seedAlice(t, users)
	ctx := context.Background()

	if err := issuer.PersistRefreshToken(ctx, alice.UserID, "first"); err != nil {
		t.Fatalf("persist: %v", err)
	}
	err := issuer.RotateRefreshToken(ctx, alice.UserID, internal.HashRefreshToken("stale"), "second")
	if !errors.Is(err, ErrRefreshTokenMismatch) {
		t.Fatalf("expected ErrRefreshTokenMismatch, got %v", err)
	}
	if err := issuer.RotateRefreshToken(ctx, alice.UserID, internal.HashRefreshToken("first"), "second"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	clock.Advance(8 * 24 * time.Hour)
	err = issuer.RotateRefreshToken(ctx, alice.UserID, internal.HashRefreshToken("second"), "third")
	if !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
}

func TestStoreErrorMapping(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{session.ErrRecordNotFound, ErrRefreshTokenNotFound},
		{session.ErrHashMismatch, ErrRefreshTokenMismatch},
		{session.ErrRecordExpired, ErrRefreshTokenExpired},
		{session.ErrInvalidUserID, ErrInvalidArgument},
		{session.ErrRedisUnavailable, ErrUnavailable},
	}
	for _, tc := range cases {
		if got := storeError(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("storeError(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
