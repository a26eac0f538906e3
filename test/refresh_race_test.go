//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/stretchr/testify/require"
)

func TestRefreshRaceSingleWinner(t *testing.T) {
	f := newRedisFixture(t, func(cfg *goToken.Config) { cfg.Session.CompareAndSwap = true })
	ctx := context.Background()

	login, err := f.engine.Login(ctx, goToken.LoginRequest{Email: "alice@example.com", Password: "correct-password"})
	require.NoError(t, err)

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	type outcome struct {
		res *goToken.AuthResult
		err error
	}
	results := make(chan outcome, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			res, err := f.engine.Refresh(ctx, goToken.RefreshRequest{UserID: f.alice.UserID, RefreshToken: login.RefreshToken})
			results <- outcome{res: res, err: err}
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	var winner *goToken.AuthResult
	for r := range results {
		switch {
		case r.err == nil:
			require.Nil(t, winner, "expected exactly one winner")
			winner = r.res
		case errors.Is(r.err, goToken.ErrRefreshTokenMismatch):
		default:
			t.Fatalf("unexpected refresh error: %v", r.err)
		}
	}
	require.NotNil(t, winner)

	// The winner's token is the one on file.
	_, err = f.engine.Refresh(ctx, goToken.RefreshRequest{UserID: f.alice.UserID, RefreshToken: winner.RefreshToken})
	require.NoError(t, err)
}

func TestRefreshRaceLastWriterWins(t *testing.T) {
	f := newRedisFixture(t, nil)
	ctx := context.Background()

	login, err := f.engine.Login(ctx, goToken.LoginRequest{Email: "alice@example.com", Password: "correct-password"})
	require.NoError(t, err)

	first, err := f.engine.Refresh(ctx, goToken.RefreshRequest{UserID: f.alice.UserID, RefreshToken: login.RefreshToken})
	require.NoError(t, err)

	// The consumed token is now a mismatch and leaves the rotated one intact.
	_, err = f.engine.Refresh(ctx, goToken.RefreshRequest{UserID: f.alice.UserID, RefreshToken: login.RefreshToken})
	require.ErrorIs(t, err, goToken.ErrRefreshTokenMismatch)

	_, err = f.engine.Refresh(ctx, goToken.RefreshRequest{UserID: f.alice.UserID, RefreshToken: first.RefreshToken})
	require.NoError(t, err)
}
