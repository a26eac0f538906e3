package client

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mintToken signs an access token for userID that expires at exp.
func mintToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:  time.Hour,
		SigningKey: []byte(testSigningKey),
		Now:        func() time.Time { return exp.Add(-time.Hour) },
	})
	require.NoError(t, err)
	token, _, err := m.CreateAccess(&jwt.Subject{
		UserID:   userID,
		Username: "alice",
		Email:    "alice@example.com",
		Role:     "Admin",
		RoleID:   "1",
		FullName: "Alice Example",
	})
	require.NoError(t, err)
	return token
}
