// Package userstore holds a process-local goToken.UserProvider used by the
// example server, the load test and HTTP tests.
package userstore

import (
	"context"
	"strings"
	"sync"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/google/uuid"
)

// Memory is a mutex-guarded user table keyed by id. Emails are unique and
// compared case-insensitively; usernames are matched case-insensitively on
// lookup.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]goToken.UserRecord
	byEmail map[string]string
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]goToken.UserRecord),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// Put inserts or replaces u. An empty UserID is assigned a UUID.
func (m *Memory) Put(u goToken.UserRecord) goToken.UserRecord {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byID[u.UserID]; ok {
		delete(m.byEmail, strings.ToLower(old.Email))
	}
	m.byID[u.UserID] = u
	m.byEmail[strings.ToLower(u.Email)] = u.UserID
	return u
}

// Delete removes the user; later refreshes for the id fail with
// ErrUserNotFound.
func (m *Memory) Delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[userID]; ok {
		delete(m.byEmail, strings.ToLower(u.Email))
		delete(m.byID, userID)
	}
}

func (m *Memory) GetUserByIdentifier(_ context.Context, identifier string) (goToken.UserRecord, error) {
	key := strings.ToLower(strings.TrimSpace(identifier))

	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byEmail[key]; ok {
		return m.byID[id], nil
	}
	for _, u := range m.byID {
		if strings.ToLower(u.Username) == key {
			return u, nil
		}
	}
	return goToken.UserRecord{}, goToken.ErrUserNotFound
}

func (m *Memory) GetUserByID(_ context.Context, userID string) (goToken.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[userID]
	if !ok {
		return goToken.UserRecord{}, goToken.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return ok, nil
}

func (m *Memory) CreateUser(_ context.Context, in goToken.CreateUserInput) (goToken.UserRecord, error) {
	key := strings.ToLower(in.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[key]; ok {
		return goToken.UserRecord{}, goToken.ErrConflict
	}
	u := goToken.UserRecord{
		UserID:       uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		EmployeeID:   in.EmployeeID,
		Role:         in.Role,
		RoleID:       in.RoleID,
		PasswordHash: in.PasswordHash,
		Active:       true,
		CreatedAt:    m.now(),
	}
	m.byID[u.UserID] = u
	m.byEmail[key] = u.UserID
	return u, nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return goToken.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.byID[userID] = u
	return nil
}

var _ goToken.UserProvider = (*Memory)(nil)
