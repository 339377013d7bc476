package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/yourusername/patronhub/models"
)

// memoryLookup is a set of taken handles.
type memoryLookup struct {
	taken   map[string]bool
	calls   []string
	failOn  string
	failErr error
}

func newMemoryLookup(names ...string) *memoryLookup {
	l := &memoryLookup{taken: map[string]bool{}}
	for _, n := range names {
		l.taken[strings.ToLower(n)] = true
	}
	return l
}

func (l *memoryLookup) UsernameExists(_ context.Context, username string) (bool, error) {
	l.calls = append(l.calls, username)
	if l.failErr != nil && (l.failOn == "" || l.failOn == username) {
		return false, l.failErr
	}
	return l.taken[strings.ToLower(username)], nil
}

// memoryUsers is an in-memory UserRepositoryInterface with unique username/email.
type memoryUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	// beforeCreate runs before the uniqueness checks in Create.
	beforeCreate func(u *models.User)
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[uuid.UUID]*models.User{}}
}

func (m *memoryUsers) add(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Username = strings.ToLower(u.Username)
	u.Email = strings.ToLower(u.Email)
	m.users[u.ID] = &u
	return &u
}

func (m *memoryUsers) Create(_ context.Context, user *models.User) error {
	if m.beforeCreate != nil {
		m.beforeCreate(user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == strings.ToLower(user.Username) {
			return models.ErrDuplicateUsername
		}
		if u.Email == strings.ToLower(user.Email) {
			return models.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	username = strings.ToLower(username)
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *memoryUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memoryUsers) UpdateProfile(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryUsers) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.Email = email
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memoryUsers) UpdateFlags(_ context.Context, id uuid.UUID, isAdmin, isDisabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.IsAdmin, u.IsDisabled = isAdmin, isDisabled
	return nil
}

func (m *memoryUsers) List(_ context.Context, page, limit int) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memoryUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.users, id)
	return nil
}
