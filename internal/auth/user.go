package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

// User is one API account. Role "admin" unlocks the operational endpoints;
// any other role is read-only.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose password hash
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserStore manages API accounts, keyed by username.
type UserStore interface {
	GetUser(username string) (*User, error)
	CreateUser(username, password, role string) (*User, error)
	UpdatePassword(username, newPassword string) error
	ValidateCredentials(username, password string) (*User, error)
	ListUsers() ([]*User, error)
	DeleteUser(username string) error
}

// InMemoryUserStore holds accounts in process memory. Accounts are seeded
// from the environment at startup and do not survive a restart.
type InMemoryUserStore struct {
	users map[string]*User
	mu    sync.RWMutex
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users: make(map[string]*User),
	}
}

// GetUser retrieves a user by username
func (s *InMemoryUserStore) GetUser(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CreateUser adds an account, hashing the password with bcrypt.
func (s *InMemoryUserStore) CreateUser(username, password, role string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &User{
		ID:           generateUserID(),
		Username:     username,
		PasswordHash: string(hashedPassword),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.users[username] = user
	return user, nil
}

// UpdatePassword rehashes and replaces the user's password.
func (s *InMemoryUserStore) UpdatePassword(username, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return ErrUserNotFound
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hashedPassword)
	user.UpdatedAt = time.Now()
	return nil
}

// ValidateCredentials verifies a username/password pair. Unknown usernames
// and wrong passwords return the same error so login attempts cannot probe
// which accounts exist.
func (s *InMemoryUserStore) ValidateCredentials(username, password string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[username]
	if !exists {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// ListUsers returns every account.
func (s *InMemoryUserStore) ListUsers() ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	return users, nil
}

// DeleteUser removes a user
func (s *InMemoryUserStore) DeleteUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; !exists {
		return ErrUserNotFound
	}

	delete(s.users, username)
	return nil
}

// InitializeDefaultUsers seeds the store from AUTH_USERS
// ("user:password:role,..."). Without it, an admin and a viewer account are
// created with passwords from ADMIN_PASSWORD / VIEWER_PASSWORD. Existing
// usernames are left untouched.
func InitializeDefaultUsers(store UserStore) error {
	if spec := os.Getenv("AUTH_USERS"); spec != "" {
		for _, entry := range strings.Split(spec, ",") {
			parts := strings.Split(entry, ":")
			if len(parts) != 3 {
				continue
			}
			if err := seedUser(store, parts[0], parts[1], parts[2]); err != nil {
				return err
			}
		}
		return nil
	}

	if err := seedUser(store, "admin", getEnvOrDefault("ADMIN_PASSWORD", "admin123"), "admin"); err != nil {
		return err
	}
	return seedUser(store, "viewer", getEnvOrDefault("VIEWER_PASSWORD", "viewer123"), "viewer")
}

func seedUser(store UserStore, username, password, role string) error {
	if _, err := store.GetUser(username); err != ErrUserNotFound {
		return nil
	}
	_, err := store.CreateUser(username, password, role)
	return err
}

// generateUserID creates a random user ID
func generateUserID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
