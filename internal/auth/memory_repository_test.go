package auth

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

// memoryRepository is an in-process Repository used by tests. Deleted users
// stay stored and keep their name and email taken.
type memoryRepository struct {
	users  map[int64]*User
	nextID int64
	mu     sync.RWMutex
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		users:  make(map[int64]*User),
		nextID: 1,
	}
}

func (r *memoryRepository) CreateUser(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Name == user.Name {
			return ErrUserExists
		}
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return ErrUserExists
		}
	}
	if user.ID != 0 {
		if _, exists := r.users[user.ID]; exists {
			return ErrUserExists
		}
	} else {
		for r.users[r.nextID] != nil {
			r.nextID++
		}
		user.ID = r.nextID
	}
	if user.Role == "" {
		user.Role = RoleUser
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	// Clone the user to prevent external modifications
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memoryRepository) GetUserByID(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists || user.DeletedAt.Valid {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memoryRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email != nil && *u.Email == email && !u.DeletedAt.Valid {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryRepository) NameTaken(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) EmailDeactivated(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email != nil && *u.Email == email && u.DeletedAt.Valid {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists || user.DeletedAt.Valid {
		return nil, ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.MustChangePassword = false
	user.UpdatedAt = time.Now()

	clone := *user
	return &clone, nil
}

func (r *memoryRepository) delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		user.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
}

// memoryCodeRepository is an in-process CodeRepository used by tests.
type memoryCodeRepository struct {
	codes map[string]*VerificationCode
	mu    sync.Mutex
}

func newMemoryCodeRepository() *memoryCodeRepository {
	return &memoryCodeRepository{codes: make(map[string]*VerificationCode)}
}

func (r *memoryCodeRepository) Get(_ context.Context, email string) (*VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[email]
	if !ok {
		return nil, ErrCodeNotFound
	}
	clone := *code
	return &clone, nil
}

func (r *memoryCodeRepository) Upsert(_ context.Context, code *VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *code
	r.codes[code.Email] = &stored
	return nil
}

func (r *memoryCodeRepository) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[email]; !ok {
		return ErrCodeNotFound
	}
	delete(r.codes, email)
	return nil
}

func (r *memoryCodeRepository) IncrementAttempts(_ context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[email]
	if !ok {
		return 0, ErrCodeNotFound
	}
	code.Attempts++
	return code.Attempts, nil
}

func (r *memoryCodeRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for email, code := range r.codes {
		if code.Expired(now) {
			delete(r.codes, email)
			removed++
		}
	}
	return removed, nil
}

func (r *memoryCodeRepository) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}
