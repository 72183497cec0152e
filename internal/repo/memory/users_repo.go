package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/geocoder89/coursehub/internal/domain/user"
)

// UsersRepo is an in-process user store. Create checks and inserts under one
// lock, which gives the same uniqueness guarantee as the database constraint.
type UsersRepo struct {
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string

	creates atomic.Int64
	reads   atomic.Int64
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(ctx context.Context, in user.NewUser) (user.User, error) {
	r.creates.Add(1)
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	u := user.New(in)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

// Put stores u as-is, for seeding fixtures.
func (r *UsersRepo) Put(u user.User) {
	r.mu.Lock()
	r.byID[u.ID] = u
	r.byEmail[user.NormalizeEmail(u.Email)] = u.ID
	r.mu.Unlock()
}

func (r *UsersRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Calls reports how many create and read operations reached the store.
func (r *UsersRepo) Calls() (creates, reads int64) {
	return r.creates.Load(), r.reads.Load()
}
