package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/session"
)

type RefreshTokensRepo struct {
	mu    sync.Mutex
	items map[string]session.RefreshToken
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{items: make(map[string]session.RefreshToken)}
}

func (r *RefreshTokensRepo) Save(_ context.Context, rt session.RefreshToken) error {
	r.mu.Lock()
	r.items[rt.ID] = rt
	r.mu.Unlock()
	return nil
}

func (r *RefreshTokensRepo) Rotate(_ context.Context, oldID, oldHash string, next session.RefreshToken) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.items[oldID]
	if !ok {
		return "", session.ErrRefreshNotFound
	}
	now := time.Now().UTC()
	if !old.Usable(oldHash, now) {
		return "", session.ErrRefreshRejected
	}

	old.RevokedAt = &now
	old.ReplacedBy = &next.ID
	r.items[oldID] = old

	next.UserID = old.UserID
	r.items[next.ID] = next
	return old.UserID, nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.items[id]; ok && rt.RevokedAt == nil {
		now := time.Now().UTC()
		rt.RevokedAt = &now
		r.items[id] = rt
	}
	return nil
}

func (r *RefreshTokensRepo) RevokeAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, rt := range r.items {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
			r.items[id] = rt
		}
	}
	return nil
}

func (r *RefreshTokensRepo) Get(id string) (session.RefreshToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.items[id]
	return rt, ok
}
