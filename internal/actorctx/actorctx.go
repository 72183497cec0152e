package actorctx

import (
	"context"
	"slices"

	"github.com/geocoder89/coursehub/internal/domain/user"
)

type ctxKey int

const (
	keyActor ctxKey = iota
	keyRequestID
)

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID    string
	Email     string
	Roles     []string
	CompanyID string
}

func (a Actor) Authenticated() bool { return a.UserID != "" }

func (a Actor) HasRole(role string) bool { return slices.Contains(a.Roles, role) }

func (a Actor) IsAdmin() bool { return a.HasRole(user.RoleAdmin) }

// CanManageCompany allows platform admins, and business admins of that
// company only.
func (a Actor) CanManageCompany(companyID string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.HasRole(user.RoleBusinessAdmin) && a.CompanyID != "" && a.CompanyID == companyID
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, keyActor, a)
}

func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(keyActor).(Actor)
	return a, ok && a.Authenticated()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}
