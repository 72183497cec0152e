package user

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser          = "user"
	RoleBusinessAdmin = "business_admin"
	RoleAdmin         = "admin"
)

const StatusActive = "active"

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Roles        []string  `json:"roles"`
	CompanyID    *string   `json:"companyId,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NewUser is what a store needs to insert an account. The hash is computed
// before it reaches the store.
type NewUser struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Roles        []string
	CompanyID    *string
}

func New(in NewUser) User {
	now := time.Now().UTC()

	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}

	return User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        NormalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
		Roles:        roles,
		CompanyID:    in.CompanyID,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail makes addresses comparable. Emails are case-insensitive
// across the system.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
