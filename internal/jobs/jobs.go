// Package jobs defines the background work the account flows enqueue and
// the JSON payload each job type carries.
package jobs

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

type JobType string

const (
	// JobWelcomeEmail greets a user right after signup.
	JobWelcomeEmail JobType = "account.welcome_email"
)

var (
	ErrInvalidJobType      = errors.New("invalid job type")
	ErrInvalidJobPayload   = errors.New("invalid job payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for job type")
)

// Payload is implemented by every job body. Kind ties a body to the one job
// type allowed to carry it.
type Payload interface {
	Kind() JobType
}

// WelcomeEmailPayload carries enough to address the user without a lookup.
type WelcomeEmailPayload struct {
	UserID      string    `json:"userId" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	FirstName   string    `json:"firstName"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"`
}

func (WelcomeEmailPayload) Kind() JobType { return JobWelcomeEmail }

// registry builds an empty payload per known type for decoding.
var registry = map[JobType]func() Payload{
	JobWelcomeEmail: func() Payload { return &WelcomeEmailPayload{} },
}

// IsValid reports whether t is a known job type.
func (t JobType) IsValid() bool {
	_, ok := registry[t]
	return ok
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePayload checks that payload belongs to t and that its required
// fields are present.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	p, ok := payload.(Payload)
	if !ok || p.Kind() != t {
		return ErrPayloadTypeMismatch
	}

	if err := validate.Struct(p); err != nil {
		return errors.Join(ErrInvalidJobPayload, err)
	}
	return nil
}
