package jobs

import (
	"time"

	"github.com/geocoder89/coursehub/internal/domain/job"
	"github.com/geocoder89/coursehub/internal/domain/user"
)

// WelcomeEmail builds the outbox request for a freshly created user. The
// idempotency key makes a repeated enqueue for the same user a no-op.
func WelcomeEmail(u user.User, requestID string) (job.CreateRequest, error) {
	payload, err := EncodePayload(JobWelcomeEmail, WelcomeEmailPayload{
		UserID:      u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestID,
	})
	if err != nil {
		return job.CreateRequest{}, err
	}

	key := "welcome:" + u.ID
	uid := u.ID

	return job.CreateRequest{
		Type:           string(JobWelcomeEmail),
		Payload:        payload,
		IdempotencyKey: &key,
		UserID:         &uid,
	}, nil
}
