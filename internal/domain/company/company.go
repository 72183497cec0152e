package company

import (
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/user"
)

var ErrNotFound = errors.New("company not found")

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LogoURL   *string   `json:"logoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EnrollmentStats aggregates one user's enrollments.
type EnrollmentStats struct {
	Enrolled    int
	Completed   int
	ProgressSum int
}

// Employee is the business dashboard row for a company member.
type Employee struct {
	user.User
	Progress int    `json:"progress"`
	Awards   string `json:"awards"`
}

func NewEmployee(u user.User, s EnrollmentStats) Employee {
	return Employee{
		User:     u,
		Progress: s.AverageProgress(),
		Awards:   s.Awards(),
	}
}

// AverageProgress is the mean progress across enrollments, 0..100.
func (s EnrollmentStats) AverageProgress() int {
	if s.Enrolled <= 0 {
		return 0
	}
	avg := s.ProgressSum / s.Enrolled
	switch {
	case avg < 0:
		return 0
	case avg > 100:
		return 100
	}
	return avg
}

// Awards renders completed courses out of enrolled ones, e.g. "2/5".
func (s EnrollmentStats) Awards() string {
	return fmt.Sprintf("%d/%d", s.Completed, s.Enrolled)
}
