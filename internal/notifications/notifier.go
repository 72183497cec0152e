package notifications

import "context"

type WelcomeInput struct {
	UserID    string
	Email     string
	FirstName string
}

type Notifier interface {
	SendWelcome(ctx context.Context, input WelcomeInput) error
}
