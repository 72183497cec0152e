package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) SendWelcome(ctx context.Context, _ WelcomeInput) error {
	f.calls++
	return f.err
}

func TestProtectedNotifier_OpensAfterThreshold(t *testing.T) {
	inner := &fakeNotifier{err: errors.New("smtp down")}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Minute})
	n.now = func() time.Time { return clock }

	ctx := context.Background()
	require.Error(t, n.SendWelcome(ctx, WelcomeInput{}))
	require.Equal(t, "closed", n.State())
	require.Error(t, n.SendWelcome(ctx, WelcomeInput{}))
	require.Equal(t, "open", n.State())

	require.ErrorIs(t, n.SendWelcome(ctx, WelcomeInput{}), ErrCircuitOpen)
	require.Equal(t, 2, inner.calls)

	// after the cooldown one trial call goes through and closes on success
	clock = clock.Add(time.Minute)
	inner.err = nil
	require.NoError(t, n.SendWelcome(ctx, WelcomeInput{}))
	require.Equal(t, "closed", n.State())
	require.Equal(t, 3, inner.calls)
}

func TestProtectedNotifier_HalfOpenFailureReopens(t *testing.T) {
	inner := &fakeNotifier{err: errors.New("still down")}
	clock := time.Now()

	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Second})
	n.now = func() time.Time { return clock }

	require.Error(t, n.SendWelcome(context.Background(), WelcomeInput{}))
	require.Equal(t, "open", n.State())

	clock = clock.Add(2 * time.Second)
	require.Error(t, n.SendWelcome(context.Background(), WelcomeInput{}))
	require.Equal(t, "open", n.State())
	require.ErrorIs(t, n.SendWelcome(context.Background(), WelcomeInput{}), ErrCircuitOpen)
}

func TestLogNotifier_Succeeds(t *testing.T) {
	t.Setenv("NOTIFIER_FAIL", "")
	require.NoError(t, NewLogNotifier(nil).SendWelcome(context.Background(), WelcomeInput{Email: "a@b.co"}))
}

func TestLogNotifier_SimulatedOutage(t *testing.T) {
	t.Setenv("NOTIFIER_FAIL", "1")
	require.Error(t, NewLogNotifier(nil).SendWelcome(context.Background(), WelcomeInput{}))
}
