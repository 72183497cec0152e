package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geocoder89/coursehub/internal/domain/job"
	"github.com/geocoder89/coursehub/internal/jobs"
	"github.com/geocoder89/coursehub/internal/notifications"
)

type fakeRepo struct {
	mu          sync.Mutex
	queue       []job.Job
	done        []string
	failed      map[string]string
	rescheduled map[string]time.Time
	claimErr    error
}

func newFakeRepo(js ...job.Job) *fakeRepo {
	return &fakeRepo{queue: js, failed: map[string]string{}, rescheduled: map[string]time.Time{}}
}

func (r *fakeRepo) ClaimNext(context.Context, string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return job.Job{}, r.claimErr
	}
	if len(r.queue) == 0 {
		return job.Job{}, job.ErrJobNotFound
	}
	j := r.queue[0]
	r.queue = r.queue[1:]
	return j, nil
}

func (r *fakeRepo) MarkDone(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, id)
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = msg
	return nil
}

func (r *fakeRepo) Reschedule(_ context.Context, id string, runAt time.Time, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescheduled[id] = runAt
	return nil
}

func (r *fakeRepo) RequeueStaleProcessing(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	sent  []notifications.WelcomeInput
	block chan struct{}
}

func (n *fakeNotifier) SendWelcome(ctx context.Context, in notifications.WelcomeInput) error {
	if n.block != nil {
		<-n.block
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, in)
	return n.err
}

func welcomeJob(t *testing.T, id string, attempts int) job.Job {
	t.Helper()
	raw, err := jobs.EncodePayload(jobs.JobWelcomeEmail, jobs.WelcomeEmailPayload{
		UserID:      "9b2f4c1e-0d8a-4a55-9a39-5f1f3e0f2b11",
		Email:       "ann@x.com",
		FirstName:   "Ann",
		RequestedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return job.Job{
		ID:          id,
		Type:        string(jobs.JobWelcomeEmail),
		Payload:     raw,
		Status:      job.StatusProcessing,
		Attempts:    attempts,
		MaxAttempts: 3,
	}
}

func newTestWorker(repo JobsRepository, n notifications.Notifier) *Worker {
	w := New(Config{WorkerID: "w-test", PollInterval: 5 * time.Millisecond, ShutdownGrace: time.Second},
		repo, n, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	w.backoff = func(int) time.Duration { return time.Minute }
	return w
}

func TestProcessOne_Delivers(t *testing.T) {
	repo := newFakeRepo(welcomeJob(t, "j1", 0))
	n := &fakeNotifier{}
	w := newTestWorker(repo, n)

	ok, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"j1"}, repo.done)
	require.Len(t, n.sent, 1)
	require.Equal(t, "ann@x.com", n.sent[0].Email)
	require.EqualValues(t, 1, w.Metrics().Done)
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	w := newTestWorker(newFakeRepo(), &fakeNotifier{})

	ok, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProcessOne_ClaimError(t *testing.T) {
	repo := newFakeRepo()
	repo.claimErr = errors.New("db down")

	_, err := newTestWorker(repo, &fakeNotifier{}).ProcessOne(context.Background())
	require.Error(t, err)
}

func TestProcessOne_TransientFailureReschedules(t *testing.T) {
	repo := newFakeRepo(welcomeJob(t, "j1", 0))
	w := newTestWorker(repo, &fakeNotifier{err: notifications.ErrCircuitOpen})

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	ok, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, repo.done)
	require.Empty(t, repo.failed)
	require.Equal(t, fixed.Add(time.Minute), repo.rescheduled["j1"])
}

func TestProcessOne_ExhaustedFails(t *testing.T) {
	repo := newFakeRepo(welcomeJob(t, "j1", 2))
	w := newTestWorker(repo, &fakeNotifier{err: errors.New("smtp 421")})

	_, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	require.Contains(t, repo.failed["j1"], "smtp 421")
	require.Empty(t, repo.rescheduled)
	require.EqualValues(t, 1, w.Metrics().DeadLettered)
}

func TestProcessOne_BadPayloadFailsWithoutRetry(t *testing.T) {
	bad := job.Job{ID: "j1", Type: string(jobs.JobWelcomeEmail), Payload: json.RawMessage(`{}`), MaxAttempts: 8}
	repo := newFakeRepo(bad)
	n := &fakeNotifier{}

	_, err := newTestWorker(repo, n).ProcessOne(context.Background())
	require.NoError(t, err)
	require.Contains(t, repo.failed, "j1")
	require.Empty(t, n.sent)
}

func TestRun_DrainsAndStops(t *testing.T) {
	repo := newFakeRepo(welcomeJob(t, "j1", 0), welcomeJob(t, "j2", 0))
	w := newTestWorker(repo, &fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.done) == 2
	}, time.Second, 5*time.Millisecond)
	require.True(t, w.Ready())

	cancel()
	require.NoError(t, <-errCh)
	require.False(t, w.Ready())
}

func TestRun_InFlightJobFinishesAfterCancel(t *testing.T) {
	repo := newFakeRepo(welcomeJob(t, "j1", 0))
	n := &fakeNotifier{block: make(chan struct{})}
	w := newTestWorker(repo, n)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.Metrics().Claimed == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	close(n.block)

	require.NoError(t, <-errCh)
	require.Equal(t, []string{"j1"}, repo.done)
}

func TestHealthHandler_Readiness(t *testing.T) {
	w := newTestWorker(newFakeRepo(), &fakeNotifier{})
	h := w.HealthHandler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	w.setReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExponentialBackoff(t *testing.T) {
	for attempt, base := range map[int]time.Duration{0: 2 * time.Second, 1: 4 * time.Second, 3: 16 * time.Second, 20: backoffCap} {
		got := ExponentialBackoff(attempt)
		require.GreaterOrEqual(t, got, base, "attempt %d", attempt)
		require.Less(t, got, base+250*time.Millisecond, "attempt %d", attempt)
	}
}
