package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/coursehub/internal/domain/job"
)

// JobsRepo records enqueued jobs. It only covers the producer side.
type JobsRepo struct {
	mu    sync.Mutex
	items []job.Job
	keys  map[string]int
}

func NewJobsRepo() *JobsRepo {
	return &JobsRepo{keys: make(map[string]int)}
}

func (r *JobsRepo) Create(_ context.Context, req job.CreateRequest) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.IdempotencyKey != nil {
		if i, ok := r.keys[*req.IdempotencyKey]; ok {
			return r.items[i], nil
		}
	}

	j := job.New(req)
	r.items = append(r.items, j)
	if req.IdempotencyKey != nil {
		r.keys[*req.IdempotencyKey] = len(r.items) - 1
	}
	return j, nil
}

func (r *JobsRepo) All() []job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]job.Job(nil), r.items...)
}
