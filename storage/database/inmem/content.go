package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/chuo/core/content"
)

type jobRepository struct {
	db *DB
}

var _ content.Repository = (*jobRepository)(nil)

func NewJobRepository(db *DB) *jobRepository {
	return &jobRepository{db: db}
}

// sortedJobs returns the jobs matching keep, oldest first.
func (repo *jobRepository) sortedJobs(keep func(content.Job) bool) []content.Job {
	jobs := make([]content.Job, 0)
	for _, job := range repo.db.jobs {
		if keep == nil || keep(job) {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

func (repo *jobRepository) CreateJobs(_ context.Context, jobs []content.Job) ([]content.Job, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]content.Job, 0, len(jobs))
	for _, job := range jobs {
		repo.db.jobSeq++
		job.ID = repo.db.jobSeq
		repo.db.jobs[job.ID] = job
		created = append(created, job)
	}
	return created, nil
}

func (repo *jobRepository) QueryJobs(_ context.Context, filter *content.QueryFilter) ([]content.Job, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	jobs := repo.sortedJobs(func(job content.Job) bool {
		return filter == nil || filter.Status == "" || job.Status == filter.Status
	})
	// newest first
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	return jobs, nil
}

func (repo *jobRepository) GetJob(_ context.Context, id int64) (content.Job, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if job, ok := repo.db.jobs[id]; ok {
		return job, nil
	}
	return content.Job{}, content.ErrNotFound
}

func (repo *jobRepository) ActiveTargets(_ context.Context, kind string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	targets := make([]string, 0)
	for _, job := range repo.db.jobs {
		if job.Kind == kind && (job.Status == content.StatusPending || job.Status == content.StatusProcessing) {
			targets = append(targets, job.TargetID)
		}
	}
	return targets, nil
}

func (repo *jobRepository) CountByStatus(_ context.Context) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, job := range repo.db.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (repo *jobRepository) ClaimJobs(_ context.Context, limit int, now time.Time) ([]content.Job, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pending := repo.sortedJobs(func(job content.Job) bool { return job.Status == content.StatusPending })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	for i, job := range pending {
		job.Status = content.StatusProcessing
		job.Attempts++
		job.StartedAt = now.UTC()
		job.Error = ""
		repo.db.jobs[job.ID] = job
		pending[i] = job
	}
	return pending, nil
}

func (repo *jobRepository) finish(id int64, status, result, reason string, now time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	job, ok := repo.db.jobs[id]
	if !ok {
		return content.ErrNotFound
	}
	job.Status = status
	if status == content.StatusCompleted {
		job.Result = result
	}
	job.Error = reason
	job.CompletedAt = now.UTC()
	repo.db.jobs[id] = job
	return nil
}

func (repo *jobRepository) CompleteJob(_ context.Context, id int64, result string, now time.Time) error {
	return repo.finish(id, content.StatusCompleted, result, "", now)
}

func (repo *jobRepository) FailJob(_ context.Context, id int64, reason string, now time.Time) error {
	return repo.finish(id, content.StatusFailed, "", reason, now)
}

// requeue moves the jobs in status `from` back to pending.
func (repo *jobRepository) requeue(from string) int {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for id, job := range repo.db.jobs {
		if job.Status != from {
			continue
		}
		job.Status = content.StatusPending
		job.StartedAt = time.Time{}
		if from == content.StatusFailed {
			job.Error = ""
			job.CompletedAt = time.Time{}
		}
		repo.db.jobs[id] = job
		n++
	}
	return n
}

func (repo *jobRepository) RequeueProcessing(_ context.Context) (int, error) {
	return repo.requeue(content.StatusProcessing), nil
}

func (repo *jobRepository) RequeueFailed(_ context.Context) (int, error) {
	return repo.requeue(content.StatusFailed), nil
}

func (repo *jobRepository) DeleteCompleted(_ context.Context) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for id, job := range repo.db.jobs {
		if job.Status == content.StatusCompleted {
			delete(repo.db.jobs, id)
			n++
		}
	}
	return n, nil
}

func (repo *jobRepository) DeleteJob(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.jobs, id)
	return nil
}
