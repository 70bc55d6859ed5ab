package content

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("job not found")
	ErrJobBusy  = errors.New("the job is being processed")
)

type (
	// Generator produces text from a prompt.
	Generator interface {
		Generate(ctx context.Context, prompt string) (string, error)
	}

	CourseSource interface {
		GetCourse(id string) (academics.Course, error)
		CoursesWithoutDescription() ([]academics.Course, error)
		SetCourseDescription(id, description string) error
	}

	Repository interface {
		CreateJobs(ctx context.Context, jobs []Job) ([]Job, error)
		QueryJobs(ctx context.Context, filter *QueryFilter) ([]Job, error)
		GetJob(ctx context.Context, id int64) (Job, error)
		// ActiveTargets returns the targets of kind with a pending or processing job.
		ActiveTargets(ctx context.Context, kind string) ([]string, error)
		CountByStatus(ctx context.Context) (map[string]int, error)
		// ClaimJobs moves up to limit pending jobs, oldest first, to processing and bumps their attempts.
		ClaimJobs(ctx context.Context, limit int, now time.Time) ([]Job, error)
		CompleteJob(ctx context.Context, id int64, result string, now time.Time) error
		FailJob(ctx context.Context, id int64, reason string, now time.Time) error
		// RequeueProcessing moves processing jobs back to pending.
		RequeueProcessing(ctx context.Context) (int, error)
		// RequeueFailed moves failed jobs back to pending and clears their error.
		RequeueFailed(ctx context.Context) (int, error)
		DeleteCompleted(ctx context.Context) (int, error)
		DeleteJob(ctx context.Context, id int64) error
	}

	ServiceInterface interface {
		Enqueue(req EnqueueRequest) ([]Job, error)
		Query(filter *QueryFilter) ([]Job, error)
		Get(id int64) (Job, error)
		Status() (QueueStatus, error)
		Start() error
		Pause()
		RetryFailed() (int, error)
		ClearCompleted() (int, error)
		Delete(id int64) error
		Run(ctx context.Context) error
	}

	Service struct {
		repo      Repository
		gen       Generator
		courses   CourseSource
		logger    core.Logger
		interval  time.Duration
		batchSize int
		workers   int

		mu      sync.Mutex
		running bool
		busy    bool // a batch is in flight
		wake    chan struct{}
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, gen Generator, courses CourseSource, logger core.Logger, conf *core.Config) *Service {
	svc := &Service{
		repo:      repo,
		gen:       gen,
		courses:   courses,
		logger:    logger,
		interval:  conf.Content.PollInterval,
		batchSize: conf.Content.BatchSize,
		workers:   conf.Content.Workers,
		wake:      make(chan struct{}, 1),
	}
	if svc.interval <= 0 {
		svc.interval = 5 * time.Second
	}
	if svc.batchSize <= 0 {
		svc.batchSize = 10
	}
	if svc.workers <= 0 {
		svc.workers = 1
	}
	return svc
}

// Enqueue creates a pending job per target. Targets that already have an active job are skipped.
func (svc *Service) Enqueue(req EnqueueRequest) ([]Job, error) {
	ctx := context.Background()

	var courses []academics.Course
	if len(req.TargetIDs) == 0 {
		var err error
		if courses, err = svc.courses.CoursesWithoutDescription(); err != nil {
			return nil, errors.Wrap(err, "querying courses")
		}
	} else {
		for _, id := range req.TargetIDs {
			crs, err := svc.courses.GetCourse(id)
			if err != nil {
				if core.IsNotFound(err) {
					return nil, core.NewFieldError("target_ids", "course not found: "+id)
				}
				return nil, errors.Wrap(err, "getting course")
			}
			courses = append(courses, crs)
		}
	}

	active, err := svc.repo.ActiveTargets(ctx, req.Kind)
	if err != nil {
		return nil, errors.Wrap(err, "querying active targets")
	}

	now := core.Now()
	jobs := make([]Job, 0, len(courses))
	for _, crs := range courses {
		if core.StringInSlice(crs.ID, active) {
			continue
		}
		jobs = append(jobs, Job{
			Kind:      req.Kind,
			TargetID:  crs.ID,
			Prompt:    CoursePrompt(crs),
			Status:    StatusPending,
			CreatedAt: now,
		})
	}
	if len(jobs) == 0 {
		return []Job{}, nil
	}

	jobs, err = svc.repo.CreateJobs(ctx, jobs)
	if err != nil {
		return nil, errors.Wrap(err, "creating jobs")
	}
	svc.poke()
	return jobs, nil
}

func (svc *Service) Query(filter *QueryFilter) ([]Job, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryJobs(context.Background(), filter)
}

func (svc *Service) Get(id int64) (Job, error) {
	return svc.repo.GetJob(context.Background(), id)
}

func (svc *Service) Status() (QueueStatus, error) {
	counts, err := svc.repo.CountByStatus(context.Background())
	if err != nil {
		return QueueStatus{}, errors.Wrap(err, "counting jobs")
	}
	status := QueueStatus{Counts: make(map[string]int, len(Statuses)), Running: svc.isRunning()}
	for _, s := range Statuses {
		status.Counts[s] = counts[s]
	}
	return status, nil
}

// Start resumes processing. Jobs left in processing by an interrupted run are requeued first.
func (svc *Service) Start() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.running {
		return nil
	}
	if !svc.busy {
		n, err := svc.repo.RequeueProcessing(context.Background())
		if err != nil {
			return errors.Wrap(err, "requeuing jobs")
		}
		if n > 0 {
			svc.logger.Info("content: requeued interrupted jobs", map[string]interface{}{"count": n})
		}
	}
	svc.running = true
	svc.poke()
	return nil
}

// Pause stops claiming new batches. The batch in flight runs to completion.
func (svc *Service) Pause() {
	svc.mu.Lock()
	svc.running = false
	svc.mu.Unlock()
}

func (svc *Service) RetryFailed() (int, error) {
	n, err := svc.repo.RequeueFailed(context.Background())
	if err != nil {
		return 0, errors.Wrap(err, "requeuing failed jobs")
	}
	svc.poke()
	return n, nil
}

func (svc *Service) ClearCompleted() (int, error) {
	n, err := svc.repo.DeleteCompleted(context.Background())
	return n, errors.Wrap(err, "deleting completed jobs")
}

func (svc *Service) Delete(id int64) error {
	ctx := context.Background()
	job, err := svc.repo.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == StatusProcessing {
		return core.NewValidationError(ErrJobBusy)
	}
	return errors.Wrap(svc.repo.DeleteJob(ctx, id), "deleting job")
}

// Run processes batches while the queue is running, until ctx is done.
func (svc *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(svc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-svc.wake:
		}
		if !svc.isRunning() {
			continue
		}
		for {
			n, err := svc.RunOnce(ctx)
			if err != nil {
				svc.logger.Error("content: processing batch", err)
				break
			}
			if n == 0 || ctx.Err() != nil || !svc.isRunning() {
				break
			}
		}
	}
}

// RunOnce claims a batch of pending jobs and processes it, returning the number of jobs claimed.
func (svc *Service) RunOnce(ctx context.Context) (int, error) {
	svc.mu.Lock()
	if svc.busy {
		svc.mu.Unlock()
		return 0, nil
	}
	svc.busy = true
	svc.mu.Unlock()

	defer func() {
		svc.mu.Lock()
		svc.busy = false
		svc.mu.Unlock()
	}()

	jobs, err := svc.repo.ClaimJobs(ctx, svc.batchSize, core.Now())
	if err != nil {
		return 0, errors.Wrap(err, "claiming jobs")
	}

	var g errgroup.Group
	g.SetLimit(svc.workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			svc.process(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return len(jobs), nil
}

func (svc *Service) process(ctx context.Context, job Job) {
	result, err := svc.gen.Generate(ctx, job.Prompt)
	if ctx.Err() != nil {
		// left in processing; requeued on the next Start
		return
	}
	result = core.CleanString(result)
	if err == nil {
		err = svc.apply(job, result)
	}

	// once applied, the outcome is recorded even if ctx is done by now
	store := context.Background()
	if err != nil {
		svc.logger.Warn("content: job failed", err, map[string]interface{}{"job": job.ID, "target": job.TargetID})
		if ferr := svc.repo.FailJob(store, job.ID, err.Error(), core.Now()); ferr != nil {
			svc.logger.Error("content: marking job failed", ferr, map[string]interface{}{"job": job.ID})
		}
		return
	}
	if cerr := svc.repo.CompleteJob(store, job.ID, result, core.Now()); cerr != nil {
		svc.logger.Error("content: marking job completed", cerr, map[string]interface{}{"job": job.ID})
	}
}

func (svc *Service) apply(job Job, result string) error {
	switch job.Kind {
	case KindCourseDescription:
		if result == "" {
			return errors.New("the generator returned an empty text")
		}
		return errors.Wrap(svc.courses.SetCourseDescription(job.TargetID, result), "setting course description")
	default:
		return errors.Errorf("unknown job kind: %s", job.Kind)
	}
}

func (svc *Service) isRunning() bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.running
}

func (svc *Service) poke() {
	select {
	case svc.wake <- struct{}{}:
	default:
	}
}
