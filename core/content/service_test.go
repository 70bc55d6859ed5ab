package content_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/content"
	logsvc "github.com/trezcool/chuo/services/logger"
	inmemdb "github.com/trezcool/chuo/storage/database/inmem"
)

type genFunc func(ctx context.Context, prompt string) (string, error)

func (f genFunc) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

type fakeCourses struct {
	mu      sync.Mutex
	courses map[string]academics.Course
	onSet   func()
}

func newFakeCourses(titles ...string) *fakeCourses {
	fc := &fakeCourses{courses: make(map[string]academics.Course)}
	for i, title := range titles {
		id := string(rune('a' + i))
		fc.courses[id] = academics.Course{ID: id, Code: strings.ToUpper(id) + "101", Title: title, DurationYears: 3}
	}
	return fc
}

func (fc *fakeCourses) GetCourse(id string) (academics.Course, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	crs, ok := fc.courses[id]
	if !ok {
		return academics.Course{}, core.NewNotFoundError("course not found")
	}
	return crs, nil
}

func (fc *fakeCourses) CoursesWithoutDescription() ([]academics.Course, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var courses []academics.Course
	for _, crs := range fc.courses {
		if crs.Description == "" {
			courses = append(courses, crs)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (fc *fakeCourses) SetCourseDescription(id, description string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	crs := fc.courses[id]
	crs.Description = description
	fc.courses[id] = crs
	if fc.onSet != nil {
		fc.onSet()
	}
	return nil
}

func (fc *fakeCourses) description(id string) string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.courses[id].Description
}

func newService(t *testing.T, gen content.Generator, courses content.CourseSource) *content.Service {
	t.Helper()
	conf := &core.Config{Content: core.ContentConfig{PollInterval: 10 * time.Millisecond, BatchSize: 2, Workers: 2}}
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)
	return content.NewService(inmemdb.NewJobRepository(inmemdb.Open()), gen, courses, logger, conf)
}

func describe(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "Alchemy") {
		return "", errors.New("the model refused")
	}
	return "  A fine course.  ", nil
}

func TestService_RunOnce(t *testing.T) {
	courses := newFakeCourses("Algebra", "Alchemy", "Biology")
	svc := newService(t, genFunc(describe), courses)
	ctx := context.Background()

	jobs, err := svc.Enqueue(content.EnqueueRequest{Kind: content.KindCourseDescription})
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	again, err := svc.Enqueue(content.EnqueueRequest{Kind: content.KindCourseDescription, TargetIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = svc.Enqueue(content.EnqueueRequest{Kind: content.KindCourseDescription, TargetIDs: []string{"z"}})
	assert.Error(t, err)

	// batches are capped
	n, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, "A fine course.", courses.description("a"))
	assert.Empty(t, courses.description("b"))

	failed, err := svc.Get(jobs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusFailed, failed.Status)
	assert.Equal(t, "the model refused", failed.Error)
	assert.Equal(t, 1, failed.Attempts)

	status, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		content.StatusPending: 0, content.StatusProcessing: 0, content.StatusCompleted: 2, content.StatusFailed: 1,
	}, status.Counts)

	requeued, err := svc.RetryFailed()
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	retried, err := svc.Get(failed.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPending, retried.Status)
	assert.Empty(t, retried.Error)

	cleared, err := svc.ClearCompleted()
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)
}

func TestService_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent()) // rollbar's client starts at init

	courses := newFakeCourses("Algebra", "Biology", "Chemistry", "Drama", "Economics")
	svc := newService(t, genFunc(describe), courses)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	_, err := svc.Enqueue(content.EnqueueRequest{Kind: content.KindCourseDescription})
	require.NoError(t, err)

	// paused: nothing is processed
	time.Sleep(50 * time.Millisecond)
	status, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, 5, status.Counts[content.StatusPending])
	assert.False(t, status.Running)

	require.NoError(t, svc.Start())
	require.Eventually(t, func() bool {
		status, err := svc.Status()
		return err == nil && status.Counts[content.StatusCompleted] == 5
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestService_interrupted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent()) // rollbar's client starts at init

	started := make(chan struct{})
	gen := genFunc(func(ctx context.Context, prompt string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc := newService(t, gen, newFakeCourses("Algebra"))

	jobs, err := svc.Enqueue(content.EnqueueRequest{Kind: content.KindCourseDescription})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.RunOnce(ctx)
	}()
	<-started
	cancel()
	<-done

	job, err := svc.Get(jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusProcessing, job.Status)

	// busy jobs cannot be deleted
	assert.Error(t, svc.Delete(job.ID))

	require.NoError(t, svc.Start())
	defer svc.Pause()
	job, err = svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPending, job.Status)
}

func TestService_stopWhileApplying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	courses := newFakeCourses("Algebra")
	courses.onSet = cancel
	svc := newService(t, genFunc(describe), courses)
	jobs, err := svc.Enqueue(content.EnqueueRequest{Kind: content.KindCourseDescription})
	require.NoError(t, err)

	_, err = svc.RunOnce(ctx)
	require.NoError(t, err)

	// applied results are not generated twice
	job, err := svc.Get(jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusCompleted, job.Status)
	assert.Equal(t, "A fine course.", courses.description("a"))
}

func TestService_stopWhileGenerating(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	courses := newFakeCourses("Algebra")
	gen := genFunc(func(ctx context.Context, prompt string) (string, error) {
		cancel()
		return "too late", nil
	})
	svc := newService(t, gen, courses)
	jobs, err := svc.Enqueue(content.EnqueueRequest{Kind: content.KindCourseDescription})
	require.NoError(t, err)

	_, err = svc.RunOnce(ctx)
	require.NoError(t, err)

	job, err := svc.Get(jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusProcessing, job.Status)
	assert.Empty(t, courses.description("a"))
}
