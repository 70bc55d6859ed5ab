package sqlxrepos

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chuo/core/content"
)

const jobColumns = `id, kind, target_id, prompt, status, result, error, attempts, created_at, started_at, completed_at`

type jobRow struct {
	ID          int64     `db:"id"`
	Kind        string    `db:"kind"`
	TargetID    string    `db:"target_id"`
	Prompt      string    `db:"prompt"`
	Status      string    `db:"status"`
	Result      string    `db:"result"`
	Error       string    `db:"error"`
	Attempts    int       `db:"attempts"`
	CreatedAt   time.Time `db:"created_at"`
	StartedAt   null.Time `db:"started_at"`
	CompletedAt null.Time `db:"completed_at"`
}

func (r jobRow) job() content.Job {
	return content.Job{
		ID:          r.ID,
		Kind:        r.Kind,
		TargetID:    r.TargetID,
		Prompt:      r.Prompt,
		Status:      r.Status,
		Result:      r.Result,
		Error:       r.Error,
		Attempts:    r.Attempts,
		CreatedAt:   r.CreatedAt.UTC(),
		StartedAt:   timeOf(r.StartedAt),
		CompletedAt: timeOf(r.CompletedAt),
	}
}

func jobsOf(rows []jobRow) []content.Job {
	jobs := make([]content.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.job())
	}
	return jobs
}

type jobRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*jobRepository)(nil)

func NewJobRepository(db *sqlx.DB) *jobRepository {
	return &jobRepository{db: db}
}

func (repo jobRepository) CreateJobs(ctx context.Context, jobs []content.Job) ([]content.Job, error) {
	created := make([]content.Job, 0, len(jobs))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO content_job (kind, target_id, prompt, status, attempts, created_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
		for _, job := range jobs {
			if err := tx.GetContext(ctx, &job.ID, q,
				job.Kind, job.TargetID, job.Prompt, job.Status, job.Attempts, job.CreatedAt.UTC()); err != nil {
				return errors.Wrap(err, "inserting content job")
			}
			created = append(created, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo jobRepository) QueryJobs(ctx context.Context, filter *content.QueryFilter) ([]content.Job, error) {
	var where whereClause
	if filter != nil && filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	var rows []jobRow
	q := `SELECT ` + jobColumns + ` FROM content_job` + where.String() + ` ORDER BY id DESC`
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying content jobs")
	}
	return jobsOf(rows), nil
}

func (repo jobRepository) GetJob(ctx context.Context, id int64) (content.Job, error) {
	var row jobRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM content_job WHERE id = $1`, id); err != nil {
		return content.Job{}, trapNoRowsErr(err, content.ErrNotFound, "finding content job")
	}
	return row.job(), nil
}

func (repo jobRepository) ActiveTargets(ctx context.Context, kind string) ([]string, error) {
	targets := make([]string, 0)
	q := `SELECT DISTINCT target_id FROM content_job WHERE kind = $1 AND status IN ($2, $3)`
	err := repo.db.SelectContext(ctx, &targets, q, kind, content.StatusPending, content.StatusProcessing)
	return targets, errors.Wrap(err, "listing active targets")
}

func (repo jobRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, repo.db, "content_job")
}

// ClaimJobs skips rows locked by a concurrent claim so several workers never take the same job.
func (repo jobRepository) ClaimJobs(ctx context.Context, limit int, now time.Time) ([]content.Job, error) {
	q := `UPDATE content_job SET status = $1, attempts = attempts + 1, started_at = $2, error = ''
		WHERE id IN (
			SELECT id FROM content_job WHERE status = $3 ORDER BY id LIMIT $4 FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	var rows []jobRow
	if err := repo.db.SelectContext(ctx, &rows, q, content.StatusProcessing, now.UTC(), content.StatusPending, limit); err != nil {
		return nil, errors.Wrap(err, "claiming content jobs")
	}
	jobs := jobsOf(rows)
	// RETURNING gives no order guarantee
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (repo jobRepository) CompleteJob(ctx context.Context, id int64, result string, now time.Time) error {
	q := `UPDATE content_job SET status = $2, result = $3, error = '', completed_at = $4 WHERE id = $1`
	return repo.finish(ctx, q, id, content.StatusCompleted, result, now)
}

func (repo jobRepository) FailJob(ctx context.Context, id int64, reason string, now time.Time) error {
	q := `UPDATE content_job SET status = $2, error = $3, completed_at = $4 WHERE id = $1`
	return repo.finish(ctx, q, id, content.StatusFailed, reason, now)
}

func (repo jobRepository) finish(ctx context.Context, q string, id int64, status, text string, now time.Time) error {
	res, err := repo.db.ExecContext(ctx, q, id, status, text, now.UTC())
	if err != nil {
		return errors.Wrapf(err, "marking content job %s", status)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return content.ErrNotFound
	}
	return nil
}

func (repo jobRepository) RequeueProcessing(ctx context.Context) (int, error) {
	return repo.exec(ctx, "requeueing processing jobs",
		`UPDATE content_job SET status = $1, started_at = NULL WHERE status = $2`,
		content.StatusPending, content.StatusProcessing)
}

func (repo jobRepository) RequeueFailed(ctx context.Context) (int, error) {
	return repo.exec(ctx, "requeueing failed jobs",
		`UPDATE content_job SET status = $1, error = '', started_at = NULL, completed_at = NULL WHERE status = $2`,
		content.StatusPending, content.StatusFailed)
}

func (repo jobRepository) DeleteCompleted(ctx context.Context) (int, error) {
	return repo.exec(ctx, "deleting completed jobs", `DELETE FROM content_job WHERE status = $1`, content.StatusCompleted)
}

func (repo jobRepository) DeleteJob(ctx context.Context, id int64) error {
	_, err := repo.exec(ctx, "deleting content job", `DELETE FROM content_job WHERE id = $1`, id)
	return err
}

func (repo jobRepository) exec(ctx context.Context, msg, q string, args ...interface{}) (int, error) {
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, msg)
}
