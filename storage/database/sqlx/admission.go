package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/admission"
)

const (
	applicationColumns = `id, reference, first_name, last_name, email, phone, date_of_birth, nationality, course_id, intake,
	statement, status, reviewer_id, review_notes, submitted_at, updated_at, reviewed_at`
	applicationDocumentColumns = `id, application_id, kind, filename, content_type, size, storage_key, uploaded_at`
)

var applicationOrdering = map[string]string{
	"reference":    "reference",
	"last_name":    "last_name",
	"status":       "status",
	"intake":       "intake",
	"submitted_at": "submitted_at",
	"updated_at":   "updated_at",
}

type applicationRow struct {
	ID          string      `db:"id"`
	Reference   string      `db:"reference"`
	FirstName   string      `db:"first_name"`
	LastName    string      `db:"last_name"`
	Email       string      `db:"email"`
	Phone       string      `db:"phone"`
	DateOfBirth time.Time   `db:"date_of_birth"`
	Nationality string      `db:"nationality"`
	CourseID    string      `db:"course_id"`
	Intake      string      `db:"intake"`
	Statement   string      `db:"statement"`
	Status      string      `db:"status"`
	ReviewerID  null.String `db:"reviewer_id"`
	ReviewNotes string      `db:"review_notes"`
	SubmittedAt time.Time   `db:"submitted_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
	ReviewedAt  null.Time   `db:"reviewed_at"`
}

func toApplicationRow(app admission.Application) applicationRow {
	return applicationRow{
		ID:          app.ID,
		Reference:   app.Reference,
		FirstName:   app.FirstName,
		LastName:    app.LastName,
		Email:       app.Email,
		Phone:       app.Phone,
		DateOfBirth: app.DateOfBirth.UTC(),
		Nationality: app.Nationality,
		CourseID:    app.CourseID,
		Intake:      app.Intake,
		Statement:   app.Statement,
		Status:      app.Status,
		ReviewerID:  nullString(app.ReviewerID),
		ReviewNotes: app.ReviewNotes,
		SubmittedAt: app.SubmittedAt.UTC(),
		UpdatedAt:   app.UpdatedAt.UTC(),
		ReviewedAt:  nullTime(app.ReviewedAt),
	}
}

func (r applicationRow) application() admission.Application {
	return admission.Application{
		ID:          r.ID,
		Reference:   r.Reference,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		DateOfBirth: r.DateOfBirth.UTC(),
		Nationality: r.Nationality,
		CourseID:    r.CourseID,
		Intake:      r.Intake,
		Statement:   r.Statement,
		Status:      r.Status,
		ReviewerID:  r.ReviewerID.String,
		ReviewNotes: r.ReviewNotes,
		SubmittedAt: r.SubmittedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		ReviewedAt:  timeOf(r.ReviewedAt),
	}
}

type applicationDocumentRow struct {
	ID            string    `db:"id"`
	ApplicationID string    `db:"application_id"`
	Kind          string    `db:"kind"`
	Filename      string    `db:"filename"`
	ContentType   string    `db:"content_type"`
	Size          int64     `db:"size"`
	StorageKey    string    `db:"storage_key"`
	UploadedAt    time.Time `db:"uploaded_at"`
}

func (r applicationDocumentRow) document() admission.Document {
	return admission.Document{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		Kind:          r.Kind,
		Filename:      r.Filename,
		ContentType:   r.ContentType,
		Size:          r.Size,
		StorageKey:    r.StorageKey,
		UploadedAt:    r.UploadedAt.UTC(),
	}
}

type applicationRepository struct {
	db *sqlx.DB
}

var _ admission.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo applicationRepository) CreateApplication(ctx context.Context, app admission.Application) (admission.Application, error) {
	app.ID = uuid.New().String()
	q := `INSERT INTO application (` + applicationColumns + `)
		VALUES (:id, :reference, :first_name, :last_name, :email, :phone, :date_of_birth, :nationality, :course_id,
			:intake, :statement, :status, :reviewer_id, :review_notes, :submitted_at, :updated_at, :reviewed_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toApplicationRow(app)); err != nil {
		if isUniqueViolation(err, "application_reference_key") {
			return admission.Application{}, admission.ErrReferenceExists
		}
		return admission.Application{}, errors.Wrap(err, "inserting application")
	}
	return app, nil
}

func (repo applicationRepository) QueryApplications(ctx context.Context, filter *admission.QueryFilter, ordering []core.DBOrdering) ([]admission.Application, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(reference ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)", val, val, val, val)
		}
		if len(filter.Status) > 0 {
			where.add("status = ANY(?)", pq.Array(filter.Status))
		}
		if filter.CourseID != "" {
			if !validUUID(filter.CourseID) {
				return []admission.Application{}, nil
			}
			where.add("course_id = ?", filter.CourseID)
		}
		if filter.Intake != "" {
			where.add("intake = ?", filter.Intake)
		}
		if !filter.SubmittedFrom.IsZero() {
			where.add("submitted_at >= ?", filter.SubmittedFrom.UTC())
		}
		if !filter.SubmittedTo.IsZero() {
			where.add("submitted_at <= ?", filter.SubmittedTo.UTC())
		}
	}
	q := `SELECT ` + applicationColumns + ` FROM application` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, applicationOrdering, "submitted_at DESC")

	var rows []applicationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]admission.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, r.application())
	}
	return apps, nil
}

func (repo applicationRepository) GetApplication(ctx context.Context, filter admission.GetFilter) (admission.Application, error) {
	var where whereClause
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return admission.Application{}, admission.ErrNotFound
		}
		where.add("id = ?", filter.ID)
	case filter.Reference != "":
		where.add("reference = ?", filter.Reference)
	default:
		return admission.Application{}, admission.ErrNotFound
	}

	var row applicationRow
	q := repo.db.Rebind(`SELECT ` + applicationColumns + ` FROM application` + where.String())
	if err := repo.db.GetContext(ctx, &row, q, where.args...); err != nil {
		return admission.Application{}, trapNoRowsErr(err, admission.ErrNotFound, "finding application")
	}
	return row.application(), nil
}

func (repo applicationRepository) UpdateApplication(ctx context.Context, app admission.Application) (admission.Application, error) {
	q := `UPDATE application SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone,
		date_of_birth = :date_of_birth, nationality = :nationality, course_id = :course_id, intake = :intake,
		statement = :statement, status = :status, reviewer_id = :reviewer_id, review_notes = :review_notes,
		updated_at = :updated_at, reviewed_at = :reviewed_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toApplicationRow(app))
	if err != nil {
		return admission.Application{}, errors.Wrap(err, "updating application")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return admission.Application{}, admission.ErrNotFound
	}
	return app, nil
}

// DeleteApplication relies on the application_document foreign key cascading.
func (repo applicationRepository) DeleteApplication(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM application WHERE id = $1`, id)
	return errors.Wrap(err, "deleting application")
}

func (repo applicationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, repo.db, "application")
}

func (repo applicationRepository) CreateDocument(ctx context.Context, doc admission.Document) (admission.Document, error) {
	doc.ID = uuid.New().String()
	q := `INSERT INTO application_document (` + applicationDocumentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		doc.ID, doc.ApplicationID, doc.Kind, doc.Filename, doc.ContentType, doc.Size, doc.StorageKey, doc.UploadedAt.UTC())
	if err != nil {
		return admission.Document{}, errors.Wrap(err, "inserting application document")
	}
	return doc, nil
}

func (repo applicationRepository) QueryDocuments(ctx context.Context, applicationID string) ([]admission.Document, error) {
	docs := make([]admission.Document, 0)
	if !validUUID(applicationID) {
		return docs, nil
	}
	var rows []applicationDocumentRow
	q := `SELECT ` + applicationDocumentColumns + ` FROM application_document WHERE application_id = $1 ORDER BY uploaded_at`
	if err := repo.db.SelectContext(ctx, &rows, q, applicationID); err != nil {
		return nil, errors.Wrap(err, "querying application documents")
	}
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (repo applicationRepository) GetDocument(ctx context.Context, id string) (admission.Document, error) {
	if !validUUID(id) {
		return admission.Document{}, admission.ErrDocumentNotFound
	}
	var row applicationDocumentRow
	q := `SELECT ` + applicationDocumentColumns + ` FROM application_document WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return admission.Document{}, trapNoRowsErr(err, admission.ErrDocumentNotFound, "finding application document")
	}
	return row.document(), nil
}

// countByStatus counts the rows of table per status.
func countByStatus(ctx context.Context, db *sqlx.DB, table string) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM `+table+` GROUP BY status`); err != nil {
		return nil, errors.Wrapf(err, "counting %s by status", table)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
