package admission

import (
	"context"
	"fmt"
	"io"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/academics"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("application not found")
	ErrDocumentNotFound = core.NewNotFoundError("document not found")
	ErrReferenceExists  = errors.New("reference already in use")

	errCourseNotOpen     = "course not found"
	errInvalidTransition = "cannot change status from %s to %s"
	errApplicationClosed = "the application is already %s"
	errDocumentsClosed   = "documents can only be added while the application is submitted"
	errFileTooLarge      = "file is too large"
	errEmptyFile         = "file is empty"

	maxReferenceAttempts = 5
)

type (
	Repository interface {
		// CreateApplication returns ErrReferenceExists when the reference is taken.
		CreateApplication(ctx context.Context, app Application) (Application, error)
		// QueryApplications applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of reference, names or email.
		QueryApplications(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error)
		GetApplication(ctx context.Context, filter GetFilter) (Application, error)
		UpdateApplication(ctx context.Context, app Application) (Application, error)
		// DeleteApplication deletes the application and its document rows.
		DeleteApplication(ctx context.Context, id string) error
		CountByStatus(ctx context.Context) (map[string]int, error)

		CreateDocument(ctx context.Context, doc Document) (Document, error)
		QueryDocuments(ctx context.Context, applicationID string) ([]Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
	}

	// CourseFinder finds the course an application is made for.
	CourseFinder interface {
		GetCourse(id string) (academics.Course, error)
	}

	ServiceInterface interface {
		Submit(na NewApplication) (Application, error)
		Track(tr TrackRequest) (TrackedApplication, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error)
		Get(id string) (Application, error)
		Review(id, reviewerID string, r Review) (Application, error)
		Delete(id string) error
		Stats() (map[string]int, error)

		AttachDocument(tr TrackRequest, kind string, upload core.Upload) (Document, error)
		ListDocuments(applicationID string) ([]Document, error)
		OpenDocument(id string) (Document, io.ReadCloser, error)
	}

	Service struct {
		repo    Repository
		courses CourseFinder
		files   core.FileStorage
		mailSvc core.EmailService
		maxSize int64
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, courses CourseFinder, files core.FileStorage, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		courses: courses,
		files:   files,
		mailSvc: mailSvc,
		maxSize: conf.Server.MaxUploadSize,
	}
}

// Submit stores a new application for a published course and emails its reference to the applicant.
func (svc *Service) Submit(na NewApplication) (Application, error) {
	ctx := context.Background()

	crs, err := svc.courses.GetCourse(na.CourseID)
	if err != nil && !core.IsNotFound(err) {
		return Application{}, errors.Wrap(err, "finding course")
	}
	if err != nil || !crs.IsPublished {
		return Application{}, core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: errCourseNotOpen})
	}

	now := core.Now()
	app := Application{
		FirstName:   na.FirstName,
		LastName:    na.LastName,
		Email:       na.Email,
		Phone:       na.Phone,
		DateOfBirth: na.DateOfBirth.UTC(),
		Nationality: na.Nationality,
		CourseID:    na.CourseID,
		Intake:      na.Intake,
		Statement:   na.Statement,
		Status:      StatusSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	for attempt := 1; ; attempt++ {
		if app.Reference, err = NewReference(now); err != nil {
			return Application{}, errors.Wrap(err, "generating reference")
		}
		created, err := svc.repo.CreateApplication(ctx, app)
		if err == nil {
			app = created
			break
		}
		if errors.Cause(err) != ErrReferenceExists || attempt >= maxReferenceAttempts {
			return Application{}, errors.Wrap(err, "creating application")
		}
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.FullName(), Address: app.Email}},
		Subject:      "Application received: " + app.Reference,
		TemplateName: "application_received",
		TemplateData: map[string]interface{}{
			"Name":      app.FullName(),
			"Reference": app.Reference,
			"Course":    crs.Title,
			"Intake":    app.Intake,
		},
	})
	return app, nil
}

// findTracked returns the application matching both reference and email.
func (svc *Service) findTracked(ctx context.Context, tr TrackRequest) (Application, error) {
	app, err := svc.repo.GetApplication(ctx, GetFilter{Reference: tr.Reference})
	if err != nil {
		return Application{}, err
	}
	if app.Email != tr.Email {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (svc *Service) Track(tr TrackRequest) (TrackedApplication, error) {
	ctx := context.Background()
	app, err := svc.findTracked(ctx, tr)
	if err != nil {
		return TrackedApplication{}, err
	}
	docs, err := svc.repo.QueryDocuments(ctx, app.ID)
	if err != nil {
		return TrackedApplication{}, errors.Wrap(err, "querying documents")
	}
	return TrackedApplication{
		Reference:   app.Reference,
		FirstName:   app.FirstName,
		LastName:    app.LastName,
		CourseID:    app.CourseID,
		Intake:      app.Intake,
		Status:      app.Status,
		SubmittedAt: app.SubmittedAt,
		UpdatedAt:   app.UpdatedAt,
		Documents:   docs,
	}, nil
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Application, error) {
	return svc.repo.QueryApplications(context.Background(), filter, ordering)
}

func (svc *Service) Get(id string) (Application, error) {
	return svc.repo.GetApplication(context.Background(), GetFilter{ID: id})
}

// Review moves an application to a new status. Applicants are emailed about decisions.
func (svc *Service) Review(id, reviewerID string, r Review) (Application, error) {
	ctx := context.Background()
	app, err := svc.repo.GetApplication(ctx, GetFilter{ID: id})
	if err != nil {
		return Application{}, err
	}

	if IsTerminal(app.Status) {
		return Application{}, core.NewFieldError("status", fmt.Sprintf(errApplicationClosed, app.Status))
	}
	if r.Status != app.Status && !CanTransition(app.Status, r.Status) {
		return Application{}, core.NewValidationError(nil, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf(errInvalidTransition, app.Status, r.Status),
		})
	}
	changed := r.Status != app.Status

	now := core.Now()
	app.Status = r.Status
	app.ReviewNotes = r.Notes
	app.ReviewerID = reviewerID
	app.ReviewedAt = now
	app.UpdatedAt = now
	if app, err = svc.repo.UpdateApplication(ctx, app); err != nil {
		return Application{}, errors.Wrap(err, "updating application")
	}

	if changed && IsDecision(app.Status) {
		courseTitle := app.CourseID
		if crs, err := svc.courses.GetCourse(app.CourseID); err == nil {
			courseTitle = crs.Title
		}
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: app.FullName(), Address: app.Email}},
			Subject:      "Your application " + app.Reference,
			TemplateName: "application_decision",
			TemplateData: map[string]interface{}{
				"Name":      app.FullName(),
				"Reference": app.Reference,
				"Course":    courseTitle,
				"Status":    app.Status,
				"Notes":     app.ReviewNotes,
			},
		})
	}
	return app, nil
}

// Delete removes an application, its document rows and the stored files.
func (svc *Service) Delete(id string) error {
	ctx := context.Background()
	if _, err := svc.repo.GetApplication(ctx, GetFilter{ID: id}); err != nil {
		return err
	}
	docs, err := svc.repo.QueryDocuments(ctx, id)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	if err = svc.repo.DeleteApplication(ctx, id); err != nil {
		return errors.Wrap(err, "deleting application")
	}
	for _, doc := range docs {
		if err = svc.files.Delete(ctx, doc.StorageKey); err != nil {
			return errors.Wrap(err, "deleting document file")
		}
	}
	return nil
}

// Stats counts applications per status. Every status is present.
func (svc *Service) Stats() (map[string]int, error) {
	counts, err := svc.repo.CountByStatus(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "counting applications")
	}
	stats := make(map[string]int, len(Statuses))
	for _, status := range Statuses {
		stats[status] = counts[status]
	}
	return stats, nil
}

// AttachDocument stores a supporting document uploaded by the applicant.
func (svc *Service) AttachDocument(tr TrackRequest, kind string, upload core.Upload) (Document, error) {
	ctx := context.Background()

	if !core.StringInSlice(kind, DocKinds) {
		return Document{}, core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "invalid document kind"})
	}
	app, err := svc.findTracked(ctx, tr)
	if err != nil {
		return Document{}, err
	}
	if app.Status != StatusSubmitted {
		return Document{}, core.NewValidationError(errors.New(errDocumentsClosed))
	}
	if svc.maxSize > 0 && upload.Size > svc.maxSize {
		return Document{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: errFileTooLarge})
	}

	filename := core.CleanFilename(upload.Filename)
	key := core.NewStorageKey("applications", filename)
	r := upload.Content
	if svc.maxSize > 0 {
		r = io.LimitReader(r, svc.maxSize+1)
	}
	size, err := svc.files.Save(ctx, key, r)
	if err != nil {
		return Document{}, errors.Wrap(err, "saving document file")
	}
	if size == 0 || (svc.maxSize > 0 && size > svc.maxSize) {
		_ = svc.files.Delete(ctx, key)
		msg := errFileTooLarge
		if size == 0 {
			msg = errEmptyFile
		}
		return Document{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: msg})
	}

	doc, err := svc.repo.CreateDocument(ctx, Document{
		ApplicationID: app.ID,
		Kind:          kind,
		Filename:      filename,
		ContentType:   upload.ContentType,
		Size:          size,
		StorageKey:    key,
		UploadedAt:    core.Now(),
	})
	if err != nil {
		_ = svc.files.Delete(ctx, key)
		return Document{}, errors.Wrap(err, "creating document")
	}
	return doc, nil
}

func (svc *Service) ListDocuments(applicationID string) ([]Document, error) {
	ctx := context.Background()
	if _, err := svc.repo.GetApplication(ctx, GetFilter{ID: applicationID}); err != nil {
		return nil, err
	}
	return svc.repo.QueryDocuments(ctx, applicationID)
}

// OpenDocument returns a document and its content. Callers must close the reader.
func (svc *Service) OpenDocument(id string) (Document, io.ReadCloser, error) {
	ctx := context.Background()
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, nil, err
	}
	rc, err := svc.files.Open(ctx, doc.StorageKey)
	if err != nil {
		return Document{}, nil, errors.Wrap(err, "opening document file")
	}
	return doc, rc, nil
}
