package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/admission"
)

var applicationFields = map[string]field[admission.Application]{
	"reference":    func(a admission.Application) interface{} { return a.Reference },
	"last_name":    func(a admission.Application) interface{} { return a.LastName },
	"status":       func(a admission.Application) interface{} { return a.Status },
	"intake":       func(a admission.Application) interface{} { return a.Intake },
	"submitted_at": func(a admission.Application) interface{} { return a.SubmittedAt },
	"updated_at":   func(a admission.Application) interface{} { return a.UpdatedAt },
}

type applicationRepository struct {
	db *DB
}

var _ admission.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app admission.Application) (admission.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.applications {
		if a.Reference == app.Reference {
			return admission.Application{}, admission.ErrReferenceExists
		}
	}
	app.ID = uuid.New().String()
	repo.db.applications[app.ID] = app
	return app, nil
}

func (repo *applicationRepository) QueryApplications(_ context.Context, filter *admission.QueryFilter, ordering []core.DBOrdering) ([]admission.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := make([]admission.Application, 0, len(repo.db.applications))
	for _, a := range repo.db.applications {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, a.Reference, a.FirstName, a.LastName, a.Email) {
				continue
			}
			if len(filter.Status) > 0 && !core.StringInSlice(a.Status, filter.Status) {
				continue
			}
			if filter.CourseID != "" && a.CourseID != filter.CourseID {
				continue
			}
			if filter.Intake != "" && a.Intake != filter.Intake {
				continue
			}
			if !inRange(a.SubmittedAt, filter.SubmittedFrom, filter.SubmittedTo) {
				continue
			}
		}
		apps = append(apps, a)
	}
	sortRows(apps, ordering, applicationFields, core.DBOrdering{Field: "submitted_at"})
	return apps, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, filter admission.GetFilter) (admission.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if app, ok := repo.db.applications[filter.ID]; ok {
			return app, nil
		}
	case filter.Reference != "":
		for _, app := range repo.db.applications {
			if app.Reference == filter.Reference {
				return app, nil
			}
		}
	}
	return admission.Application{}, admission.ErrNotFound
}

func (repo *applicationRepository) UpdateApplication(_ context.Context, app admission.Application) (admission.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.applications[app.ID]; !ok {
		return admission.Application{}, admission.ErrNotFound
	}
	repo.db.applications[app.ID] = app
	return app, nil
}

func (repo *applicationRepository) DeleteApplication(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.applications, id)
	for docID, doc := range repo.db.appDocuments {
		if doc.ApplicationID == id {
			delete(repo.db.appDocuments, docID)
		}
	}
	return nil
}

func (repo *applicationRepository) CountByStatus(_ context.Context) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, a := range repo.db.applications {
		counts[a.Status]++
	}
	return counts, nil
}

func (repo *applicationRepository) CreateDocument(_ context.Context, doc admission.Document) (admission.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.applications[doc.ApplicationID]; !ok {
		return admission.Document{}, admission.ErrNotFound
	}
	doc.ID = uuid.New().String()
	repo.db.appDocuments[doc.ID] = doc
	return doc, nil
}

func (repo *applicationRepository) QueryDocuments(_ context.Context, applicationID string) ([]admission.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	docs := make([]admission.Document, 0)
	for _, doc := range repo.db.appDocuments {
		if doc.ApplicationID == applicationID {
			docs = append(docs, doc)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].UploadedAt.Before(docs[j].UploadedAt) })
	return docs, nil
}

func (repo *applicationRepository) GetDocument(_ context.Context, id string) (admission.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if doc, ok := repo.db.appDocuments[id]; ok {
		return doc, nil
	}
	return admission.Document{}, admission.ErrDocumentNotFound
}
