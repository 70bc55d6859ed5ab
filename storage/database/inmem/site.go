package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/site"
)

var publicDocumentFields = map[string]field[site.Document]{
	"title":      func(d site.Document) interface{} { return d.Title },
	"category":   func(d site.Document) interface{} { return d.Category },
	"year":       func(d site.Document) interface{} { return d.Year },
	"created_at": func(d site.Document) interface{} { return d.CreatedAt },
}

type publicDocumentRepository struct {
	db *DB
}

var _ site.Repository = (*publicDocumentRepository)(nil)

func NewPublicDocumentRepository(db *DB) *publicDocumentRepository {
	return &publicDocumentRepository{db: db}
}

func (repo *publicDocumentRepository) CreateDocument(_ context.Context, doc site.Document) (site.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	doc.ID = uuid.New().String()
	repo.db.documents[doc.ID] = doc
	return doc, nil
}

func (repo *publicDocumentRepository) QueryDocuments(_ context.Context, filter *site.QueryFilter, ordering []core.DBOrdering) ([]site.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	docs := make([]site.Document, 0, len(repo.db.documents))
	for _, d := range repo.db.documents {
		if filter != nil {
			if filter.Category != "" && d.Category != filter.Category {
				continue
			}
			if filter.Year != 0 && d.Year != filter.Year {
				continue
			}
		}
		docs = append(docs, d)
	}
	sortRows(docs, ordering, publicDocumentFields, core.DBOrdering{Field: "created_at"})
	return docs, nil
}

func (repo *publicDocumentRepository) GetDocument(_ context.Context, id string) (site.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if doc, ok := repo.db.documents[id]; ok {
		return doc, nil
	}
	return site.Document{}, site.ErrDocumentNotFound
}

func (repo *publicDocumentRepository) DeleteDocument(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.documents, id)
	return nil
}
