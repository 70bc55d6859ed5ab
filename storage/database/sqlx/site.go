package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/site"
)

const publicDocumentColumns = `id, title, category, year, filename, content_type, size, storage_key, created_at`

var publicDocumentOrdering = map[string]string{
	"title":      "title",
	"category":   "category",
	"year":       "year",
	"created_at": "created_at",
}

type publicDocumentRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Category    string    `db:"category"`
	Year        int       `db:"year"`
	Filename    string    `db:"filename"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	StorageKey  string    `db:"storage_key"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r publicDocumentRow) document() site.Document {
	return site.Document{
		ID:          r.ID,
		Title:       r.Title,
		Category:    r.Category,
		Year:        r.Year,
		Filename:    r.Filename,
		ContentType: r.ContentType,
		Size:        r.Size,
		StorageKey:  r.StorageKey,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type publicDocumentRepository struct {
	db *sqlx.DB
}

var _ site.Repository = (*publicDocumentRepository)(nil)

func NewPublicDocumentRepository(db *sqlx.DB) *publicDocumentRepository {
	return &publicDocumentRepository{db: db}
}

func (repo publicDocumentRepository) CreateDocument(ctx context.Context, doc site.Document) (site.Document, error) {
	doc.ID = uuid.New().String()
	q := `INSERT INTO public_document (` + publicDocumentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, q,
		doc.ID, doc.Title, doc.Category, doc.Year, doc.Filename, doc.ContentType, doc.Size, doc.StorageKey, doc.CreatedAt.UTC())
	if err != nil {
		return site.Document{}, errors.Wrap(err, "inserting public document")
	}
	return doc, nil
}

func (repo publicDocumentRepository) QueryDocuments(ctx context.Context, filter *site.QueryFilter, ordering []core.DBOrdering) ([]site.Document, error) {
	var where whereClause
	if filter != nil {
		if filter.Category != "" {
			where.add("category = ?", filter.Category)
		}
		if filter.Year != 0 {
			where.add("year = ?", filter.Year)
		}
	}
	q := `SELECT ` + publicDocumentColumns + ` FROM public_document` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, publicDocumentOrdering, "created_at DESC")

	var rows []publicDocumentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying public documents")
	}
	docs := make([]site.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (repo publicDocumentRepository) GetDocument(ctx context.Context, id string) (site.Document, error) {
	if !validUUID(id) {
		return site.Document{}, site.ErrDocumentNotFound
	}
	var row publicDocumentRow
	q := `SELECT ` + publicDocumentColumns + ` FROM public_document WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return site.Document{}, trapNoRowsErr(err, site.ErrDocumentNotFound, "finding public document")
	}
	return row.document(), nil
}

func (repo publicDocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM public_document WHERE id = $1`, id)
	return errors.Wrap(err, "deleting public document")
}
