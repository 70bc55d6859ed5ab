package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/library"
)

const bookColumns = `id, isbn, title, authors, publisher, published_year, category, copies, available, shelf_code,
	description, created_at, updated_at`

var bookOrdering = map[string]string{
	"title":          "title",
	"authors":        "authors",
	"published_year": "published_year",
	"category":       "category",
	"available":      "available",
	"created_at":     "created_at",
}

type bookRow struct {
	ID            string      `db:"id"`
	ISBN          null.String `db:"isbn"`
	Title         string      `db:"title"`
	Authors       string      `db:"authors"`
	Publisher     string      `db:"publisher"`
	PublishedYear int         `db:"published_year"`
	Category      string      `db:"category"`
	Copies        int         `db:"copies"`
	Available     int         `db:"available"`
	ShelfCode     string      `db:"shelf_code"`
	Description   string      `db:"description"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func toBookRow(book library.Book) bookRow {
	return bookRow{
		ID:            book.ID,
		ISBN:          nullString(book.ISBN),
		Title:         book.Title,
		Authors:       book.Authors,
		Publisher:     book.Publisher,
		PublishedYear: book.PublishedYear,
		Category:      book.Category,
		Copies:        book.Copies,
		Available:     book.Available,
		ShelfCode:     book.ShelfCode,
		Description:   book.Description,
		CreatedAt:     book.CreatedAt.UTC(),
		UpdatedAt:     book.UpdatedAt.UTC(),
	}
}

func (r bookRow) book() library.Book {
	return library.Book{
		ID:            r.ID,
		ISBN:          r.ISBN.String,
		Title:         r.Title,
		Authors:       r.Authors,
		Publisher:     r.Publisher,
		PublishedYear: r.PublishedYear,
		Category:      r.Category,
		Copies:        r.Copies,
		Available:     r.Available,
		ShelfCode:     r.ShelfCode,
		Description:   r.Description,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type bookRepository struct {
	db *sqlx.DB
}

var _ library.Repository = (*bookRepository)(nil)

func NewBookRepository(db *sqlx.DB) *bookRepository {
	return &bookRepository{db: db}
}

func (repo bookRepository) trapISBNErr(err error, msg string) error {
	if isUniqueViolation(err, "book_isbn_key") {
		return library.ErrISBNExists
	}
	return errors.Wrap(err, msg)
}

func (repo bookRepository) insert(ctx context.Context, exec sqlx.ExtContext, book library.Book) (library.Book, error) {
	book.ID = uuid.New().String()
	q := `INSERT INTO book (` + bookColumns + `)
		VALUES (:id, :isbn, :title, :authors, :publisher, :published_year, :category, :copies, :available, :shelf_code,
			:description, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, q, toBookRow(book)); err != nil {
		return library.Book{}, repo.trapISBNErr(err, "inserting book")
	}
	return book, nil
}

func (repo bookRepository) CreateBook(ctx context.Context, book library.Book) (library.Book, error) {
	return repo.insert(ctx, repo.db, book)
}

func (repo bookRepository) CreateBooks(ctx context.Context, books []library.Book) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, book := range books {
			if _, err := repo.insert(ctx, tx, book); err != nil {
				return errors.Wrap(err, book.Title)
			}
		}
		return nil
	})
}

func (repo bookRepository) QueryBooks(ctx context.Context, filter *library.QueryFilter, ordering []core.DBOrdering) ([]library.Book, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(title ILIKE ? OR authors ILIKE ? OR isbn ILIKE ?)", val, val, val)
		}
		if filter.Category != "" {
			where.add("LOWER(category) = LOWER(?)", filter.Category)
		}
		if filter.AvailableOnly {
			where.add("available > 0")
		}
	}
	q := `SELECT ` + bookColumns + ` FROM book` + where.String() +
		` ORDER BY ` + core.OrderBy(ordering, bookOrdering, "title ASC")

	var rows []bookRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	books := make([]library.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.book())
	}
	return books, nil
}

func (repo bookRepository) GetBook(ctx context.Context, id string) (library.Book, error) {
	if !validUUID(id) {
		return library.Book{}, library.ErrNotFound
	}
	var row bookRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+bookColumns+` FROM book WHERE id = $1`, id); err != nil {
		return library.Book{}, trapNoRowsErr(err, library.ErrNotFound, "finding book")
	}
	return row.book(), nil
}

func (repo bookRepository) UpdateBook(ctx context.Context, book library.Book) (library.Book, error) {
	q := `UPDATE book SET isbn = :isbn, title = :title, authors = :authors, publisher = :publisher,
		published_year = :published_year, category = :category, copies = :copies, available = :available,
		shelf_code = :shelf_code, description = :description, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toBookRow(book))
	if err != nil {
		return library.Book{}, repo.trapISBNErr(err, "updating book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return library.Book{}, library.ErrNotFound
	}
	return book, nil
}

func (repo bookRepository) DeleteBook(ctx context.Context, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM book WHERE id = $1`, id)
	return errors.Wrap(err, "deleting book")
}

func (repo bookRepository) Categories(ctx context.Context) ([]string, error) {
	categories := make([]string, 0)
	err := repo.db.SelectContext(ctx, &categories,
		`SELECT DISTINCT category FROM book WHERE category <> '' ORDER BY category`)
	return categories, errors.Wrap(err, "listing book categories")
}
