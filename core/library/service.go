package library

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("book not found")
	ErrISBNExists = errors.New("a book with this ISBN already exists")
)

type (
	Repository interface {
		// CreateBook returns ErrISBNExists when the ISBN is taken.
		CreateBook(ctx context.Context, book Book) (Book, error)
		// CreateBooks inserts all books or none.
		CreateBooks(ctx context.Context, books []Book) error
		// QueryBooks applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Book.Title, Book.Authors or Book.ISBN.
		QueryBooks(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Book, error)
		GetBook(ctx context.Context, id string) (Book, error)
		UpdateBook(ctx context.Context, book Book) (Book, error)
		DeleteBook(ctx context.Context, id string) error
		// Categories returns the distinct non-empty categories, sorted.
		Categories(ctx context.Context) ([]string, error)
	}

	ServiceInterface interface {
		Create(nb NewBook) (Book, error)
		CreateMany(nbs []NewBook) error
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Book, error)
		Get(id string) (Book, error)
		Update(id string, nb NewBook) (Book, error)
		Delete(id string) error
		Categories() ([]string, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func isbnError(err error, msg string) error {
	if errors.Cause(err) == ErrISBNExists {
		return core.NewValidationError(err, core.FieldError{Field: "isbn", Error: ErrISBNExists.Error()})
	}
	return errors.Wrap(err, msg)
}

func newBook(nb NewBook) Book {
	now := core.Now()
	return Book{
		ISBN:          nb.ISBN,
		Title:         nb.Title,
		Authors:       nb.Authors,
		Publisher:     nb.Publisher,
		PublishedYear: nb.PublishedYear,
		Category:      nb.Category,
		Copies:        nb.Copies,
		Available:     nb.available(),
		ShelfCode:     nb.ShelfCode,
		Description:   nb.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (svc *Service) Create(nb NewBook) (Book, error) {
	book, err := svc.repo.CreateBook(context.Background(), newBook(nb))
	if err != nil {
		return Book{}, isbnError(err, "creating book")
	}
	return book, nil
}

// CreateMany inserts already validated books in a single transaction.
func (svc *Service) CreateMany(nbs []NewBook) error {
	books := make([]Book, 0, len(nbs))
	for _, nb := range nbs {
		books = append(books, newBook(nb))
	}
	if err := svc.repo.CreateBooks(context.Background(), books); err != nil {
		return isbnError(err, "creating books")
	}
	return nil
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Book, error) {
	return svc.repo.QueryBooks(context.Background(), filter, ordering)
}

func (svc *Service) Get(id string) (Book, error) {
	return svc.repo.GetBook(context.Background(), id)
}

// Update replaces a book. When Available is omitted, the number of borrowed copies is kept.
func (svc *Service) Update(id string, nb NewBook) (Book, error) {
	ctx := context.Background()
	book, err := svc.repo.GetBook(ctx, id)
	if err != nil {
		return Book{}, err
	}

	if nb.Available != nil {
		book.Available = *nb.Available
	} else {
		book.Available += nb.Copies - book.Copies
	}
	if book.Available < 0 {
		book.Available = 0
	} else if book.Available > nb.Copies {
		book.Available = nb.Copies
	}
	book.ISBN = nb.ISBN
	book.Title = nb.Title
	book.Authors = nb.Authors
	book.Publisher = nb.Publisher
	book.PublishedYear = nb.PublishedYear
	book.Category = nb.Category
	book.Copies = nb.Copies
	book.ShelfCode = nb.ShelfCode
	book.Description = nb.Description
	book.UpdatedAt = core.Now()

	if book, err = svc.repo.UpdateBook(ctx, book); err != nil {
		return Book{}, isbnError(err, "updating book")
	}
	return book, nil
}

func (svc *Service) Delete(id string) error {
	ctx := context.Background()
	if _, err := svc.repo.GetBook(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteBook(ctx, id)
}

func (svc *Service) Categories() ([]string, error) {
	return svc.repo.Categories(context.Background())
}
