package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/library"
)

var bookFields = map[string]field[library.Book]{
	"title":          func(b library.Book) interface{} { return b.Title },
	"authors":        func(b library.Book) interface{} { return b.Authors },
	"published_year": func(b library.Book) interface{} { return b.PublishedYear },
	"category":       func(b library.Book) interface{} { return b.Category },
	"available":      func(b library.Book) interface{} { return b.Available },
	"created_at":     func(b library.Book) interface{} { return b.CreatedAt },
}

type bookRepository struct {
	db *DB
}

var _ library.Repository = (*bookRepository)(nil)

func NewBookRepository(db *DB) *bookRepository {
	return &bookRepository{db: db}
}

func (repo *bookRepository) isbnTaken(isbn, exceptID string) bool {
	if isbn == "" {
		return false
	}
	for _, b := range repo.db.books {
		if b.ISBN == isbn && b.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *bookRepository) insert(book library.Book) (library.Book, error) {
	if repo.isbnTaken(book.ISBN, "") {
		return library.Book{}, library.ErrISBNExists
	}
	book.ID = uuid.New().String()
	repo.db.books[book.ID] = book
	return book, nil
}

func (repo *bookRepository) CreateBook(_ context.Context, book library.Book) (library.Book, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.insert(book)
}

func (repo *bookRepository) CreateBooks(_ context.Context, books []library.Book) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	var created []string
	for _, book := range books {
		book, err := repo.insert(book)
		if err != nil {
			for _, id := range created {
				delete(repo.db.books, id)
			}
			return err
		}
		created = append(created, book.ID)
	}
	return nil
}

func (repo *bookRepository) QueryBooks(_ context.Context, filter *library.QueryFilter, ordering []core.DBOrdering) ([]library.Book, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	books := make([]library.Book, 0, len(repo.db.books))
	for _, b := range repo.db.books {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, b.Title, b.Authors, b.ISBN) {
				continue
			}
			if filter.Category != "" && !strings.EqualFold(b.Category, filter.Category) {
				continue
			}
			if filter.AvailableOnly && b.Available <= 0 {
				continue
			}
		}
		books = append(books, b)
	}
	sortRows(books, ordering, bookFields, core.DBOrdering{Field: "title", Ascending: true})
	return books, nil
}

func (repo *bookRepository) GetBook(_ context.Context, id string) (library.Book, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if book, ok := repo.db.books[id]; ok {
		return book, nil
	}
	return library.Book{}, library.ErrNotFound
}

func (repo *bookRepository) UpdateBook(_ context.Context, book library.Book) (library.Book, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.books[book.ID]; !ok {
		return library.Book{}, library.ErrNotFound
	}
	if repo.isbnTaken(book.ISBN, book.ID) {
		return library.Book{}, library.ErrISBNExists
	}
	repo.db.books[book.ID] = book
	return book, nil
}

func (repo *bookRepository) DeleteBook(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.books, id)
	return nil
}

func (repo *bookRepository) Categories(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, b := range repo.db.books {
		if b.Category != "" && !seen[b.Category] {
			seen[b.Category] = true
			categories = append(categories, b.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}
