package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/library"
	"github.com/trezcool/chuo/core/user"
)

func createBook(t *testing.T, title, isbn, category string, copies, available int) library.Book {
	t.Helper()
	book, err := svcs.Library.Create(library.NewBook{
		ISBN: isbn, Title: title, Authors: "Anonymous", Category: category, Copies: copies, Available: &available,
	})
	require.NoError(t, err)
	return book
}

func Test_libraryApi_catalogue(t *testing.T) {
	db.Reset()

	gopl := createBook(t, "The Go Programming Language", "9780134190440", "Programming", 3, 0)
	sicp := createBook(t, "Structure and Interpretation of Computer Programs", "0262510871", "Programming", 2, 1)
	dune := createBook(t, "Dune", "", "Fiction", 1, 1)

	runTests(t, []httpTest{
		{name: "all", path: "/api/library/books", wantData: marchallList(t, dune, sicp, gopl)},
		{name: "search by isbn", path: "/api/library/books?search=978013", wantData: marchallList(t, gopl)},
		{name: "category", path: "/api/library/books?category=programming", wantData: marchallList(t, sicp, gopl)},
		{name: "available only", path: "/api/library/books?available_only=true&ordering=-title", wantData: marchallList(t, sicp, dune)},
		{name: "categories", path: "/api/library/categories", wantData: marchallList(t, "Fiction", "Programming")},
		{name: "retrieve", path: "/api/library/books/" + dune.ID, wantData: marchallObj(t, dune)},
		{name: "unknown", path: "/api/library/books/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "book not found"})},
	})
}

func Test_libraryApi_writes(t *testing.T) {
	db.Reset()

	librarian := createUser(t, "librarian", user.RoleAdminLibrary)
	lecturer := createUser(t, "lecturer", user.RoleLecturer)
	token := getToken(t, librarian)
	existing := createBook(t, "The Go Programming Language", "9780134190440", "Programming", 3, 3)

	runTests(t, []httpTest{
		{
			name: "library admin required", method: http.MethodPost, path: "/api/library/books", token: getToken(t, lecturer),
			body: []byte(`{"title": "Dune", "authors": "Frank Herbert"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "bad isbn", method: http.MethodPost, path: "/api/library/books", token: token,
			body:     []byte(`{"isbn": "978-0-13-419044-1", "title": "Dune", "authors": "Frank Herbert"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"isbn": "invalid ISBN"}),
		},
		{
			name: "more available than copies", method: http.MethodPost, path: "/api/library/books", token: token,
			body:     []byte(`{"title": "Dune", "authors": "Frank Herbert", "copies": 1, "available": 2}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"available": "cannot be greater than the number of copies"}),
		},
		{
			name: "isbn exists", method: http.MethodPost, path: "/api/library/books", token: token,
			body:     []byte(`{"isbn": "978-0-13-419044-0", "title": "GOPL", "authors": "Donovan & Kernighan"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"isbn": library.ErrISBNExists.Error()}),
		},
		{
			name: "create", method: http.MethodPost, path: "/api/library/books", token: token,
			body: []byte(`{"isbn": "0-441-17271-7", "title": " Dune ", "authors": "Frank Herbert", "copies": 2, "shelf_code": "f-12"}`),
			wantCode: http.StatusCreated,
		},
		{
			// 1 copy lent out: 3 copies, 2 available
			name: "lend", method: http.MethodPut, path: "/api/library/books/" + existing.ID, token: token,
			body: []byte(`{"isbn": "9780134190440", "title": "The Go Programming Language", "authors": "Anonymous", "copies": 3, "available": 2}`),
		},
		{
			name: "add copies keeps lent ones", method: http.MethodPut, path: "/api/library/books/" + existing.ID, token: token,
			body: []byte(`{"isbn": "9780134190440", "title": "The Go Programming Language", "authors": "Anonymous", "copies": 5}`),
		},
	})

	books, err := svcs.Library.Query(&library.QueryFilter{Search: "dune"}, nil)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "0441172717", books[0].ISBN)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, 2, books[0].Available)
	assert.Equal(t, "F-12", books[0].ShelfCode)

	book, err := svcs.Library.Get(existing.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, book.Copies)
	assert.Equal(t, 4, book.Available)

	runTests(t, []httpTest{
		{name: "delete", method: http.MethodDelete, path: "/api/library/books/" + existing.ID, token: token, wantCode: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: "/api/library/books/" + existing.ID, token: token, wantCode: http.StatusNotFound},
	})
}
