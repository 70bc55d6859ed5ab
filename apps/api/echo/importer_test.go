package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/importer"
	"github.com/trezcool/chuo/core/library"
	"github.com/trezcool/chuo/core/user"
	"github.com/trezcool/chuo/testutil"
)

const booksCSV = "Title,Author,ISBN,Qty\n" +
	"Dune,Frank Herbert,0441172717,3\n" +
	",,,\n" +
	"Broken,Someone,1234567890,1\n"

func runImport(t *testing.T, path, token string, fields map[string]string, filename, content string) (int, []byte) {
	t.Helper()
	req, rec := newMultipartRequest(t, http.MethodPost, path, token, fields, filename, []byte(content))
	app.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func Test_importerApi_access(t *testing.T) {
	db.Reset()

	librarian := getToken(t, createUser(t, "librarian", user.RoleAdminLibrary))
	tests := []struct {
		name     string
		token    string
		kind     string
		wantCode int
	}{
		{name: "Auth required", kind: importer.KindBooks, wantCode: http.StatusUnauthorized},
		{name: "admins only", token: getToken(t, createUser(t, "student", user.RoleStudent)), kind: importer.KindBooks, wantCode: http.StatusForbidden},
		{name: "invalid kind", token: librarian, kind: "grades", wantCode: http.StatusBadRequest},
		{name: "librarians cannot import students", token: librarian, kind: importer.KindStudents, wantCode: http.StatusForbidden},
		{name: "librarians import books", token: librarian, kind: importer.KindBooks, wantCode: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := runImport(t, "/api/admin/imports/preview", tc.token, map[string]string{"kind": tc.kind}, "books.csv", booksCSV)
			assert.Equal(t, tc.wantCode, code, string(body))
		})
	}
}

func Test_importerApi_preview(t *testing.T) {
	db.Reset()
	token := getToken(t, createUser(t, "librarian", user.RoleAdminLibrary))

	code, body := runImport(t, "/api/admin/imports/preview", token, map[string]string{"kind": "Books"}, "books.csv", booksCSV)
	require.Equal(t, http.StatusOK, code, string(body))

	var preview importer.Preview
	require.NoError(t, json.Unmarshal(body, &preview))
	assert.Equal(t, importer.KindBooks, preview.Kind)
	assert.Equal(t, []string{"Title", "Author", "ISBN", "Qty"}, preview.Headers)
	assert.Equal(t, importer.Mapping{"Title": "title", "Author": "authors", "ISBN": "isbn", "Qty": "copies"}, preview.Mapping)
	assert.Equal(t, 3, preview.TotalRows)
	assert.Equal(t, []string{"Dune", "Frank Herbert", "0441172717", "3"}, preview.Rows[0])

	code, _ = runImport(t, "/api/admin/imports/preview", token, map[string]string{"kind": "books"}, "books.pdf", "%PDF")
	assert.Equal(t, http.StatusBadRequest, code)
}

func Test_importerApi_books(t *testing.T) {
	db.Reset()
	token := getToken(t, createUser(t, "librarian", user.RoleAdminLibrary))

	code, body := runImport(t, "/api/admin/imports", token, map[string]string{"kind": "books"}, "books.csv", booksCSV)
	require.Equal(t, http.StatusOK, code, string(body))

	var report importer.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 4, report.Errors[0].Row)

	books, err := svcs.Library.Query(&library.QueryFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, 3, books[0].Copies)
	assert.Equal(t, 3, books[0].Available)

	t.Run("explicit mapping", func(t *testing.T) {
		csv := "Book,Writer,Notes\nNeuromancer,William Gibson,ignored\n"
		fields := map[string]string{"kind": "books", "mapping": `{"Book": "title", "Writer": "authors", "Notes": ""}`}
		code, body := runImport(t, "/api/admin/imports", token, fields, "more.csv", csv)
		require.Equal(t, http.StatusOK, code, string(body))
		require.NoError(t, json.Unmarshal(body, &report))
		assert.Equal(t, 1, report.Inserted)
	})

	t.Run("unknown mapped field", func(t *testing.T) {
		fields := map[string]string{"kind": "books", "mapping": `{"Book": "price"}`}
		code, _ := runImport(t, "/api/admin/imports", token, fields, "more.csv", "Book\nX\n")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("required column missing", func(t *testing.T) {
		code, body := runImport(t, "/api/admin/imports", token, map[string]string{"kind": "books"}, "more.csv", "Title\nX\n")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.JSONEq(t, `{"mapping": "no column mapped to: authors"}`, string(body))
	})
}

func Test_importerApi_courses(t *testing.T) {
	db.Reset()
	testutil.CreateCourse(t, repos.Academics, "CS101", "Computer Science", true)
	token := getToken(t, createUser(t, "academic", user.RoleAdminAcademics))

	csv := "Course Code,Name,Dept,Level,Published\n" +
		"CS201,Algorithms,DCS101,undergraduate,yes\n" +
		"CS202,Nowhere,NOPE,undergraduate,no\n"
	code, body := runImport(t, "/api/admin/imports", token, map[string]string{"kind": "courses"}, "courses.csv", csv)
	require.Equal(t, http.StatusOK, code, string(body))

	var report importer.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, []importer.RowError{{Row: 3, Error: "department_code: department not found: NOPE"}}, report.Errors)

	courses, err := svcs.Academics.QueryCourses(&academics.CourseFilter{Search: "Algorithms"}, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.True(t, courses[0].IsPublished)
}

func Test_importerApi_students(t *testing.T) {
	db.Reset()
	token := getToken(t, createUser(t, "itadmin", user.RoleAdminIT))

	csv := "First Name,Surname,Email\nAda,Lovelace,ADA@chuo.ac\nNo,Email,\n"
	code, body := runImport(t, "/api/admin/imports", token, map[string]string{"kind": "students"}, "students.csv", csv)
	require.Equal(t, http.StatusOK, code, string(body))

	var report importer.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Failed)

	usr, err := svcs.Users.GetByEmail("ada@chuo.ac")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", usr.Name)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.True(t, usr.IsActive)
}
