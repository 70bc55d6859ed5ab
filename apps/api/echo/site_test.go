package echoapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/site"
	"github.com/trezcool/chuo/core/user"
	emailsvc "github.com/trezcool/chuo/services/email"
)

func Test_siteApi_pages(t *testing.T) {
	t.Run("section", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/pages?section=about")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var pages []site.Page
		unmarshal(t, rec, &pages)
		require.Len(t, pages, 2)
		assert.Equal(t, "about", pages[0].Slug)
		assert.Equal(t, "history", pages[1].Slug)
	})

	t.Run("page", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/pages/About")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var page site.Page
		unmarshal(t, rec, &page)
		assert.Equal(t, "About Chuo University", page.Title)
		assert.True(t, strings.Contains(page.HTML, "<h2"), page.HTML)
	})

	runTests(t, []httpTest{
		{name: "unknown section", path: "/api/pages?section=lol", wantData: marchallList(t)},
		{name: "unknown page", path: "/api/pages/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "page not found"})},
	})
}

func Test_siteApi_contact(t *testing.T) {
	emailsvc.ResetSentMessages()

	runTests(t, []httpTest{
		{
			name: "invalid email", method: http.MethodPost, path: "/api/contact",
			body:     []byte(`{"name": "Ada", "email": "ada", "subject": "Hello", "message": "Hi there"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "sent", method: http.MethodPost, path: "/api/contact",
			body: []byte(`{"name": "Ada", "email": "ada@lovelace.uk", "subject": "Hello", "message": "Hi there"}`),
		},
	})

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, conf.ContactInbox, msg.To[0].Address)
	require.NotNil(t, msg.ReplyTo)
	assert.Equal(t, "ada@lovelace.uk", msg.ReplyTo.Address)
}

func Test_siteApi_documents(t *testing.T) {
	db.Reset()

	editor := createUser(t, "editor", user.RoleAdminContent)
	student := createUser(t, "student", user.RoleStudent)
	token := getToken(t, editor)
	fields := map[string]string{"title": "Annual Report 2025", "category": site.CategoryReport, "year": "2025"}

	req, rec := newMultipartRequest(t, http.MethodPost, "/api/documents", getToken(t, student), fields, "report.pdf", []byte("report"))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newMultipartRequest(t, http.MethodPost, "/api/documents", token,
		map[string]string{"title": "Gossip", "category": "gossip"}, "gossip.pdf", []byte("gossip"))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newMultipartRequest(t, http.MethodPost, "/api/documents", token, fields, "report.pdf", []byte("report"))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc site.Document
	unmarshal(t, rec, &doc)
	assert.Equal(t, 2025, doc.Year)

	runTests(t, []httpTest{
		{name: "public list", path: "/api/documents?category=report", wantData: marchallList(t, doc)},
		{name: "other year", path: "/api/documents?year=2024", wantData: marchallList(t)},
		{name: "retrieve", path: "/api/documents/" + doc.ID, wantData: marchallObj(t, doc)},
	})

	req, rec = newRequest(http.MethodGet, "/api/documents/"+doc.ID+"/download")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "report", rec.Body.String())

	runTests(t, []httpTest{
		{name: "anonymous cannot delete", method: http.MethodDelete, path: "/api/documents/" + doc.ID, wantCode: http.StatusUnauthorized},
		{name: "delete", method: http.MethodDelete, path: "/api/documents/" + doc.ID, token: token, wantCode: http.StatusNoContent},
		{name: "gone", path: "/api/documents/" + doc.ID + "/download", wantCode: http.StatusNotFound},
	})
}
