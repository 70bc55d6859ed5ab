package echoapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/admission"
	"github.com/trezcool/chuo/core/user"
	emailsvc "github.com/trezcool/chuo/services/email"
	"github.com/trezcool/chuo/testutil"
)

func submitApplication(t *testing.T, courseID, email string) ApplicationReceipt {
	t.Helper()
	body := marchallObj(t, admission.NewApplication{
		FirstName:   "Grace",
		LastName:    "Hopper",
		Email:       email,
		DateOfBirth: time.Date(2004, 12, 9, 0, 0, 0, 0, time.UTC),
		CourseID:    courseID,
		Intake:      "2026-SEP",
		Statement:   "I like compilers.",
	})
	req, rec := newRequest(http.MethodPost, "/api/applications", body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var receipt ApplicationReceipt
	unmarshal(t, rec, &receipt)
	return receipt
}

func Test_admissionApi_submitAndTrack(t *testing.T) {
	db.Reset()
	emailsvc.ResetSentMessages()

	open := testutil.CreateCourse(t, repos.Academics, "CS101", "Computer Science", true)
	closed := testutil.CreateCourse(t, repos.Academics, "AR101", "Architecture", false)

	runTests(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/applications", body: []byte(`{"first_name": "Grace"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unpublished course", method: http.MethodPost, path: "/api/applications",
			body: marchallObj(t, admission.NewApplication{
				FirstName: "A", LastName: "B", Email: "a@b.cd", DateOfBirth: time.Now(), CourseID: closed.ID, Intake: "2026",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "course not found"}),
		},
	})

	receipt := submitApplication(t, open.ID, " Grace@Navy.MIL ")
	assert.Regexp(t, `^APP-\d{4}-[A-Z2-9]{6}$`, receipt.Reference)
	assert.Equal(t, admission.StatusSubmitted, receipt.Status)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "grace@navy.mil", msg.To[0].Address)
	assert.Contains(t, msg.Subject, receipt.Reference)

	track := func(ref, email string) string {
		return "/api/applications/track?" + url.Values{"reference": {ref}, "email": {email}}.Encode()
	}
	runTests(t, []httpTest{
		{name: "wrong email", path: track(receipt.Reference, "someone@else.cd"), wantCode: http.StatusNotFound},
		{name: "unknown reference", path: track("APP-2000-AAAAAA", "grace@navy.mil"), wantCode: http.StatusNotFound},
		{name: "missing email", path: track(receipt.Reference, ""), wantCode: http.StatusBadRequest},
	})

	req, rec := newRequest(http.MethodGet, track(receipt.Reference, "GRACE@navy.mil"))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var tracked admission.TrackedApplication
	unmarshal(t, rec, &tracked)
	assert.Equal(t, receipt.Reference, tracked.Reference)
	assert.Equal(t, open.ID, tracked.CourseID)
	assert.Empty(t, tracked.Documents)
}

func Test_admissionApi_documents(t *testing.T) {
	db.Reset()

	course := testutil.CreateCourse(t, repos.Academics, "CS101", "Computer Science", true)
	receipt := submitApplication(t, course.ID, "grace@navy.mil")
	path := "/api/applications/" + receipt.Reference + "/documents"

	attach := func(email, kind, filename string, content []byte) *httptest.ResponseRecorder {
		req, rec := newMultipartRequest(t, http.MethodPost, path, "", map[string]string{"email": email, "kind": kind}, filename, content)
		app.ServeHTTP(rec, req)
		return rec
	}

	rec := attach("grace@navy.mil", admission.DocTranscript, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"file": "a file is required"}`, rec.Body.String())

	rec = attach("grace@navy.mil", "diary", "diary.txt", []byte("dear diary"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = attach("intruder@test.cd", admission.DocTranscript, "grades.pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = attach("grace@navy.mil", admission.DocTranscript, "../My Grades.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc admission.Document
	unmarshal(t, rec, &doc)
	assert.Equal(t, admission.DocTranscript, doc.Kind)
	assert.EqualValues(t, 8, doc.Size)
	assert.NotContains(t, doc.Filename, "/")

	// reviewers download it
	reviewer := createUser(t, "reviewer", user.RoleAdminAdmissions)
	req, rec2 := newAuthRequest(http.MethodGet, "/api/admin/applications/documents/"+doc.ID+"/download", getToken(t, reviewer))
	app.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "%PDF-1.4", rec2.Body.String())
	assert.Contains(t, rec2.Header().Get("Content-Disposition"), "attachment")

	// documents are closed once the review starts
	apps, err := svcs.Admission.Query(nil, nil)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	_, err = svcs.Admission.Review(apps[0].ID, reviewer.ID, admission.Review{Status: admission.StatusUnderReview})
	require.NoError(t, err)

	rec = attach("grace@navy.mil", admission.DocPhoto, "me.jpg", []byte("jpeg"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_admissionApi_review(t *testing.T) {
	db.Reset()
	emailsvc.ResetSentMessages()

	course := testutil.CreateCourse(t, repos.Academics, "CS101", "Computer Science", true)
	receipt := submitApplication(t, course.ID, "grace@navy.mil")
	submitApplication(t, course.ID, "ada@lovelace.uk")

	reviewer := createUser(t, "reviewer", user.RoleAdminAdmissions)
	librarian := createUser(t, "librarian", user.RoleAdminLibrary)
	token := getToken(t, reviewer)

	apps, err := svcs.Admission.Query(&admission.QueryFilter{Search: receipt.Reference}, nil)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	id := apps[0].ID
	reviewPath := "/api/admin/applications/" + id + "/review"

	runTests(t, []httpTest{
		{name: "Auth required", path: "/api/admin/applications", wantCode: http.StatusUnauthorized},
		{name: "admissions admin required", path: "/api/admin/applications", token: getToken(t, librarian), wantCode: http.StatusForbidden},
		{name: "search", path: "/api/admin/applications?search=lovelace", token: token},
		{
			name: "submitted cannot be accepted", method: http.MethodPost, path: reviewPath, token: token,
			body:     []byte(`{"status": "accepted"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "cannot change status from submitted to accepted"}),
		},
		{
			name: "unknown status", method: http.MethodPost, path: reviewPath, token: token,
			body: []byte(`{"status": "maybe"}`), wantCode: http.StatusBadRequest,
		},
		{name: "under review", method: http.MethodPost, path: reviewPath, token: token, body: []byte(`{"status": "under_review"}`)},
		{name: "accept", method: http.MethodPost, path: reviewPath, token: token, body: []byte(`{"status": "Accepted", "notes": "Welcome!"}`)},
		{
			name: "stats", path: "/api/admin/applications/stats", token: token,
			wantData: marchallObj(t, map[string]int{
				admission.StatusSubmitted:   1,
				admission.StatusUnderReview: 0,
				admission.StatusAccepted:    1,
				admission.StatusRejected:    0,
				admission.StatusWaitlisted:  0,
			}),
		},
	})

	got, err := svcs.Admission.Get(id)
	require.NoError(t, err)
	assert.Equal(t, admission.StatusAccepted, got.Status)
	assert.Equal(t, reviewer.ID, got.ReviewerID)
	assert.Equal(t, "Welcome!", got.ReviewNotes)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "application_decision", msg.TemplateName)
	assert.Equal(t, "grace@navy.mil", msg.To[0].Address)

	// decisions are final
	other := createUser(t, "reviewer2", user.RoleAdminAdmissions)
	runTests(t, []httpTest{
		{
			name: "accepted stays closed", method: http.MethodPost, path: reviewPath, token: getToken(t, other),
			body:     []byte(`{"status": "accepted", "notes": "rewritten"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "the application is already accepted"}),
		},
	})
	got, err = svcs.Admission.Get(id)
	require.NoError(t, err)
	assert.Equal(t, reviewer.ID, got.ReviewerID)
	assert.Equal(t, "Welcome!", got.ReviewNotes)

	runTests(t, []httpTest{
		{name: "delete", method: http.MethodDelete, path: "/api/admin/applications/" + id, token: token, wantCode: http.StatusNoContent},
		{name: "gone", path: "/api/admin/applications/" + id, token: token, wantCode: http.StatusNotFound},
		{name: "no documents either", path: "/api/admin/applications/" + id + "/documents", token: token, wantCode: http.StatusNotFound},
	})
}
