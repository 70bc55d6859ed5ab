package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/material"
	"github.com/trezcool/chuo/core/user"
	"github.com/trezcool/chuo/testutil"
)

func uploadMaterial(t *testing.T, token string, fields map[string]string, content []byte) (int, material.Material) {
	t.Helper()
	req, rec := newMultipartRequest(t, http.MethodPost, "/api/materials", token, fields, "notes.pdf", content)
	app.ServeHTTP(rec, req)

	var mat material.Material
	if rec.Code == http.StatusCreated {
		unmarshal(t, rec, &mat)
	}
	return rec.Code, mat
}

func Test_materialApi(t *testing.T) {
	db.Reset()

	course := testutil.CreateCourse(t, repos.Academics, "CS101", "Computer Science", true)
	lecturer := createUser(t, "lecturer", user.RoleLecturer)
	colleague := createUser(t, "colleague", user.RoleLecturer)
	academic := createUser(t, "academic", user.RoleAdminAcademics)
	student := createUser(t, "student", user.RoleStudent)
	lecturerToken := getToken(t, lecturer)

	fields := map[string]string{
		"course_id":     course.ID,
		"title":         "Week 1",
		"kind":          material.KindLectureNotes,
		"academic_year": "2026/2027",
		"semester":      "1",
	}

	t.Run("students cannot upload", func(t *testing.T) {
		code, _ := uploadMaterial(t, getToken(t, student), fields, []byte("notes"))
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("bad academic year", func(t *testing.T) {
		bad := map[string]string{"course_id": course.ID, "title": "Week 1", "kind": material.KindLectureNotes, "academic_year": "2026/2028"}
		code, _ := uploadMaterial(t, lecturerToken, bad, []byte("notes"))
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown course", func(t *testing.T) {
		bad := map[string]string{"course_id": "lol", "title": "Week 1", "kind": material.KindPastPaper}
		code, _ := uploadMaterial(t, lecturerToken, bad, []byte("notes"))
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("empty file", func(t *testing.T) {
		code, _ := uploadMaterial(t, lecturerToken, fields, nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	code, mat := uploadMaterial(t, lecturerToken, fields, []byte("lecture notes"))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, lecturer.ID, mat.UploadedBy)
	assert.Equal(t, 1, mat.Semester)
	assert.EqualValues(t, 13, mat.Size)

	update := []byte(`{"course_id": "` + course.ID + `", "title": "Week 1 (revised)", "kind": "lecture_notes"}`)
	runTests(t, []httpTest{
		{name: "Auth required", path: "/api/materials", wantCode: http.StatusUnauthorized},
		{name: "students browse", path: "/api/materials?course_id=" + course.ID, token: getToken(t, student), wantData: marchallList(t, mat)},
		{name: "filter by kind", path: "/api/materials?kind=past_paper", token: getToken(t, student), wantData: marchallList(t)},
		{
			name: "colleagues cannot edit", method: http.MethodPut, path: "/api/materials/" + mat.ID, token: getToken(t, colleague),
			body: update, wantCode: http.StatusForbidden,
		},
		{name: "owners edit", method: http.MethodPut, path: "/api/materials/" + mat.ID, token: lecturerToken, body: update},
		{
			name: "colleagues cannot delete", method: http.MethodDelete, path: "/api/materials/" + mat.ID, token: getToken(t, colleague),
			wantCode: http.StatusForbidden,
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/api/materials/"+mat.ID+"/download", getToken(t, student))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lecture notes", rec.Body.String())

	got, err := svcs.Materials.Get(mat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Week 1 (revised)", got.Title)
	assert.Equal(t, 1, got.Downloads)

	runTests(t, []httpTest{
		{name: "academic admins delete", method: http.MethodDelete, path: "/api/materials/" + mat.ID, token: getToken(t, academic), wantCode: http.StatusNoContent},
		{name: "gone", path: "/api/materials/" + mat.ID, token: lecturerToken, wantCode: http.StatusNotFound},
	})
}
