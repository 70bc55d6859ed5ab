package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/content"
	"github.com/trezcool/chuo/core/user"
	"github.com/trezcool/chuo/testutil"
)

func Test_contentApi(t *testing.T) {
	db.Reset()
	defer svcs.Content.Pause()

	described := testutil.CreateCourse(t, repos.Academics, "CS101", "Computer Science", true)
	require.NoError(t, repos.Academics.SetCourseDescription(context.Background(), described.ID, "Already described."))
	bare := testutil.CreateCourse(t, repos.Academics, "MA101", "Mathematics", true)

	editor := createUser(t, "editor", user.RoleAdminContent)
	academic := createUser(t, "academic", user.RoleAdminAcademics)
	token := getToken(t, editor)

	runTests(t, []httpTest{
		{name: "Auth required", path: "/api/admin/content-jobs", wantCode: http.StatusUnauthorized},
		{name: "content admin required", path: "/api/admin/content-jobs", token: getToken(t, academic), wantCode: http.StatusForbidden},
		{
			name: "bad kind", method: http.MethodPost, path: "/api/admin/content-jobs", token: token,
			body: []byte(`{"kind": "poem"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/api/admin/content-jobs", token: token,
			body:     []byte(`{"kind": "course_description", "target_ids": ["lol"]}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"target_ids": "course not found: lol"}),
		},
	})

	// without targets, every course missing a description gets a job
	req, rec := newAuthRequest(http.MethodPost, "/api/admin/content-jobs", token, []byte(`{"kind": "course_description"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var jobs []content.Job
	unmarshal(t, rec, &jobs)
	require.Len(t, jobs, 1)
	assert.Equal(t, bare.ID, jobs[0].TargetID)
	assert.Equal(t, content.StatusPending, jobs[0].Status)
	jobPath := "/api/admin/content-jobs/" + strconv.FormatInt(jobs[0].ID, 10)

	runTests(t, []httpTest{
		{
			name: "active targets are skipped", method: http.MethodPost, path: "/api/admin/content-jobs", token: token,
			body: []byte(`{"kind": "course_description", "target_ids": ["` + bare.ID + `"]}`), wantCode: http.StatusCreated,
			wantData: marchallList(t),
		},
		{name: "retrieve", path: jobPath, token: token, wantData: marchallObj(t, jobs[0])},
		{name: "bad id", path: "/api/admin/content-jobs/lol", token: token, wantCode: http.StatusNotFound},
		{name: "pending", path: "/api/admin/content-jobs?status=PENDING", token: token, wantData: marchallList(t, jobs[0])},
		{
			name: "start", method: http.MethodPost, path: "/api/admin/content-jobs/start", token: token,
			wantData: marchallObj(t, content.QueueStatus{
				Counts:  map[string]int{content.StatusPending: 1, content.StatusProcessing: 0, content.StatusCompleted: 0, content.StatusFailed: 0},
				Running: true,
			}),
		},
	})

	n, err := svcs.Content.(*content.Service).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	crs, err := svcs.Academics.GetCourse(bare.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, crs.Description)

	runTests(t, []httpTest{
		{
			name: "pause", method: http.MethodPost, path: "/api/admin/content-jobs/pause", token: token,
			wantData: marchallObj(t, content.QueueStatus{
				Counts:  map[string]int{content.StatusPending: 0, content.StatusProcessing: 0, content.StatusCompleted: 1, content.StatusFailed: 0},
				Running: false,
			}),
		},
		{name: "nothing to retry", method: http.MethodPost, path: "/api/admin/content-jobs/retry-failed", token: token, wantData: marchallObj(t, CountResponse{Count: 0})},
		{name: "clear completed", method: http.MethodDelete, path: "/api/admin/content-jobs/completed", token: token, wantData: marchallObj(t, CountResponse{Count: 1})},
		{name: "gone", path: jobPath, token: token, wantCode: http.StatusNotFound},
	})
}
