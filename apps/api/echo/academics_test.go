package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/academics"
	"github.com/trezcool/chuo/core/user"
	"github.com/trezcool/chuo/testutil"
)

func Test_academicsApi_courses(t *testing.T) {
	db.Reset()

	algebra := testutil.CreateCourse(t, repos.Academics, "MTH101", "Algebra", true)
	biology := testutil.CreateCourse(t, repos.Academics, "BIO101", "Biology", true)
	draft := testutil.CreateCourse(t, repos.Academics, "CHM101", "Chemistry", false)

	academic := createUser(t, "academic", user.RoleAdminAcademics)
	owner := createUser(t, "owner", user.RoleAdminOwner)
	librarian := createUser(t, "librarian", user.RoleAdminLibrary)
	academicToken := getToken(t, academic)

	runTests(t, []httpTest{
		{name: "anonymous: published only", path: "/api/courses", wantData: marchallList(t, algebra, biology)},
		{name: "search", path: "/api/courses?search=bio", wantData: marchallList(t, biology)},
		{
			name: "other admins: published only", path: "/api/courses?ordering=-code", token: getToken(t, librarian),
			wantData: marchallList(t, algebra, biology),
		},
		{
			name: "academic admins see drafts", path: "/api/courses?ordering=-code", token: academicToken,
			wantData: marchallList(t, algebra, draft, biology),
		},
		{
			name: "owners see drafts", path: "/api/courses?published=false", token: getToken(t, owner),
			wantData: marchallList(t, draft),
		},
		{name: "retrieve published", path: "/api/courses/" + algebra.ID, wantData: marchallObj(t, algebra)},
		{name: "retrieve draft (anonymous)", path: "/api/courses/" + draft.ID, wantCode: http.StatusNotFound},
		{name: "retrieve draft (academic)", path: "/api/courses/" + draft.ID, token: academicToken, wantData: marchallObj(t, draft)},
		{name: "unknown", path: "/api/courses/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"})},
		{name: "bad token", path: "/api/courses", token: "lol", wantCode: http.StatusUnauthorized},
	})
}

func Test_academicsApi_writes(t *testing.T) {
	db.Reset()

	academic := createUser(t, "academic", user.RoleAdminAcademics)
	librarian := createUser(t, "librarian", user.RoleAdminLibrary)
	token := getToken(t, academic)

	runTests(t, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/api/faculties",
			body: []byte(`{"name": "Science", "code": "sci"}`), wantCode: http.StatusUnauthorized,
		},
		{
			name: "academic admin required", method: http.MethodPost, path: "/api/faculties", token: getToken(t, librarian),
			body: []byte(`{"name": "Science", "code": "sci"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid code", method: http.MethodPost, path: "/api/faculties", token: token,
			body:     []byte(`{"name": "Science", "code": "s-c-i"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": "only alphanumeric characters and underscores are allowed"}),
		},
		{
			name: "create", method: http.MethodPost, path: "/api/faculties", token: token,
			body: []byte(`{"name": " Science ", "code": "s ci"}`), wantCode: http.StatusCreated,
		},
		{
			name: "code exists", method: http.MethodPost, path: "/api/faculties", token: token,
			body:     []byte(`{"name": "Social Sciences", "code": "SCI"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": academics.ErrCodeExists.Error()}),
		},
		{
			name: "department in unknown faculty", method: http.MethodPost, path: "/api/departments", token: token,
			body:     []byte(`{"faculty_id": "lol", "name": "Physics", "code": "PHY"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"faculty_id": "faculty not found"}),
		},
	})

	faculties, err := svcs.Academics.QueryFaculties(nil, nil)
	require.NoError(t, err)
	require.Len(t, faculties, 1)
	fac := faculties[0]
	assert.Equal(t, "Science", fac.Name)
	assert.Equal(t, "SCI", fac.Code)

	dept, err := svcs.Academics.CreateDepartment(academics.NewDepartment{FacultyID: fac.ID, Name: "Physics", Code: "PHY"})
	require.NoError(t, err)

	course := marchallObj(t, academics.NewCourse{
		DepartmentID: dept.ID, Code: "phy101", Title: "Mechanics", Level: "Undergraduate", DurationYears: 3,
	})
	runTests(t, []httpTest{
		{
			name: "bad level", method: http.MethodPost, path: "/api/courses", token: token,
			body:     marchallObj(t, academics.NewCourse{DepartmentID: dept.ID, Code: "PHY102", Title: "Optics", Level: "kindergarten"}),
			wantCode: http.StatusBadRequest,
		},
		{name: "create course", method: http.MethodPost, path: "/api/courses", token: token, body: course, wantCode: http.StatusCreated},
		{
			name: "faculty still has departments", method: http.MethodDelete, path: "/api/faculties/" + fac.ID, token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "this faculty still has departments"}),
		},
		{
			name: "department still has courses", method: http.MethodDelete, path: "/api/departments/" + dept.ID, token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "this department still has courses"}),
		},
	})

	courses, err := svcs.Academics.QueryCourses(nil, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "PHY101", courses[0].Code)
	assert.Equal(t, academics.LevelUndergraduate, courses[0].Level)
	assert.False(t, courses[0].IsPublished)

	runTests(t, []httpTest{
		{name: "delete course", method: http.MethodDelete, path: "/api/courses/" + courses[0].ID, token: token, wantCode: http.StatusNoContent},
		{name: "delete department", method: http.MethodDelete, path: "/api/departments/" + dept.ID, token: token, wantCode: http.StatusNoContent},
		{name: "delete faculty", method: http.MethodDelete, path: "/api/faculties/" + fac.ID, token: token, wantCode: http.StatusNoContent},
		{name: "gone", path: "/api/faculties/" + fac.ID, wantCode: http.StatusNotFound},
	})
}
