package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/user"
	"github.com/trezcool/chuo/testutil"
)

const strongPwd = "Kx9#mQ2$vLz"

func Test_userApi_query(t *testing.T) {
	db.Reset()

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	usr1 := testutil.CreateUser(t, repos.Users, "User", "awe", "awe@test.cd", "", nil, true, now.Add(1*time.Hour))
	usr2 := testutil.CreateUser(t, repos.Users, "King", "user02", "king@test.cd", "", nil, true, now)
	student := testutil.CreateUser(t, repos.Users, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true, now.Add(2*time.Hour))
	admin := testutil.CreateUser(t, repos.Users, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, now.Add(3*time.Hour))
	lecturer := testutil.CreateUser(t, repos.Users, "Lecturer", "lecturer", "lecturer@test.cd", "", []string{user.RoleLecturer}, true, now.Add(4*time.Hour))
	naughty := testutil.CreateUser(t, repos.Users, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false, now.Add(5*time.Hour))

	adminToken := getToken(t, admin)

	runTests(t, []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Get all (newest first)", path: "/api/users", token: adminToken,
			wantData: marchallList(t, naughty, lecturer, admin, student, usr1, usr2),
		},
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: marchallList(t)},
		{
			name: "search=USE", path: path("USE", "username", nil), token: adminToken,
			wantData: marchallList(t, usr1, student, usr2),
		},
		{
			name: "role=student:", path: path("", "username", nil, user.RoleStudent), token: adminToken,
			wantData: marchallList(t, student, naughty),
		},
		{
			name: "role=lecturer:,admin:", path: path("", "username", nil, user.RoleLecturer, user.RoleAdmin), token: adminToken,
			wantData: marchallList(t, admin, lecturer),
		},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "ordering=-name", path: path("", "-name", bPtr(true)), token: adminToken,
			wantData: marchallList(t, usr1, lecturer, usr2, student, admin),
		},
	})
}

func Test_userApi_login(t *testing.T) {
	db.Reset()

	active := testutil.CreateUser(t, repos.Users, "Active", "active", "active@test.cd", strongPwd, nil, true)
	testutil.CreateUser(t, repos.Users, "Inactive", "inactive", "inactive@test.cd", strongPwd, nil, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	runTests(t, []httpTest{
		{
			name: "empty", method: http.MethodPost, path: "/api/users/login", body: []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/users/login", body: login("lol", strongPwd),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/users/login", body: login("active", "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/api/users/login", body: login("inactive@test.cd", strongPwd),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/users/login", login(" ACTIVE ", strongPwd))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)

		usr, err := svcs.Users.GetByID(active.ID)
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())

		// the token opens authenticated endpoints
		req, rec = newAuthRequest(http.MethodGet, "/api/users/"+active.ID, resp.Token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	db.Reset()

	usr := createUser(t, "refresher")
	token := getToken(t, usr)

	runTests(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/api/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", method: http.MethodPost, path: "/api/users/token-refresh", token: "lol", wantCode: http.StatusUnauthorized},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/users/token-refresh", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	unmarshal(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	// deactivated users cannot refresh
	usr.IsActive = false
	_, err := repos.Users.UpdateUser(context.Background(), usr)
	require.NoError(t, err)
	req, rec = newAuthRequest(http.MethodPost, "/api/users/token-refresh", token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_userApi_create(t *testing.T) {
	db.Reset()

	admin := createUser(t, "admin", user.RoleAdmin)
	owner := createUser(t, "owner", user.RoleAdminOwner)
	lecturer := createUser(t, "lecturer", user.RoleLecturer)

	newUser := func(uname string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New " + uname,
			Username:        uname,
			Email:           uname + "@test.cd",
			Password:        strongPwd,
			PasswordConfirm: strongPwd,
			Roles:           roles,
		})
	}

	runTests(t, []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/api/users/register", token: getToken(t, lecturer),
			body: newUser("newbie"), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/api/users/register", token: getToken(t, admin),
			body: []byte(`{"name": "  "}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "weak password", method: http.MethodPost, path: "/api/users/register", token: getToken(t, admin),
			body:     marchallObj(t, user.NewUser{Name: "Weak", Username: "weakling", Password: "password", PasswordConfirm: "password"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "cannot grant roles above own", method: http.MethodPost, path: "/api/users/register", token: getToken(t, admin),
			body: newUser("academic", user.RoleAdminAcademics), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": errNoPermsToSetRoles}),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/api/users/register", token: getToken(t, owner),
			body: newUser("lecturer"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "owner grants any role", method: http.MethodPost, path: "/api/users/register", token: getToken(t, owner),
			body: newUser("academic", user.RoleAdminAcademics), wantCode: http.StatusCreated,
		},
	})

	usr, err := svcs.Users.GetByUsername("academic")
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.Equal(t, []string{user.RoleAdminAcademics}, usr.Roles)
	assert.NoError(t, usr.CheckPassword(strongPwd))
}

func Test_userApi_update(t *testing.T) {
	db.Reset()

	admin := createUser(t, "admin", user.RoleAdmin)
	student := createUser(t, "student", user.RoleStudent)
	other := createUser(t, "other", user.RoleStudent)
	studentToken := getToken(t, student)

	runTests(t, []httpTest{
		{
			name: "others are hidden", method: http.MethodPut, path: "/api/users/" + other.ID, token: studentToken,
			body: []byte(`{"name": "Hacked"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "students cannot change their roles", method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: []byte(`{"roles": ["admin:owner"]}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "students change their name", method: http.MethodPut, path: "/api/users/" + student.ID, token: studentToken,
			body: []byte(`{"name": "  Renamed "}`),
		},
		{
			name: "admins deactivate", method: http.MethodPut, path: "/api/users/" + other.ID, token: getToken(t, admin),
			body: []byte(`{"is_active": false}`),
		},
	})

	usr, err := svcs.Users.GetByID(student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", usr.Name)

	usr, err = svcs.Users.GetByID(other.ID)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)
}

func Test_userApi_destroy(t *testing.T) {
	db.Reset()

	admin := createUser(t, "admin", user.RoleAdmin)
	owner := createUser(t, "owner", user.RoleAdminOwner)
	student1 := createUser(t, "student1", user.RoleStudent)
	student2 := createUser(t, "student2", user.RoleStudent)
	adminToken := getToken(t, admin)

	runTests(t, []httpTest{
		{name: "no suicide", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "no regicide", method: http.MethodDelete, path: "/api/users/" + owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{
			name: "no suicide (multiple)", method: http.MethodDelete,
			path:  "/api/users?id=" + student1.ID + "&id=" + admin.ID, token: adminToken, wantCode: http.StatusForbidden,
		},
		{name: "delete one", method: http.MethodDelete, path: "/api/users/" + student1.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "delete many", method: http.MethodDelete,
			path: "/api/users?id=" + student2.ID + "&id=unknown", token: adminToken, wantCode: http.StatusNoContent,
		},
	})

	users, err := svcs.Users.Query(nil, nil)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func Test_userApi_passwordReset(t *testing.T) {
	db.Reset()

	usr := testutil.CreateUser(t, repos.Users, "Forgetful", "forgetful", "forgetful@test.cd", strongPwd, nil, true)
	uid, token := svcs.Users.(*user.Service).MakeResetToken(usr)
	newPwd := "Zq7&wPn4!tR"

	runTests(t, []httpTest{
		{
			name: "unknown emails look fine", method: http.MethodPost, path: "/api/users/password-reset",
			body: []byte(`{"email": "nobody@test.cd"}`),
		},
		{
			name: "bad token", method: http.MethodPost, path: "/api/users/password-reset-confirm",
			body: marchallObj(t, user.ResetUserPassword{UID: uid, Token: "lol", Password: newPwd, PasswordConfirm: newPwd}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"token": user.ErrInvalidToken.Error()}),
		},
		{
			name: "reset", method: http.MethodPost, path: "/api/users/password-reset-confirm",
			body: marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}),
		},
	})

	usr, err := svcs.Users.GetByID(usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(newPwd))
}

func Test_userApi_queryRoles(t *testing.T) {
	db.Reset()
	admin := createUser(t, "admin", user.RoleAdmin)

	req, rec := newAuthRequest(http.MethodGet, "/api/users/roles", getToken(t, admin))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), user.RoleAdminOwner))
}

func Test_userApi_me(t *testing.T) {
	db.Reset()
	student := createUser(t, "student", user.RoleStudent)

	req, rec := newAuthRequest(http.MethodGet, "/api/users/me", "")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/api/users/me", getToken(t, student))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var me user.User
	unmarshal(t, rec, &me)
	assert.Equal(t, student.ID, me.ID)
	assert.Equal(t, student.Username, me.Username)
}
