package echoapi

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core/messaging"
	"github.com/trezcool/chuo/core/user"
)

func Test_messagingApi_channels(t *testing.T) {
	db.Reset()

	admin := createUser(t, "admin", user.RoleAdmin)
	student := createUser(t, "student", user.RoleStudent)
	lecturer := createUser(t, "lecturer", user.RoleLecturer)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	general, err := svcs.Messaging.CreateChannel(messaging.NewChannel{Name: "general"}, admin)
	require.NoError(t, err)
	staff, err := svcs.Messaging.CreateChannel(messaging.NewChannel{Name: "staff", Audience: user.RoleLecturer}, admin)
	require.NoError(t, err)

	runTests(t, []httpTest{
		{name: "Auth required", path: "/api/channels", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", method: http.MethodPost, path: "/api/channels", token: studentToken,
			body: []byte(`{"name": "random"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "bad audience", method: http.MethodPost, path: "/api/channels", token: adminToken,
			body: []byte(`{"name": "random", "audience": "parents:"}`), wantCode: http.StatusBadRequest,
		},
		{name: "students see public channels", path: "/api/channels", token: studentToken, wantData: marchallList(t, general)},
		{name: "lecturers see theirs", path: "/api/channels/" + staff.ID, token: getToken(t, lecturer), wantData: marchallObj(t, staff)},
		{name: "hidden channel", path: "/api/channels/" + staff.ID, token: studentToken, wantCode: http.StatusNotFound},
		{
			name: "cannot post in hidden channel", method: http.MethodPost, path: "/api/channels/" + staff.ID + "/messages", token: studentToken,
			body: []byte(`{"body": "hi"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "empty message", method: http.MethodPost, path: "/api/channels/" + general.ID + "/messages", token: studentToken,
			body: []byte(`{"body": "   "}`), wantCode: http.StatusBadRequest,
		},
		{name: "bad page", path: "/api/channels/" + general.ID + "/messages?after=lol", token: studentToken, wantCode: http.StatusBadRequest},
	})
}

func Test_messagingApi_messages(t *testing.T) {
	db.Reset()

	admin := createUser(t, "admin", user.RoleAdmin)
	student := createUser(t, "student", user.RoleStudent)
	studentToken := getToken(t, student)

	general, err := svcs.Messaging.CreateChannel(messaging.NewChannel{Name: "general"}, admin)
	require.NoError(t, err)
	path := "/api/channels/" + general.ID + "/messages"

	var posted []messaging.Message
	for _, body := range []string{"one", "two", "three"} {
		req, rec := newAuthRequest(http.MethodPost, path, studentToken, []byte(`{"body": " `+body+` "}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		var msg messaging.Message
		unmarshal(t, rec, &msg)
		assert.Equal(t, body, msg.Body)
		assert.Equal(t, student.ID, msg.SenderID)
		posted = append(posted, msg)
	}

	runTests(t, []httpTest{
		{name: "all", path: path, token: studentToken, wantData: marchallList(t, posted[0], posted[1], posted[2])},
		{name: "after", path: path + "?after=" + strconv.FormatInt(posted[0].ID, 10), token: studentToken, wantData: marchallList(t, posted[1], posted[2])},
		{name: "limit", path: path + "?limit=1", token: studentToken, wantData: marchallList(t, posted[0])},
		{name: "delete", method: http.MethodDelete, path: "/api/channels/" + general.ID, token: getToken(t, admin), wantCode: http.StatusNoContent},
		{name: "gone", path: path, token: studentToken, wantCode: http.StatusNotFound},
	})
}

func Test_messagingApi_stream(t *testing.T) {
	db.Reset()

	admin := createUser(t, "admin", user.RoleAdmin)
	student := createUser(t, "student", user.RoleStudent)
	general, err := svcs.Messaging.CreateChannel(messaging.NewChannel{Name: "general"}, admin)
	require.NoError(t, err)

	srv := httptest.NewServer(app)
	defer srv.Close()
	streamURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/channels/" + general.ID + "/stream"

	t.Run("token required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(streamURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	ws, _, err := websocket.DefaultDialer.Dial(streamURL+"?token="+getToken(t, student), nil)
	require.NoError(t, err)
	defer ws.Close()

	posted, err := svcs.Messaging.PostMessage(general.ID, admin, messaging.NewMessage{Body: "welcome"})
	require.NoError(t, err)

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got messaging.Message
	require.NoError(t, ws.ReadJSON(&got))
	assert.Equal(t, posted.ID, got.ID)
	assert.Equal(t, "welcome", got.Body)

	// deleting the channel drops its subscribers
	require.NoError(t, svcs.Messaging.DeleteChannel(general.ID))
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "err = %v", err)
}
