package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/trezcool/chuo/apps/shared"
	"github.com/trezcool/chuo/core"
	"github.com/trezcool/chuo/core/user"
	emailsvc "github.com/trezcool/chuo/services/email"
	logsvc "github.com/trezcool/chuo/services/logger"
	provisionsvc "github.com/trezcool/chuo/services/provisioner"
	storagesvc "github.com/trezcool/chuo/services/storage"
	inmemdb "github.com/trezcool/chuo/storage/database/inmem"
	"github.com/trezcool/chuo/testutil"
)

var (
	conf  *core.Config
	db    *inmemdb.DB
	repos shared.Repositories
	svcs  *shared.Services
	app   *Server

	provisioner = provisionsvc.NewConsoleProvisioner(nil)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = testutil.NewTestConfig()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)
	provisioner = provisionsvc.NewConsoleProvisioner(logger)

	files, err := storagesvc.NewLocalStorage(conf.Storage.Root)
	if err != nil {
		fmt.Printf("NewLocalStorage(): %v", err)
		os.Exit(1)
	}

	db = inmemdb.Open()
	repos = shared.NewMemoryRepositories(db)
	svcs, err = shared.NewServices(shared.ServiceDeps{
		Conf:        conf,
		Logger:      logger,
		Repos:       repos,
		MailSvc:     emailsvc.NewConsoleServiceMock(conf, logger),
		Files:       files,
		Provisioner: provisioner,
		Generator:   shared.NewGenerator(conf),
	})
	if err != nil {
		fmt.Printf("NewServices(): %v", err)
		os.Exit(1)
	}

	app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       svcs.Validate,
		Translator:     svcs.Translator,
		DisableReqLogs: true,
		UserSvc:        svcs.Users,
		AcademicsSvc:   svcs.Academics,
		AdmissionSvc:   svcs.Admission,
		MailboxSvc:     svcs.Mailbox,
		ImporterSvc:    svcs.Importer,
		MaterialSvc:    svcs.Materials,
		LibrarySvc:     svcs.Library,
		MessagingSvc:   svcs.Messaging,
		ContentSvc:     svcs.Content,
		SiteSvc:        svcs.Site,
	})

	code := m.Run()

	svcs.Hub.Close()
	_ = os.RemoveAll(conf.Storage.Root)
	os.Exit(code)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest sends fields along with a file named filename under the "file" field.
func newMultipartRequest(
	t *testing.T,
	method, path, token string,
	fields map[string]string,
	filename string,
	content []byte,
) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(): %v", err)
		}
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile(): %v", err)
		}
		if _, err = fw.Write(content); err != nil {
			t.Fatalf("Write(): %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func runTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func getToken(t *testing.T, usr user.User) string {
	token, err := app.GenerateToken(usr)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func createUser(t *testing.T, uname string, roles ...string) user.User {
	return testutil.CreateUser(t, repos.Users, uname, uname, uname+"@test.cd", "", roles, true)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestServer_home(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to "+conf.AppName+" API!", rec.Body.String())
}
