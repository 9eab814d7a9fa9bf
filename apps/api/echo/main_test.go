package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	. "github.com/trezcool/metalearn/apps/api/echo"
	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/file"
	"github.com/trezcool/metalearn/core/progress"
	"github.com/trezcool/metalearn/core/user"
	appfs "github.com/trezcool/metalearn/fs"
	emailsvc "github.com/trezcool/metalearn/services/email"
	logsvc "github.com/trezcool/metalearn/services/logger"
	inmemdb "github.com/trezcool/metalearn/storage/database/inmem"
	"github.com/trezcool/metalearn/storage/filestore"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
	errServer       = httpErr{Error: "Internal Server Error"}
)

type testEnv struct {
	conf         *core.Config
	app          Server
	deps         *Deps
	auth         *Authenticator
	usrRepo      user.Repository
	progressRepo progress.Repository
	mailSvc      *emailsvc.ConsoleServiceMock
	shutdown     chan struct{}
}

// setup builds a server on a fresh in-memory database.
// override may replace the progress repository used by the progress service.
func setup(t *testing.T, override ...func(progress.Repository) progress.Repository) *testEnv {
	t.Helper()
	conf := core.NewTestConfig()
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, conf.FrontendBaseURL, true))

	db := inmemdb.Open()
	env := &testEnv{
		conf:         conf,
		auth:         NewAuthenticator(conf),
		usrRepo:      inmemdb.NewUserRepository(db),
		progressRepo: inmemdb.NewProgressRepository(db),
		mailSvc:      emailsvc.NewConsoleServiceMock(conf),
		shutdown:     make(chan struct{}, 1),
	}

	progressRepo := env.progressRepo
	for _, o := range override {
		progressRepo = o(progressRepo)
	}
	progressSvc, err := progress.NewService(progressRepo, conf.Tutor.Threshold)
	require.NoError(t, err)

	env.deps = &Deps{
		Conf:        conf,
		Logger:      logsvc.New(zap.NewNop(), conf),
		DB:          db,
		UserSvc:     user.NewService(env.usrRepo, env.mailSvc, conf),
		ProgressSvc: progressSvc,
		FileSvc:     file.NewService(inmemdb.NewFileRepository(db), filestore.NewMem(), conf.Uploads.MaxSize),
	}
	env.app = NewServer("", env.shutdown, env.deps)
	return env
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
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req := newAuthRequest(method, tt.path, tt.token, tt.body)
	rec := env.do(req)
	checkCodeAndData(t, tt, rec)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.auth.GenerateToken(env.auth.UserClaims(usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}
