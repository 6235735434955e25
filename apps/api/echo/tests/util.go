package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/attendr/apps/api/echo"
	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/advisory"
	"github.com/trezcool/attendr/core/attendance"
	cachesvc "github.com/trezcool/attendr/services/cache"
	genaisvc "github.com/trezcool/attendr/services/genai"
	logsvc "github.com/trezcool/attendr/services/logger"
	dummydb "github.com/trezcool/attendr/storage/database/dummy"
)

type env struct {
	app    *Server
	repo   attendance.Repository
	models *genaisvc.ConsoleService
}

func setup(t *testing.T) env {
	t.Helper()
	conf := &core.Config{
		TestMode: true,
		AppName:  "Attendr",
		Server:   core.ServerConfig{BodyLimit: "1M"},
		Policy:   core.PolicyConfig{DefaultMinPercent: 75},
	}
	logger := logsvc.NewNopLogger()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewUploadRepository(db)
	models := genaisvc.NewConsoleService()
	cache := cachesvc.NewMemoryCache(time.Minute)

	policy := attendance.PolicyFromConfig(conf.Policy)
	attSvc := attendance.NewService(repo, cache, models, logger, policy)
	advSvc := advisory.NewService(attSvc, models, logger, advisory.NewBuilder(policy, advisory.LimitsFromConfig(conf.Policy)))

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		AttendanceSvc: attSvc,
		AdvisorySvc:   advSvc,
		Validate:      validate,
		Translator:    translator,
	})
	return env{app: app, repo: repo, models: models}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func do(app http.Handler, method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
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
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
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

func assertJSONField(t *testing.T, rec *httptest.ResponseRecorder, field string, want interface{}) {
	t.Helper()
	var m map[string]interface{}
	decode(t, rec, &m)
	assert.Equal(t, want, m[field])
}
