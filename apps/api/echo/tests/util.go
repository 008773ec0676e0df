package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/identity"
	"github.com/trezcool/shule/services/metrics"
	memdbrepos "github.com/trezcool/shule/storage/database/memdb"
	"github.com/trezcool/shule/tests"
)

type fixtures struct {
	store    *memdbrepos.Store
	schools  school.Repository
	members  access.MembershipWriter
	provider *identity.SessionProvider
}

func setup(t *testing.T) (*Server, fixtures) {
	conf := core.NewTestConfig()

	// set up DB & repos
	store, _ := testutil.NewStore(t)
	fx := fixtures{
		store:    store,
		schools:  memdbrepos.NewSchoolRepository(store),
		members:  memdbrepos.NewMembershipRepository(store),
		provider: identity.NewSessionProvider(conf),
	}

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	schoolSvc := school.NewService(fx.schools)
	reg := prometheus.NewRegistry()
	resolver := metrics.NewResolverMetrics(reg, access.NewResolver(memdbrepos.NewMembershipRepository(store), schoolSvc), nil)

	// set up server
	return NewServer(conf, &Deps{
		Logger:      core.NopLogger{},
		Validate:    validate,
		Translator:  translator,
		UserSvc:     user.NewService(fx.provider, core.NopLogger{}),
		SchoolSvc:   schoolSvc,
		Resolver:    resolver,
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg, nil),
	}), fx
}

func (fx fixtures) token(t *testing.T, usr user.User) string {
	return testutil.Token(t, fx.provider, usr)
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

var (
	errUnauthenticated = httpErr{Error: user.ErrUnauthenticated.Error()}
	errRoleMissing     = httpErr{Error: user.ErrRoleMissing.Error()}
	errUnknownRole     = httpErr{Error: user.ErrUnknownRole.Error()}
	errForbidden       = httpErr{Error: user.ErrInsufficientPermissions.Error()}
	errNoTenantAccess  = httpErr{Error: access.ErrNoTenantAccess.Error()}
	errAccessDenied    = httpErr{Error: access.ErrTenantAccessDenied.Error()}
)

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
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
	assert.Equal(t, tt.wantCode, rec.Code, "failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
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

func runHTTPTests(t *testing.T, app http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
