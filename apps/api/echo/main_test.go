package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/core/quotation"
	"github.com/trezcool/spadesk/core/sale"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/core/user"
	emailsvc "github.com/trezcool/spadesk/services/email"
	metricsvc "github.com/trezcool/spadesk/services/metrics"
	"github.com/trezcool/spadesk/storage/database/sqlxrepos"
	"github.com/trezcool/spadesk/tests"
)

var errMissingToken = httpErr{Error: "user not authenticated"}

type testApp struct {
	srv     *Server
	conf    *core.Config
	mail    *emailsvc.ConsoleMock
	metrics *metricsvc.PrometheusMetrics

	usrRepo  user.Repository
	roleRepo access.Repository
	clRepo   client.Repository
	trtRepo  treatment.Repository
	empRepo  employee.Repository
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	db := testutil.PrepareDB(t)

	// repos
	app := &testApp{
		conf:     conf,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		roleRepo: sqlxrepos.NewRoleRepository(db),
		clRepo:   sqlxrepos.NewClientRepository(db),
		trtRepo:  sqlxrepos.NewTreatmentRepository(db),
		empRepo:  sqlxrepos.NewEmployeeRepository(db),
		mail:     emailsvc.NewConsoleMock(conf, logger),
		metrics:  metricsvc.NewPrometheusMetrics(),
	}
	apptRepo := sqlxrepos.NewAppointmentRepository(db)
	quotRepo := sqlxrepos.NewQuotationRepository(db)
	saleRepo := sqlxrepos.NewSaleRepository(db)
	seq := sqlxrepos.NewCounterRepository(db)

	// services
	apptSvc := appointment.NewService(conf, db, apptRepo, app.clRepo, app.empRepo, app.trtRepo, app.metrics)
	saleSvc := sale.NewService(conf, db, saleRepo, seq, app.clRepo, app.empRepo, app.trtRepo, apptSvc, app.metrics)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	access.InitValidators(validate, translator)
	treatment.InitValidators(validate, translator)
	appointment.InitValidators(validate, translator)
	sale.InitValidators(validate, translator)

	app.srv = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Metrics:        app.metrics,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        user.NewService(conf, db, app.usrRepo, app.mail),
		AccessSvc:      access.NewService(app.roleRepo),
		ClientSvc:      client.NewService(app.clRepo),
		TreatmentSvc:   treatment.NewService(app.trtRepo),
		EmployeeSvc:    employee.NewService(db, app.empRepo, app.trtRepo, app.usrRepo),
		AppointmentSvc: apptSvc,
		QuotationSvc:   quotation.NewService(conf, db, quotRepo, seq, app.clRepo, saleSvc, app.mail),
		SaleSvc:        saleSvc,
	})
	return app
}

func (app *testApp) createUser(t *testing.T, uname string, roles ...string) user.User {
	return testutil.CreateUser(t, app.usrRepo, "User "+uname, uname, uname+"@spadesk.test", "Pa$$w0rd!", roles, true)
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	auth := newAuthenticator(app.conf, nil, nil)
	token, err := auth.GenerateToken(auth.userClaims(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

// do serves the request and decodes the JSON response into out, when given.
func (app *testApp) do(t *testing.T, method, path, token string, body interface{}, out ...interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marshalObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.srv.ServeHTTP(rec, req)
	if len(out) > 0 && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out[0]), rec.Body.String())
	}
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData []byte
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

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
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
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
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

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(t, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
