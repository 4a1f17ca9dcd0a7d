package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/tuitionledger/internal/config"
	"github.com/smallbiznis/tuitionledger/internal/observability"
	reportservice "github.com/smallbiznis/tuitionledger/internal/report/service"
	"github.com/smallbiznis/tuitionledger/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	env := testenv.New(t, testenv.Options{
		Billing: &config.BillingConfig{TuitionItemCode: "tuition"},
	})
	return NewServer(ServerParams{
		Gin:        NewEngine(observability.Config{}, nil),
		StudentSvc: env.Students,
		CatalogSvc: env.Catalog,
		InvoiceSvc: env.Invoices,
		PaymentSvc: env.Payments,
		LedgerSvc:  env.Ledger,
		ReportSvc: reportservice.NewService(reportservice.Params{
			DB:     env.DB,
			Log:    env.Log,
			Config: env.Config,
		}),
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (int, apiEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var env apiEnvelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func createStudent(t *testing.T, s *Server, name string) string {
	t.Helper()
	code, env := doJSON(t, s, http.MethodPost, "/api/students", map[string]any{"name": name, "cohort": "x"})
	require.Equal(t, http.StatusOK, code)
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.ID
}

func TestBillingFlow(t *testing.T) {
	s := newTestServer(t)
	studentID := createStudent(t, s, "Aiko")

	code, _ := doJSON(t, s, http.MethodPost, "/api/catalog/items", map[string]any{
		"name": "Tuition", "code": "tuition", "unit_price": 30000, "display_order": 1,
	})
	require.Equal(t, http.StatusOK, code)

	code, env := doJSON(t, s, http.MethodPost, "/api/charges/generate", map[string]any{
		"period": "2024-04", "students": "all",
	})
	require.Equal(t, http.StatusOK, code)
	var gen struct {
		CreatedCount int `json:"created_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &gen))
	assert.Equal(t, 1, gen.CreatedCount)

	code, env = doJSON(t, s, http.MethodPost, "/api/charges/generate", map[string]any{
		"period": "2024-04", "students": []string{studentID},
	})
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "conflict", env.Error.Type)

	code, env = doJSON(t, s, http.MethodPost, "/api/payments", map[string]any{
		"student_id": studentID, "paid_on": "2024-04-10", "amount": 20000, "method": "cash",
	})
	require.Equal(t, http.StatusOK, code)
	var paid struct {
		Remaining int64 `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	assert.Equal(t, int64(20000), paid.Remaining)

	code, env = doJSON(t, s, http.MethodGet, "/api/students/"+studentID+"/balances/2024-04", nil)
	require.Equal(t, http.StatusOK, code)
	var bal struct {
		Charges  int64 `json:"charges"`
		Payments int64 `json:"payments"`
		Balance  int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, int64(30000), bal.Charges)
	assert.Equal(t, int64(20000), bal.Payments)
	assert.Equal(t, int64(10000), bal.Balance)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/item-sales/export?period=2024-04", nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "item-sales-2024-04.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)
	studentID := createStudent(t, s, "Ben")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{"bad period", http.MethodPost, "/api/charges/generate", map[string]any{"period": "2024-13", "students": "all"}, http.StatusBadRequest, "period"},
		{"bad selector", http.MethodPost, "/api/charges/generate", map[string]any{"period": "2024-04", "students": "some"}, http.StatusBadRequest, "students"},
		{"unknown student", http.MethodPost, "/api/charges/generate", map[string]any{"period": "2024-04", "students": []int64{42}}, http.StatusBadRequest, "students"},
		{"zero amount", http.MethodPost, "/api/payments", map[string]any{"student_id": studentID, "paid_on": "2024-04-10", "amount": 0, "method": "cash"}, http.StatusBadRequest, "amount"},
		{"bad method", http.MethodPost, "/api/payments", map[string]any{"student_id": studentID, "paid_on": "2024-04-10", "amount": 10, "method": "barter"}, http.StatusBadRequest, "method"},
		{"bad filter", http.MethodGet, "/api/balances?period=2024-04&filter=weird", nil, http.StatusBadRequest, "filter"},
		{"bad page token", http.MethodGet, "/api/students?page_token=%25%25", nil, http.StatusBadRequest, "page_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := doJSON(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "validation_error", env.Error.Type)
			require.NotEmpty(t, env.Error.Errors)
			assert.Equal(t, tt.field, env.Error.Errors[0].Field)
		})
	}
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)

	code, env := doJSON(t, s, http.MethodGet, "/api/students/123", nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Type)

	code, _ = doJSON(t, s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestParseStudentSelector(t *testing.T) {
	all, ids, err := parseStudentSelector(json.RawMessage(`"ALL"`))
	require.NoError(t, err)
	assert.True(t, all)
	assert.Nil(t, ids)

	all, ids, err = parseStudentSelector(json.RawMessage(`["12", 34]`))
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, []string{"12", "34"}, ids)

	for _, raw := range []string{``, `null`, `[]`, `"some"`, `[true]`, `{}`} {
		_, _, err := parseStudentSelector(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}
