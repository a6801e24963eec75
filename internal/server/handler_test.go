package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/infra/auth"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

// fakeStore отдает заранее заготовленные записи и запоминает параметры
// последнего чтения.
type fakeStore struct {
	records     []domain.Record
	lastFilters []pipeline.FilterExpression
	lastOpt     pipeline.FindOptions
}

func (s *fakeStore) FindAll(ctx context.Context, filters []pipeline.FilterExpression, opt pipeline.FindOptions) ([]domain.Record, error) {
	s.lastFilters = filters
	s.lastOpt = opt
	return s.records, nil
}

func (s *fakeStore) Create(ctx context.Context, values domain.Record) (domain.Record, error) {
	return values, nil
}

func (s *fakeStore) FindByPK(ctx context.Context, id string, opt pipeline.FindOptions) (domain.Record, error) {
	for _, rec := range s.records {
		if rec.ID() == id {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, values domain.Record) (domain.Record, error) {
	return values, nil
}

func (s *fakeStore) Destroy(ctx context.Context, id string, opt pipeline.DestroyOptions) (domain.Record, error) {
	return nil, nil
}

// fakeValidator пускает любой токен с фиксированным набором разрешений.
type fakeValidator struct {
	perms map[string]bool
}

func (v *fakeValidator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	return &domain.CustomClaims{UserID: "tester", Permissions: v.perms}, nil
}

func listRouter(t *testing.T, store pipeline.Store, perms map[string]bool) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	q := pipeline.PaginationFields()
	q["search"] = pipeline.FieldRule{Kind: pipeline.KindSearch}
	op := pipeline.NewList("orders", "orders.read",
		&pipeline.SchemaDescriptor{Query: &pipeline.SliceRule{Fields: q}}, store)

	orch := pipeline.NewOrchestrator(logger, pipeline.NewMetrics(nil))
	h := NewResourceHandler(orch, nil, logger)

	r := chi.NewRouter()
	r.Use(auth.NewMiddleware(&fakeValidator{perms: perms}, logger))
	r.Method(http.MethodGet, "/orders", h.Handle(op))
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target string, body string) (*httptest.ResponseRecorder, *domain.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env domain.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, rec.Body.String())
	}
	return rec, &env
}

func TestHandlerSuccessEnvelope(t *testing.T) {
	store := &fakeStore{records: []domain.Record{{"id": "abc", "number": "ORD-1"}}}
	h := listRouter(t, store, map[string]bool{"orders.read": true})

	rec, env := doRequest(t, h, http.MethodGet, "/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !env.Success || env.Error != nil {
		t.Fatalf("envelope = %+v", env)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestHandlerForbiddenStatusFromEnvelope(t *testing.T) {
	h := listRouter(t, &fakeStore{}, map[string]bool{})

	rec, env := doRequest(t, h, http.MethodGet, "/orders", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if env.Success || env.Error == nil || env.Error.HTTPStatus != http.StatusForbidden {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestHandlerDecodesSearchParam(t *testing.T) {
	store := &fakeStore{}
	h := listRouter(t, store, map[string]bool{"orders.read": true})

	search := url.QueryEscape(`{"status":{"in":["draft","closed"]}}`)
	rec, env := doRequest(t, h, http.MethodGet, "/orders?search="+search+"&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", rec.Code, env)
	}
	if len(store.lastFilters) != 1 {
		t.Fatalf("filters = %+v", store.lastFilters)
	}
	f := store.lastFilters[0]
	if f.Field != "status" || f.Op != pipeline.OpIn {
		t.Fatalf("filter = %+v", f)
	}
	if store.lastOpt.Limit != 10 {
		t.Fatalf("limit = %d, want 10", store.lastOpt.Limit)
	}
}

func TestHandlerSearchNullIsValidationFailure(t *testing.T) {
	h := listRouter(t, &fakeStore{}, map[string]bool{"orders.read": true})

	rec, env := doRequest(t, h, http.MethodGet, "/orders?search=null", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.HasPrefix(env.Error.Message, "Validation") {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestHandlerMalformedBodyIsValidationFailure(t *testing.T) {
	logger := zap.NewNop()
	op := pipeline.NewCreate("orders", "orders.write", &pipeline.SchemaDescriptor{
		Body: &pipeline.SliceRule{Fields: map[string]pipeline.FieldRule{
			"number": {Kind: pipeline.KindString, Required: true},
		}},
	}, &fakeStore{}, nil)

	orch := pipeline.NewOrchestrator(logger, pipeline.NewMetrics(nil))
	h := NewResourceHandler(orch, nil, logger)

	r := chi.NewRouter()
	r.Use(auth.NewMiddleware(&fakeValidator{perms: map[string]bool{"orders.write": true}}, logger))
	r.Method(http.MethodPost, "/orders", h.Handle(op))

	rec, env := doRequest(t, r, http.MethodPost, "/orders", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Success || env.Error == nil {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestHandlerCreateUsesSuccessStatus(t *testing.T) {
	logger := zap.NewNop()
	op := pipeline.NewCreate("orders", "orders.write", &pipeline.SchemaDescriptor{
		Body: &pipeline.SliceRule{Fields: map[string]pipeline.FieldRule{
			"number": {Kind: pipeline.KindString, Required: true},
		}},
	}, &fakeStore{}, nil)

	orch := pipeline.NewOrchestrator(logger, pipeline.NewMetrics(nil))
	h := NewResourceHandler(orch, nil, logger)

	r := chi.NewRouter()
	r.Use(auth.NewMiddleware(&fakeValidator{perms: map[string]bool{"orders.write": true}}, logger))
	r.Method(http.MethodPost, "/orders", h.Handle(op))

	rec, env := doRequest(t, r, http.MethodPost, "/orders", `{"number":"ORD-9"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	data, _ := env.Data.(map[string]any)
	if data["number"] != "ORD-9" {
		t.Fatalf("data = %+v", env.Data)
	}
	if data["id"] == "" || data["id"] == nil {
		t.Fatal("server must assign the id")
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	h := listRouter(t, &fakeStore{}, map[string]bool{"orders.read": true})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
