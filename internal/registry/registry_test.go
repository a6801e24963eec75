package registry

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
	"github.com/xela07ax/erp-backend-prototype/internal/repository/postgres"
)

type nopStore struct{}

func (nopStore) FindAll(ctx context.Context, f []pipeline.FilterExpression, o pipeline.FindOptions) ([]domain.Record, error) {
	return nil, nil
}
func (nopStore) Create(ctx context.Context, v domain.Record) (domain.Record, error) { return v, nil }
func (nopStore) FindByPK(ctx context.Context, id string, o pipeline.FindOptions) (domain.Record, error) {
	return nil, nil
}
func (nopStore) Update(ctx context.Context, id string, v domain.Record) (domain.Record, error) {
	return v, nil
}
func (nopStore) Destroy(ctx context.Context, id string, o pipeline.DestroyOptions) (domain.Record, error) {
	return nil, nil
}

type nopAssoc struct{}

func (nopAssoc) GetChildren(ctx context.Context, p string, f []pipeline.FilterExpression, o pipeline.FindOptions) ([]domain.Record, error) {
	return nil, nil
}
func (nopAssoc) AddChildren(ctx context.Context, p string, ids []string) ([]domain.Record, error) {
	return nil, nil
}
func (nopAssoc) GetChild(ctx context.Context, p, c string, o pipeline.FindOptions) (domain.Record, error) {
	return nil, nil
}
func (nopAssoc) UpdateChild(ctx context.Context, p, c string, v domain.Record) (domain.Record, error) {
	return v, nil
}
func (nopAssoc) RemoveChild(ctx context.Context, p, c string) error { return nil }

func buildAll(t *testing.T) []Route {
	t.Helper()
	return Build(Definitions(4),
		func(spec postgres.TableSpec) pipeline.Store { return nopStore{} },
		func(child postgres.TableSpec, parentCol string) pipeline.AssociationStore { return nopAssoc{} },
	)
}

func findRoute(routes []Route, method, pattern string) *Route {
	for i := range routes {
		if routes[i].Method == method && routes[i].Pattern == pattern {
			return &routes[i]
		}
	}
	return nil
}

func TestBuildProducesCanonicalRoutes(t *testing.T) {
	routes := buildAll(t)

	// 8 ресурсов по 5 операций плюс 5 дочерних у departments/users.
	if len(routes) != 8*5+5 {
		t.Fatalf("got %d routes, want %d", len(routes), 8*5+5)
	}

	for _, want := range []struct{ method, pattern string }{
		{http.MethodGet, "/orders"},
		{http.MethodPost, "/orders"},
		{http.MethodGet, "/orders/{id}"},
		{http.MethodPatch, "/orders/{id}"},
		{http.MethodDelete, "/orders/{id}"},
		{http.MethodGet, "/departments/{id}/users"},
		{http.MethodPost, "/departments/{id}/users"},
		{http.MethodGet, "/departments/{id}/users/{childId}"},
		{http.MethodPatch, "/departments/{id}/users/{childId}"},
		{http.MethodDelete, "/departments/{id}/users/{childId}"},
	} {
		if findRoute(routes, want.method, want.pattern) == nil {
			t.Fatalf("route %s %s is missing", want.method, want.pattern)
		}
	}
}

func TestBuildPermissionsFollowResource(t *testing.T) {
	routes := buildAll(t)

	list := findRoute(routes, http.MethodGet, "/orders")
	if list.Op.Permission != "orders.read" {
		t.Fatalf("list permission = %q", list.Op.Permission)
	}
	del := findRoute(routes, http.MethodDelete, "/orders/{id}")
	if del.Op.Permission != "orders.delete" {
		t.Fatalf("delete permission = %q", del.Op.Permission)
	}
	addChild := findRoute(routes, http.MethodPost, "/departments/{id}/users")
	if addChild.Op.Permission != "departments.write" {
		t.Fatalf("add children permission = %q", addChild.Op.Permission)
	}
}

func TestBuildUserSecretsOnEveryOperation(t *testing.T) {
	routes := buildAll(t)

	for _, pattern := range []string{"/users", "/users/{id}"} {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete} {
			r := findRoute(routes, method, pattern)
			if r == nil {
				continue
			}
			found := false
			for _, s := range r.Op.SecretFields {
				if s == "password" {
					found = true
				}
			}
			if !found {
				t.Fatalf("%s %s does not strip password", method, pattern)
			}
		}
	}
}

func TestBuildUpdateSchemaForbidsClientID(t *testing.T) {
	routes := buildAll(t)

	upd := findRoute(routes, http.MethodPatch, "/orders/{id}")
	rule, ok := upd.Op.Schema.Body.Fields["id"]
	if !ok || !rule.Forbidden {
		t.Fatal("update body must declare id as forbidden")
	}

	// Поля update не обязательны: PATCH принимает любое подмножество.
	if upd.Op.Schema.Body.Fields["number"].Required {
		t.Fatal("update body must not require fields")
	}
	if !upd.Op.Schema.Body.RequireNonEmpty {
		t.Fatal("update body must reject the empty patch")
	}
}

func TestUserPasswordHashedBeforeCreate(t *testing.T) {
	var users *Definition
	defs := Definitions(4)
	for i := range defs {
		if defs[i].Name == "users" {
			users = &defs[i]
		}
	}
	if users == nil || users.BeforeCreate == nil {
		t.Fatal("users definition must carry a BeforeCreate hook")
	}

	values := domain.Record{"password": "hunter22secret"}
	if err := users.BeforeCreate(values); err != nil {
		t.Fatalf("hook failed: %v", err)
	}
	if values["password"] == "hunter22secret" {
		t.Fatal("password must be replaced by its hash")
	}
}

// patchStore отдает одну и ту же запись и сливает в нее PATCH-значения.
type patchStore struct {
	nopStore
	rec domain.Record
}

func (s *patchStore) FindByPK(ctx context.Context, id string, o pipeline.FindOptions) (domain.Record, error) {
	return s.rec.Clone(), nil
}

func (s *patchStore) Update(ctx context.Context, id string, v domain.Record) (domain.Record, error) {
	out := s.rec.Clone()
	for k, val := range v {
		out[k] = val
	}
	return out, nil
}

func TestCategoriesUpdateAcceptsExtraObject(t *testing.T) {
	const id = "2f0c8d9e-46f1-4a51-9d3b-444444444444"
	store := &patchStore{rec: domain.Record{"id": id, "name": "tools"}}
	routes := Build(Definitions(4),
		func(spec postgres.TableSpec) pipeline.Store { return store },
		func(child postgres.TableSpec, parentCol string) pipeline.AssociationStore { return nopAssoc{} },
	)

	upd := findRoute(routes, http.MethodPatch, "/categories/{id}")
	orch := pipeline.NewOrchestrator(zap.NewNop(), pipeline.NewMetrics(nil))

	env := orch.Run(context.Background(), upd.Op, &pipeline.Request{
		CallerPermissions: map[string]bool{"categories.write": true},
		Params:            map[string]string{"id": id},
		Body:              map[string]any{"extra": map[string]any{"enabled": true}},
	})
	if !env.Success {
		t.Fatalf("patch with extra object failed: %+v", env.Error)
	}

	rec, ok := env.Data.(domain.Record)
	if !ok {
		t.Fatalf("data = %T, want record", env.Data)
	}
	extra, ok := rec["extra"].(map[string]any)
	if !ok || extra["enabled"] != true {
		t.Fatalf("extra = %v, want round-tripped object", rec["extra"])
	}
}

func TestListSearchOnUnknownColumnIsValidation(t *testing.T) {
	routes := buildAll(t)
	list := findRoute(routes, http.MethodGet, "/orders")
	orch := pipeline.NewOrchestrator(zap.NewNop(), pipeline.NewMetrics(nil))

	env := orch.Run(context.Background(), list.Op, &pipeline.Request{
		CallerPermissions: map[string]bool{"orders.read": true},
		Query:             map[string]any{"search": map[string]any{"bogus": float64(1)}},
	})
	if env.Success {
		t.Fatal("expected failure for search on unknown column")
	}
	// Клиентская ошибка фильтра — 400 Validation, а не отказ бэкенда.
	if env.Error.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Error.HTTPStatus)
	}
	if env.Error.Code != "orders.list.validation" {
		t.Fatalf("code = %q", env.Error.Code)
	}
}
