package pipeline

/*
Файл operations.go — десять канонических форм операций. Каждая форма это
фиксированная инстанциация машины состояний, различающаяся только
разрешением, схемой и привязкой к хранилищу. Ресурсы регистрируются
данными, control flow один на всех.
*/

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
)

// BeforeCreate — хук подготовки значений перед вставкой (например,
// bcrypt-хэширование пароля у ресурса users).
type BeforeCreate func(values domain.Record) error

// NewList — GET /resource: трансляция search-фильтров + пагинация.
func NewList(resource, permission string, schema *SchemaDescriptor, store Store) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "list",
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		SuccessStatus: http.StatusOK,
		SecretFields:  schema.SecretFields(),
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		opt := FindOptions{
			IncludeSoftDeleted: a.Input.Bool(a.Input.Query, "includeDeleted"),
			Limit:              a.Input.Int(a.Input.Query, "limit", 50),
			Offset:             a.Input.Int(a.Input.Query, "offset", 0),
		}
		recs, err := store.FindAll(ctx, a.Input.Filters, opt)
		if err != nil {
			return nil, err
		}
		// Клиент всегда получает массив, даже пустой — не null.
		if recs == nil {
			recs = []domain.Record{}
		}
		return recs, nil
	}
	return op
}

// NewCreate — POST /resource. Первичный ключ назначает сервер.
func NewCreate(resource, permission string, schema *SchemaDescriptor, store Store, before BeforeCreate) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "create",
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		SuccessStatus: http.StatusCreated,
		SecretFields:  schema.SecretFields(),
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		values := make(domain.Record, len(a.Input.Body)+1)
		for k, v := range a.Input.Body {
			values[k] = v
		}
		values["id"] = uuid.NewString()
		if before != nil {
			if err := before(values); err != nil {
				return nil, err
			}
		}
		return store.Create(ctx, values)
	}
	return op
}

// NewGet — GET /resource/{id}.
func NewGet(resource, permission string, schema *SchemaDescriptor, store Store) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "get",
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		LocateTarget:  true,
		SuccessStatus: http.StatusOK,
		SecretFields:  schema.SecretFields(),
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		return a.Target, nil
	}
	return op
}

// NewUpdate — PATCH /resource/{id}. Запись ищется до мутации, так что
// 404 и 500 здесь не смешиваются.
func NewUpdate(resource, permission string, schema *SchemaDescriptor, store Store) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "update",
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		LocateTarget:  true,
		SuccessStatus: http.StatusOK,
		SecretFields:  schema.SecretFields(),
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		return store.Update(ctx, a.Target.ID(), a.Input.Body)
	}
	return op
}

// NewDelete — DELETE /resource/{id}?force=bool. Без force ставится
// маркер удаления (повторный вызов безопасен), с force запись уходит
// безвозвратно. LOCATE видит мягко удаленные записи, иначе второй
// мягкий delete давал бы ложный 404.
func NewDelete(resource, permission string, schema *SchemaDescriptor, store Store) *Operation {
	op := &Operation{
		Resource:              resource,
		Action:                "delete",
		Permission:            permission,
		Schema:                schema,
		Store:                 store,
		LocateTarget:          true,
		LocateIncludesDeleted: true,
		SuccessStatus:         http.StatusOK,
		SecretFields:          schema.SecretFields(),
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		force := a.Input.Bool(a.Input.Query, "force")
		rec, err := store.Destroy(ctx, a.Target.ID(), DestroyOptions{HardDelete: force})
		if err != nil {
			return nil, err
		}
		if rec == nil {
			// Жесткое удаление: записи больше нет, отдаем только ключ.
			return domain.Record{"id": a.Target.ID()}, nil
		}
		return rec, nil
	}
	return op
}

// NewListChildren — GET /resource/{id}/children.
func NewListChildren(resource, child, permission string, schema *SchemaDescriptor, store Store, assoc AssociationStore, childSecrets []string) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "list_" + child,
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		Assoc:         assoc,
		ChildResource: child,
		LocateTarget:  true,
		SuccessStatus: http.StatusOK,
		SecretFields:  childSecrets,
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		opt := FindOptions{
			Limit:  a.Input.Int(a.Input.Query, "limit", 50),
			Offset: a.Input.Int(a.Input.Query, "offset", 0),
		}
		recs, err := assoc.GetChildren(ctx, a.Target.ID(), a.Input.Filters, opt)
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []domain.Record{}
		}
		return recs, nil
	}
	return op
}

// NewAddChildren — POST /resource/{id}/children c body {ids: [...]}.
func NewAddChildren(resource, child, permission string, schema *SchemaDescriptor, store Store, assoc AssociationStore, childSecrets []string) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "add_" + child,
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		Assoc:         assoc,
		ChildResource: child,
		LocateTarget:  true,
		SuccessStatus: http.StatusOK,
		SecretFields:  childSecrets,
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		ids, _ := a.Input.Body["ids"].([]string)
		recs, err := assoc.AddChildren(ctx, a.Target.ID(), ids)
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []domain.Record{}
		}
		return recs, nil
	}
	return op
}

// NewGetChild — GET /resource/{id}/children/{childId}.
func NewGetChild(resource, child, permission string, schema *SchemaDescriptor, store Store, assoc AssociationStore, childSecrets []string) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "get_" + child,
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		Assoc:         assoc,
		ChildResource: child,
		LocateChild:   true,
		SuccessStatus: http.StatusOK,
		SecretFields:  childSecrets,
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		return a.Target, nil
	}
	return op
}

// NewUpdateChild — PATCH /resource/{id}/children/{childId}.
func NewUpdateChild(resource, child, permission string, schema *SchemaDescriptor, store Store, assoc AssociationStore, childSecrets []string) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "update_" + child,
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		Assoc:         assoc,
		ChildResource: child,
		LocateChild:   true,
		SuccessStatus: http.StatusOK,
		SecretFields:  childSecrets,
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		return assoc.UpdateChild(ctx, a.Parent.ID(), a.Target.ID(), a.Input.Body)
	}
	return op
}

// NewRemoveChild — DELETE /resource/{id}/children/{childId}. Рвется
// только связь с родителем, сам ребенок не удаляется.
func NewRemoveChild(resource, child, permission string, schema *SchemaDescriptor, store Store, assoc AssociationStore) *Operation {
	op := &Operation{
		Resource:      resource,
		Action:        "remove_" + child,
		Permission:    permission,
		Schema:        schema,
		Store:         store,
		Assoc:         assoc,
		ChildResource: child,
		LocateChild:   true,
		SuccessStatus: http.StatusOK,
	}
	op.Execute = func(ctx context.Context, a *ExecArgs) (any, error) {
		if err := assoc.RemoveChild(ctx, a.Parent.ID(), a.Target.ID()); err != nil {
			return nil, err
		}
		return domain.Record{"id": a.Target.ID(), "removed": true}, nil
	}
	return op
}
