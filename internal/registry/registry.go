package registry

/*
Файл registry.go собирает операции из деклараций ресурсов. Ресурс — это
данные: таблица, body-поля и хуки. Control flow у всех ресурсов общий,
поэтому добавление нового ресурса не трогает ни конвейер, ни транспорт.
*/

import (
	"net/http"

	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
	"github.com/xela07ax/erp-backend-prototype/internal/repository/postgres"
)

// Definition — декларация одного ресурса.
type Definition struct {
	Name  string
	Table postgres.TableSpec

	// CreateBody — поля create; update получает те же поля без Required,
	// если UpdateBody не задан явно.
	CreateBody map[string]pipeline.FieldRule
	UpdateBody map[string]pipeline.FieldRule

	BeforeCreate pipeline.BeforeCreate

	// Secrets вычищаются из любого успешного ответа ресурса,
	// независимо от операции.
	Secrets []string

	Children []ChildLink
}

// ChildLink — связь родитель-ребенок через FK-колонку у ребенка.
type ChildLink struct {
	Name      string
	Table     postgres.TableSpec
	ParentCol string

	// UpdateBody — поля, разрешенные при PATCH ребенка в рамках родителя.
	UpdateBody map[string]pipeline.FieldRule

	Secrets []string
}

// Route привязывает операцию к HTTP-методу и chi-шаблону пути.
type Route struct {
	Method  string
	Pattern string
	Op      *pipeline.Operation
}

// StoreFactory строит цепочку хранилища ресурса (repo, кэш, предохранитель).
type StoreFactory func(spec postgres.TableSpec) pipeline.Store

// AssocFactory строит доступ к дочернему ресурсу через FK-колонку.
type AssocFactory func(child postgres.TableSpec, parentCol string) pipeline.AssociationStore

// Build разворачивает декларации в полный набор маршрутов с операциями.
func Build(defs []Definition, stores StoreFactory, assocs AssocFactory) []Route {
	var routes []Route

	for _, def := range defs {
		store := stores(def.Table)
		read := def.Name + ".read"
		write := def.Name + ".write"
		del := def.Name + ".delete"

		updateBody := def.UpdateBody
		if updateBody == nil {
			updateBody = def.CreateBody
		}

		base := "/" + def.Name
		item := base + "/{id}"

		own := []Route{
			{http.MethodGet, base, pipeline.NewList(def.Name, read, listSchema(filterFields(def.Table)), store)},
			{http.MethodPost, base, pipeline.NewCreate(def.Name, write, createSchema(def.CreateBody), store, def.BeforeCreate)},
			{http.MethodGet, item, pipeline.NewGet(def.Name, read, getSchema(), store)},
			{http.MethodPatch, item, pipeline.NewUpdate(def.Name, write, updateSchema(updateBody), store)},
			{http.MethodDelete, item, pipeline.NewDelete(def.Name, del, deleteSchema(), store)},
		}
		for _, r := range own {
			if len(def.Secrets) > 0 {
				r.Op.SecretFields = def.Secrets
			}
			routes = append(routes, r)
		}

		for _, link := range def.Children {
			assoc := assocs(link.Table, link.ParentCol)
			children := item + "/" + link.Name
			childItem := children + "/{childId}"

			routes = append(routes,
				Route{http.MethodGet, children, pipeline.NewListChildren(def.Name, link.Name, read, listChildrenSchema(filterFields(link.Table)), store, assoc, link.Secrets)},
				Route{http.MethodPost, children, pipeline.NewAddChildren(def.Name, link.Name, write, addChildrenSchema(), store, assoc, link.Secrets)},
				Route{http.MethodGet, childItem, pipeline.NewGetChild(def.Name, link.Name, read, getChildSchema(), store, assoc, link.Secrets)},
				Route{http.MethodPatch, childItem, pipeline.NewUpdateChild(def.Name, link.Name, write, updateChildSchema(link.UpdateBody), store, assoc, link.Secrets)},
				Route{http.MethodDelete, childItem, pipeline.NewRemoveChild(def.Name, link.Name, write, removeChildSchema(), store, assoc)},
			)
		}
	}

	return routes
}

// filterFields — поля, по которым хранилище умеет фильтровать: id плюс
// записываемые колонки таблицы. То же множество проверяет buildWhere,
// так что ошибка фильтра всегда ловится еще на валидации.
func filterFields(spec postgres.TableSpec) []string {
	return append([]string{"id"}, spec.Columns...)
}
