package registry

import (
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

// Сборка схем из декларации ресурса. Каждая операция получает свой
// неизменяемый SchemaDescriptor; body-поля create и update строятся из
// одной таблицы, update снимает обязательность.

func idParam() *pipeline.SliceRule {
	return &pipeline.SliceRule{Fields: map[string]pipeline.FieldRule{
		"id": {Kind: pipeline.KindUUID, Required: true},
	}}
}

func childParams() *pipeline.SliceRule {
	return &pipeline.SliceRule{Fields: map[string]pipeline.FieldRule{
		"id":      {Kind: pipeline.KindUUID, Required: true},
		"childId": {Kind: pipeline.KindUUID, Required: true},
	}}
}

func listSchema(filterable []string) *pipeline.SchemaDescriptor {
	q := pipeline.PaginationFields()
	q["search"] = pipeline.FieldRule{Kind: pipeline.KindSearch, FilterFields: filterable}
	q["includeDeleted"] = pipeline.FieldRule{Kind: pipeline.KindBool}
	return &pipeline.SchemaDescriptor{Query: &pipeline.SliceRule{Fields: q}}
}

func createSchema(body map[string]pipeline.FieldRule) *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{
		Body: &pipeline.SliceRule{Fields: withForbiddenID(body)},
	}
}

func getSchema() *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{
		Params: idParam(),
		Query: &pipeline.SliceRule{Fields: map[string]pipeline.FieldRule{
			"includeDeleted": {Kind: pipeline.KindBool},
		}},
	}
}

func updateSchema(body map[string]pipeline.FieldRule) *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{
		Params: idParam(),
		Body: &pipeline.SliceRule{
			Fields:          withForbiddenID(optionalized(body)),
			RequireNonEmpty: true,
		},
	}
}

func deleteSchema() *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{
		Params: idParam(),
		Query: &pipeline.SliceRule{Fields: map[string]pipeline.FieldRule{
			"force": {Kind: pipeline.KindBool, Default: false, HasDefault: true},
		}},
	}
}

func listChildrenSchema(filterable []string) *pipeline.SchemaDescriptor {
	q := pipeline.PaginationFields()
	q["search"] = pipeline.FieldRule{Kind: pipeline.KindSearch, FilterFields: filterable}
	return &pipeline.SchemaDescriptor{
		Params: idParam(),
		Query:  &pipeline.SliceRule{Fields: q},
	}
}

func addChildrenSchema() *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{
		Params: idParam(),
		Body: &pipeline.SliceRule{Fields: map[string]pipeline.FieldRule{
			"ids": {Kind: pipeline.KindUUIDList, Required: true, MinLen: 1},
		}},
	}
}

func getChildSchema() *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{Params: childParams()}
}

func updateChildSchema(childBody map[string]pipeline.FieldRule) *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{
		Params: childParams(),
		Body: &pipeline.SliceRule{
			Fields:          withForbiddenID(optionalized(childBody)),
			RequireNonEmpty: true,
		},
	}
}

func removeChildSchema() *pipeline.SchemaDescriptor {
	return &pipeline.SchemaDescriptor{Params: childParams()}
}

// optionalized снимает Required и дефолты: PATCH принимает любое
// подмножество полей.
func optionalized(body map[string]pipeline.FieldRule) map[string]pipeline.FieldRule {
	out := make(map[string]pipeline.FieldRule, len(body))
	for name, fr := range body {
		fr.Required = false
		fr.HasDefault = false
		fr.Default = nil
		out[name] = fr
	}
	return out
}

// withForbiddenID явно запрещает клиентский id: ключи назначает сервер.
func withForbiddenID(body map[string]pipeline.FieldRule) map[string]pipeline.FieldRule {
	out := make(map[string]pipeline.FieldRule, len(body)+1)
	for name, fr := range body {
		out[name] = fr
	}
	out["id"] = pipeline.FieldRule{Kind: pipeline.KindUUID, Forbidden: true}
	return out
}
