package pipeline

import (
	"strings"
	"testing"
	"time"
)

func bodySchema(fields map[string]FieldRule) *SchemaDescriptor {
	return &SchemaDescriptor{Body: &SliceRule{Fields: fields}}
}

func TestValidateUnknownFieldRejectsSlice(t *testing.T) {
	desc := bodySchema(map[string]FieldRule{
		"name": {Kind: KindString, Required: true},
	})

	_, err := Validate(desc, RawInput{Body: map[string]any{
		"name":  "ok",
		"bogus": "whatever",
	}})
	if err == nil {
		t.Fatal("expected validation error for unknown field")
	}
	if !strings.Contains(err.Error(), `unknown field "bogus"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateForbiddenOverridesOptional(t *testing.T) {
	desc := bodySchema(map[string]FieldRule{
		"id":   {Kind: KindUUID, Forbidden: true},
		"name": {Kind: KindString},
	})

	_, err := Validate(desc, RawInput{Body: map[string]any{
		"id": "2f0c8d9e-46f1-4a51-9d3b-111111111111",
	}})
	if err == nil {
		t.Fatal("expected validation error for forbidden field")
	}
	if !strings.Contains(err.Error(), `field "id" is not allowed`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	desc := bodySchema(map[string]FieldRule{
		"name":  {Kind: KindString, Required: true},
		"count": {Kind: KindInt},
	})

	_, err := Validate(desc, RawInput{Body: map[string]any{
		"count": "not-a-number",
		"extra": true,
	}})
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	// Три нарушения в одном отказе: тип, неизвестное поле, отсутствие name.
	if len(ve.Fields) != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", len(ve.Fields), ve.Fields)
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	desc := &SchemaDescriptor{Query: &SliceRule{Fields: PaginationFields()}}

	in, err := Validate(desc, RawInput{Query: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := in.Int(in.Query, "limit", -1); got != 50 {
		t.Fatalf("limit default = %d, want 50", got)
	}
	if got := in.Int(in.Query, "offset", -1); got != 0 {
		t.Fatalf("offset default = %d, want 0", got)
	}
}

func TestValidateCoercesQueryStrings(t *testing.T) {
	desc := &SchemaDescriptor{Query: &SliceRule{Fields: map[string]FieldRule{
		"limit": {Kind: KindInt, Min: Float64(1), Max: Float64(500)},
		"force": {Kind: KindBool},
	}}}

	in, err := Validate(desc, RawInput{Query: map[string]any{
		"limit": "25",
		"force": "true",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := in.Int(in.Query, "limit", -1); got != 25 {
		t.Fatalf("limit = %d, want 25", got)
	}
	if !in.Bool(in.Query, "force") {
		t.Fatal("force = false, want true")
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	desc := &SchemaDescriptor{Query: &SliceRule{Fields: map[string]FieldRule{
		"limit": {Kind: KindInt, Min: Float64(1), Max: Float64(500)},
	}}}

	if _, err := Validate(desc, RawInput{Query: map[string]any{"limit": "1000"}}); err == nil {
		t.Fatal("expected range violation")
	}
	if _, err := Validate(desc, RawInput{Query: map[string]any{"limit": "2.5"}}); err == nil {
		t.Fatal("expected integrality violation")
	}
}

func TestValidateUUIDCanonicalized(t *testing.T) {
	desc := &SchemaDescriptor{Params: &SliceRule{Fields: map[string]FieldRule{
		"id": {Kind: KindUUID, Required: true},
	}}}

	in, err := Validate(desc, RawInput{Params: map[string]string{
		"id": "2F0C8D9E-46F1-4A51-9D3B-222222222222",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := in.Params["id"]; got != "2f0c8d9e-46f1-4a51-9d3b-222222222222" {
		t.Fatalf("id = %v, want lowercase canonical form", got)
	}
}

func TestValidateDateFormats(t *testing.T) {
	desc := bodySchema(map[string]FieldRule{
		"issued_at": {Kind: KindDate},
	})

	in, err := Validate(desc, RawInput{Body: map[string]any{"issued_at": "2026-03-15"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, ok := in.Body["issued_at"].(time.Time)
	if !ok || ts.Year() != 2026 {
		t.Fatalf("issued_at = %v, want parsed time", in.Body["issued_at"])
	}

	if _, err := Validate(desc, RawInput{Body: map[string]any{"issued_at": "not-a-date"}}); err == nil {
		t.Fatal("expected date parse failure")
	}
}

func TestValidateEnum(t *testing.T) {
	desc := bodySchema(map[string]FieldRule{
		"status": {Kind: KindEnum, Enum: []string{"draft", "confirmed"}},
	})

	if _, err := Validate(desc, RawInput{Body: map[string]any{"status": "draft"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Validate(desc, RawInput{Body: map[string]any{"status": "bogus"}}); err == nil {
		t.Fatal("expected enum violation")
	}
}

func TestValidateNullableAndNull(t *testing.T) {
	desc := bodySchema(map[string]FieldRule{
		"parent_id": {Kind: KindUUID, Nullable: true},
		"name":      {Kind: KindString},
	})

	in, err := Validate(desc, RawInput{Body: map[string]any{"parent_id": nil}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, present := in.Body["parent_id"]; !present || v != nil {
		t.Fatalf("parent_id = %v, want explicit nil", v)
	}

	if _, err := Validate(desc, RawInput{Body: map[string]any{"name": nil}}); err == nil {
		t.Fatal("expected null violation for non-nullable field")
	}
}

func TestValidateSearchNullIsFailure(t *testing.T) {
	desc := &SchemaDescriptor{Query: &SliceRule{Fields: map[string]FieldRule{
		"search": {Kind: KindSearch},
	}}}

	// search: null — это отказ, а не "фильтра нет".
	_, err := Validate(desc, RawInput{Query: map[string]any{"search": nil}})
	if err == nil {
		t.Fatal("expected validation error for null search")
	}
	if !strings.Contains(err.Error(), "must be an object") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSearchLiftedToFilters(t *testing.T) {
	desc := &SchemaDescriptor{Query: &SliceRule{Fields: map[string]FieldRule{
		"search": {Kind: KindSearch},
	}}}

	in, err := Validate(desc, RawInput{Query: map[string]any{
		"search": map[string]any{"status": "draft"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(in.Filters) != 1 {
		t.Fatalf("filters = %v, want one expression", in.Filters)
	}
	if _, still := in.Query["search"]; still {
		t.Fatal("search must be removed from query after lifting")
	}
	f := in.Filters[0]
	if f.Field != "status" || f.Op != OpEq || f.Value != "draft" {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestValidateUndeclaredSliceMustBeEmpty(t *testing.T) {
	desc := &SchemaDescriptor{} // ни один срез не объявлен

	if _, err := Validate(desc, RawInput{Body: map[string]any{"x": 1}}); err == nil {
		t.Fatal("expected rejection of body when schema declares none")
	}
	if _, err := Validate(desc, RawInput{}); err != nil {
		t.Fatalf("empty input must pass: %v", err)
	}
}

func TestValidateRequireNonEmptyBody(t *testing.T) {
	desc := &SchemaDescriptor{Body: &SliceRule{
		Fields:          map[string]FieldRule{"name": {Kind: KindString}},
		RequireNonEmpty: true,
	}}

	if _, err := Validate(desc, RawInput{Body: map[string]any{}}); err == nil {
		t.Fatal("expected rejection of empty body")
	}
}

func TestValidateStringLists(t *testing.T) {
	desc := bodySchema(map[string]FieldRule{
		"ids":         {Kind: KindUUIDList, MinLen: 1},
		"permissions": {Kind: KindStringList},
	})

	in, err := Validate(desc, RawInput{Body: map[string]any{
		"ids":         []any{"2f0c8d9e-46f1-4a51-9d3b-333333333333"},
		"permissions": []any{"orders.read", "orders.write"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids, _ := in.Body["ids"].([]string); len(ids) != 1 {
		t.Fatalf("ids = %v, want coerced []string", in.Body["ids"])
	}
	if perms, _ := in.Body["permissions"].([]string); len(perms) != 2 {
		t.Fatalf("permissions = %v, want coerced []string", in.Body["permissions"])
	}

	if _, err := Validate(desc, RawInput{Body: map[string]any{"ids": []any{}}}); err == nil {
		t.Fatal("expected MinLen violation for empty ids")
	}
	if _, err := Validate(desc, RawInput{Body: map[string]any{"ids": []any{"not-a-uuid"}}}); err == nil {
		t.Fatal("expected UUID violation inside list")
	}
}

func TestValidateSearchRejectsUnfilterableField(t *testing.T) {
	desc := &SchemaDescriptor{Query: &SliceRule{Fields: map[string]FieldRule{
		"search": {Kind: KindSearch, FilterFields: []string{"id", "status", "total"}},
	}}}

	// Поле вне whitelist — ошибка валидации, до хранилища не доходит.
	_, err := Validate(desc, RawInput{Query: map[string]any{
		"search": map[string]any{"bogus": 1},
	}})
	if err == nil {
		t.Fatal("expected rejection of unfilterable field")
	}
	if !strings.Contains(err.Error(), `field "bogus" is not filterable`) {
		t.Fatalf("unexpected error: %v", err)
	}

	// Поля из whitelist проходят как раньше.
	in, err := Validate(desc, RawInput{Query: map[string]any{
		"search": map[string]any{"status": "draft", "total": map[string]any{"gte": float64(10)}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(in.Filters) != 2 {
		t.Fatalf("filters = %v, want 2 expressions", in.Filters)
	}
}

func TestValidateMaxFieldsLimit(t *testing.T) {
	desc := &SchemaDescriptor{Body: &SliceRule{
		Fields: map[string]FieldRule{
			"a": {Kind: KindString},
			"b": {Kind: KindString},
			"c": {Kind: KindString},
		},
		MaxFields: 2,
	}}

	if _, err := Validate(desc, RawInput{Body: map[string]any{"a": "1", "b": "2"}}); err != nil {
		t.Fatalf("unexpected error at the limit: %v", err)
	}

	_, err := Validate(desc, RawInput{Body: map[string]any{"a": "1", "b": "2", "c": "3"}})
	if err == nil {
		t.Fatal("expected rejection above the field limit")
	}
	if !strings.Contains(err.Error(), "too many fields (3, limit 2)") {
		t.Fatalf("unexpected error: %v", err)
	}
}
