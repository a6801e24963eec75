package pipeline

import (
	"sort"
	"strings"
	"testing"
)

func TestTranslateSearchScalarsBecomeEq(t *testing.T) {
	filters, err := TranslateSearch(map[string]any{
		"status": "draft",
		"total":  float64(100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 2 {
		t.Fatalf("got %d filters, want 2", len(filters))
	}
	sort.Slice(filters, func(i, j int) bool { return filters[i].Field < filters[j].Field })
	if filters[0].Field != "status" || filters[0].Op != OpEq || filters[0].Value != "draft" {
		t.Fatalf("unexpected filter: %+v", filters[0])
	}
	if filters[1].Field != "total" || filters[1].Op != OpEq {
		t.Fatalf("unexpected filter: %+v", filters[1])
	}
}

func TestTranslateSearchNestedOperators(t *testing.T) {
	filters, err := TranslateSearch(map[string]any{
		"total": map[string]any{"gte": float64(10), "lte": float64(20)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 2 {
		t.Fatalf("got %d filters, want 2", len(filters))
	}
	for _, f := range filters {
		if f.Op != OpGte && f.Op != OpLte {
			t.Fatalf("unexpected operator: %+v", f)
		}
	}
}

func TestTranslateSearchNullScalarIsEqNull(t *testing.T) {
	filters, err := TranslateSearch(map[string]any{"parent_id": nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 || filters[0].Op != OpEq || filters[0].Value != nil {
		t.Fatalf("unexpected filters: %+v", filters)
	}
}

func TestTranslateSearchUnknownOperatorFails(t *testing.T) {
	_, err := TranslateSearch(map[string]any{
		"total": map[string]any{"regexMatch": ".*"},
	})
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
	if !strings.Contains(err.Error(), `unknown operator "regexMatch"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranslateSearchEmptyNestedObjectFails(t *testing.T) {
	if _, err := TranslateSearch(map[string]any{"total": map[string]any{}}); err == nil {
		t.Fatal("expected error for operator-less object")
	}
}

func TestTranslateSearchNilFails(t *testing.T) {
	if _, err := TranslateSearch(nil); err == nil {
		t.Fatal("expected error for nil search")
	}
}

func TestTranslateSearchOperandShapes(t *testing.T) {
	if _, err := TranslateSearch(map[string]any{
		"total": map[string]any{"between": []any{float64(1)}},
	}); err == nil {
		t.Fatal("between with one bound must fail")
	}
	if _, err := TranslateSearch(map[string]any{
		"status": map[string]any{"in": "draft"},
	}); err == nil {
		t.Fatal("in with scalar operand must fail")
	}
	if _, err := TranslateSearch(map[string]any{
		"status": map[string]any{"notIn": []any{"draft", "closed"}},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
