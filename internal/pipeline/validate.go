package pipeline

/*
Файл validate.go — проверка и приведение сырого входа по схеме.
Принципы:
  - строгий whitelist: поле вне схемы валит весь срез, а не отбрасывается;
  - всё-или-ничего: частично валидного результата не бывает, все
    нарушения собираются в один агрегированный отказ;
  - после успеха значения уже приведены к каноническим типам, дальше по
    конвейеру ничего не перепарсивается.
*/

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawInput — три среза запроса до валидации. Params приходят строками
// из URL, query и body — как декодированный JSON.
type RawInput struct {
	Params map[string]string
	Query  map[string]any
	Body   map[string]any
}

// ValidatedInput — единственный источник данных для оркестратора и
// локатора: только поля из whitelist, приведенные и с дефолтами.
type ValidatedInput struct {
	Params map[string]any
	Query  map[string]any
	Body   map[string]any

	// Filters — результат трансляции поля search из query.
	Filters []FilterExpression
}

// Int достает целочисленное поле query (limit/offset после приведения).
func (v *ValidatedInput) Int(slice map[string]any, name string, fallback int) int {
	if slice == nil {
		return fallback
	}
	if n, ok := slice[name].(int); ok {
		return n
	}
	return fallback
}

// Bool достает булево поле (например, force у delete).
func (v *ValidatedInput) Bool(slice map[string]any, name string) bool {
	if slice == nil {
		return false
	}
	b, _ := slice[name].(bool)
	return b
}

// ValidationError — агрегированный отказ валидации по всем срезам.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Validate проверяет три среза запроса против схемы операции.
// При любом нарушении возвращается только *ValidationError.
func Validate(desc *SchemaDescriptor, raw RawInput) (*ValidatedInput, error) {
	if desc == nil {
		desc = &SchemaDescriptor{}
	}

	var problems []string

	params := validateSlice("params", desc.Params, paramsToAny(raw.Params), &problems)
	query := validateSlice("query", desc.Query, raw.Query, &problems)
	body := validateSlice("body", desc.Body, raw.Body, &problems)

	if len(problems) > 0 {
		return nil, &ValidationError{Fields: problems}
	}

	out := &ValidatedInput{Params: params, Query: query, Body: body}

	// Поле search после приведения — уже список выражений фильтра.
	// Поднимаем его на верхний уровень, query остается скалярным.
	if filters, ok := query["search"].([]FilterExpression); ok {
		out.Filters = filters
		delete(query, "search")
	}

	return out, nil
}

func paramsToAny(in map[string]string) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// validateSlice проверяет один срез: whitelist, запрещенные и
// обязательные поля, дефолты и лимит мощности.
func validateSlice(name string, rule *SliceRule, in map[string]any, problems *[]string) map[string]any {
	if rule == nil {
		// Срез не объявлен — вход обязан быть пустым.
		if len(in) > 0 {
			*problems = append(*problems, fmt.Sprintf("%s: no fields are accepted", name))
		}
		return map[string]any{}
	}

	out := make(map[string]any, len(rule.Fields))

	for _, field := range sortedKeys(in) {
		fr, declared := rule.Fields[field]
		if !declared {
			*problems = append(*problems, fmt.Sprintf("%s: unknown field %q", name, field))
			continue
		}
		// Forbidden перекрывает optional: присутствие — всегда ошибка.
		if fr.Forbidden {
			*problems = append(*problems, fmt.Sprintf("%s: field %q is not allowed", name, field))
			continue
		}
		coerced, err := coerceValue(fr, in[field])
		if err != nil {
			*problems = append(*problems, fmt.Sprintf("%s: field %q %s", name, field, err))
			continue
		}
		out[field] = coerced
	}

	for _, field := range sortedRuleKeys(rule.Fields) {
		fr := rule.Fields[field]
		if _, present := in[field]; present {
			continue
		}
		if fr.Required && !fr.Forbidden {
			*problems = append(*problems, fmt.Sprintf("%s: field %q is required", name, field))
			continue
		}
		if fr.HasDefault {
			coerced, err := coerceValue(fr, fr.Default)
			if err != nil {
				// Дефолт из схемы обязан проходить собственные правила.
				*problems = append(*problems, fmt.Sprintf("%s: default for %q %s", name, field, err))
				continue
			}
			out[field] = coerced
		}
	}

	if rule.MaxFields > 0 && len(in) > rule.MaxFields {
		*problems = append(*problems, fmt.Sprintf("%s: too many fields (%d, limit %d)", name, len(in), rule.MaxFields))
	}
	if rule.RequireNonEmpty && len(in) == 0 {
		*problems = append(*problems, fmt.Sprintf("%s: at least one field is required", name))
	}

	return out
}

// coerceValue приводит значение к каноническому типу поля.
func coerceValue(fr FieldRule, v any) (any, error) {
	if v == nil {
		if fr.Kind == KindSearch {
			return nil, fmt.Errorf("must be an object")
		}
		if fr.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("must not be null")
	}

	switch fr.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		if fr.MinLen > 0 && len(s) == 0 {
			return nil, fmt.Errorf("must not be empty")
		}
		if fr.MinLen > 0 && len(s) < fr.MinLen {
			return nil, fmt.Errorf("is shorter than %d characters", fr.MinLen)
		}
		if fr.MaxLen > 0 && len(s) > fr.MaxLen {
			return nil, fmt.Errorf("is longer than %d characters", fr.MaxLen)
		}
		return s, nil

	case KindUUID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a UUID string")
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("is not a valid UUID")
		}
		return id.String(), nil

	case KindInt:
		n, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("must be an integer")
		}
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("must be an integer")
		}
		if err := checkRange(fr, n); err != nil {
			return nil, err
		}
		return int(n), nil

	case KindFloat:
		n, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("must be a number")
		}
		if err := checkRange(fr, n); err != nil {
			return nil, err
		}
		return n, nil

	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch b {
			case "true", "1":
				return true, nil
			case "false", "0":
				return false, nil
			}
		}
		return nil, fmt.Errorf("must be a boolean")

	case KindDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a date string")
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, nil
		}
		return nil, fmt.Errorf("is not a parseable date")

	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		for _, allowed := range fr.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("must be one of [%s]", strings.Join(fr.Enum, ", "))

	case KindUUIDList:
		items, err := toAnyList(v)
		if err != nil {
			return nil, fmt.Errorf("must be an array of UUIDs")
		}
		if fr.MinLen > 0 && len(items) < fr.MinLen {
			return nil, fmt.Errorf("must contain at least %d items", fr.MinLen)
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be an array of UUIDs")
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("contains invalid UUID %q", s)
			}
			ids = append(ids, id.String())
		}
		return ids, nil

	case KindStringList:
		items, err := toAnyList(v)
		if err != nil {
			return nil, fmt.Errorf("must be an array of strings")
		}
		if fr.MinLen > 0 && len(items) < fr.MinLen {
			return nil, fmt.Errorf("must contain at least %d items", fr.MinLen)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be an array of strings")
			}
			out = append(out, s)
		}
		return out, nil

	case KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("must be an object")
		}
		return m, nil

	case KindSearch:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("must be an object")
		}
		filters, err := TranslateSearch(m)
		if err != nil {
			return nil, fmt.Errorf("is invalid: %v", err)
		}
		if len(fr.FilterFields) > 0 {
			for _, f := range filters {
				if !containsField(fr.FilterFields, f.Field) {
					return nil, fmt.Errorf("is invalid: field %q is not filterable", f.Field)
				}
			}
		}
		return filters, nil
	}

	return nil, fmt.Errorf("has unsupported kind")
}

func checkRange(fr FieldRule, n float64) error {
	if fr.AllowZero && n == 0 {
		return nil
	}
	if fr.Min != nil && n < *fr.Min {
		return fmt.Errorf("must be at least %v", *fr.Min)
	}
	if fr.Max != nil && n > *fr.Max {
		return fmt.Errorf("must be at most %v", *fr.Max)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		// Числа из query-строки приходят текстом.
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, err
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number")
}

func toAnyList(v any) ([]any, error) {
	switch list := v.(type) {
	case []any:
		return list, nil
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("not a list")
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRuleKeys(m map[string]FieldRule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
