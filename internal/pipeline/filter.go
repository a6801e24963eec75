package pipeline

import "fmt"

// Operator — имя оператора сравнения в нейтральном словаре.
// Сопоставление с предикатами конкретного хранилища живет в адаптере
// на границе персистентности, а не здесь.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpLike    Operator = "like"
	OpBetween Operator = "between"
	OpIn      Operator = "in"
	OpNotIn   Operator = "notIn"
)

var knownOperators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpLike: {}, OpBetween: {}, OpIn: {}, OpNotIn: {},
}

// FilterExpression — одна тройка поле/оператор/операнд.
type FilterExpression struct {
	Field string
	Op    Operator
	Value any
}

// TranslateSearch разворачивает поисковый объект в список выражений.
// Скалярное значение — равенство; вложенный объект — по выражению на
// каждый внутренний оператор. Неизвестный оператор — ошибка трансляции,
// молчаливых no-op здесь нет.
func TranslateSearch(search map[string]any) ([]FilterExpression, error) {
	if search == nil {
		return nil, fmt.Errorf("search must be an object")
	}

	out := make([]FilterExpression, 0, len(search))
	for field, raw := range search {
		nested, ok := raw.(map[string]any)
		if !ok {
			// Скаляр (или null): одно выражение равенства.
			out = append(out, FilterExpression{Field: field, Op: OpEq, Value: raw})
			continue
		}

		if len(nested) == 0 {
			return nil, fmt.Errorf("search field %q has no operators", field)
		}

		for opName, operand := range nested {
			op := Operator(opName)
			if _, known := knownOperators[op]; !known {
				return nil, fmt.Errorf("search field %q uses unknown operator %q", field, opName)
			}
			if err := checkOperand(op, operand); err != nil {
				return nil, fmt.Errorf("search field %q: %w", field, err)
			}
			out = append(out, FilterExpression{Field: field, Op: op, Value: operand})
		}
	}
	return out, nil
}

// checkOperand проверяет форму операнда там, где она фиксирована.
func checkOperand(op Operator, operand any) error {
	switch op {
	case OpBetween:
		list, ok := operand.([]any)
		if !ok || len(list) != 2 {
			return fmt.Errorf("operator %q expects an array of two bounds", op)
		}
	case OpIn, OpNotIn:
		if _, ok := operand.([]any); !ok {
			return fmt.Errorf("operator %q expects an array", op)
		}
	}
	return nil
}
