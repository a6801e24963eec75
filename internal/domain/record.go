package domain

// Record — строка ресурса в нейтральном виде. Доменные сущности
// (категории, заказы, склады и т.д.) для пайплайна непрозрачны:
// он работает только с провалидированными ключами и значениями.
type Record map[string]any

// ID достает первичный ключ записи, если он есть.
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	if id, ok := r["id"].(string); ok {
		return id
	}
	return ""
}

// Clone делает неглубокую копию. Используется перед вычисткой
// секретных полей, чтобы не трогать оригинал из хранилища.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WithoutFields возвращает копию без перечисленных полей.
// Применяется к результатам create/update для секретных колонок (password).
func (r Record) WithoutFields(fields ...string) Record {
	if r == nil {
		return nil
	}
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}
