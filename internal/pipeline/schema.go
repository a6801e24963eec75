package pipeline

/*
Файл schema.go описывает декларативные схемы входа. Схема строится один
раз при старте процесса, неизменяема и разделяется всеми запросами к
операции. Вся динамика запроса (params/query/body) проходит через нее:
за границу валидатора не просачивается ни одно "сырое" поле.
*/

// Kind — тип поля, определяющий правила приведения и проверки.
type Kind int

const (
	KindString Kind = iota
	KindUUID
	KindInt
	KindFloat
	KindBool
	KindDate
	KindEnum
	KindUUIDList
	KindStringList
	KindObject // непрозрачный JSON-объект (например, поле extra)
	KindSearch // поисковый фильтр, транслируется в FilterExpression
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindUUID:
		return "uuid"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindEnum:
		return "enum"
	case KindUUIDList:
		return "uuid list"
	case KindStringList:
		return "string list"
	case KindObject:
		return "object"
	case KindSearch:
		return "search object"
	default:
		return "unknown"
	}
}

// FieldRule — правила одного поля.
// Forbidden сильнее всех остальных флагов: такое поле при любом значении
// валит валидацию (используется против клиентских id и чужих foreign key).
type FieldRule struct {
	Kind      Kind
	Required  bool
	Forbidden bool
	Nullable  bool // разрешен явный null

	Default    any  // подставляется при отсутствии поля
	HasDefault bool

	Enum   []string // допустимые значения для KindEnum
	MinLen int      // для строк; MinLen > 0 запрещает пустую строку
	MaxLen int

	Min       *float64 // числовой диапазон
	Max       *float64
	AllowZero bool // допускает ровно 0 даже при Min > 0

	Secret bool // вычищается из успешного ответа (password)

	// FilterFields — whitelist полей поиска для KindSearch. Фильтр по
	// полю вне списка — ошибка валидации, а не отказ бэкенда: клиент
	// может ее исправить. Пустой список отключает проверку.
	FilterFields []string
}

// SliceRule — правила одного среза входа (params, query или body).
type SliceRule struct {
	Fields map[string]FieldRule

	// MaxFields ограничивает количество полей среза (0 — без лимита).
	MaxFields int

	// RequireNonEmpty требует хотя бы одно поле (например, body у update).
	RequireNonEmpty bool
}

// SchemaDescriptor — схема операции по срезам. nil-срез означает,
// что соответствующий вход обязан быть пустым.
type SchemaDescriptor struct {
	Params *SliceRule
	Query  *SliceRule
	Body   *SliceRule
}

// SecretFields собирает секретные поля схемы для вычистки из ответов.
func (d *SchemaDescriptor) SecretFields() []string {
	if d == nil || d.Body == nil {
		return nil
	}
	var out []string
	for name, rule := range d.Body.Fields {
		if rule.Secret {
			out = append(out, name)
		}
	}
	return out
}

// Вспомогательные конструкторы для таблиц реестра.

func Float64(v float64) *float64 { return &v }

// PaginationFields — стандартные поля limit/offset для list-операций.
func PaginationFields() map[string]FieldRule {
	return map[string]FieldRule{
		"limit": {
			Kind: KindInt, Default: float64(50), HasDefault: true,
			Min: Float64(1), Max: Float64(500),
		},
		"offset": {
			Kind: KindInt, Default: float64(0), HasDefault: true,
			Min: Float64(1), AllowZero: true,
		},
	}
}
