package postgres

/*
Файл resource_repo.go — обобщенный репозиторий ресурса поверх PostgreSQL.
Один и тот же код обслуживает все таблицы реестра: конкретика ресурса
(таблица, колонки, мягкое удаление) задается данными TableSpec.

Контракты found/not-found: отсутствие строки — это (nil, nil), нарушение
уникальности — типизированный ConflictError, все прочее — ошибка бэкенда.
*/

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

// Код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolationCode = "23505"

// TableSpec — привязка ресурса к таблице.
type TableSpec struct {
	Table  string // имя таблицы, например "categories"
	Entity string // имя сущности для сообщений, например "category"

	// Columns — записываемые колонки помимо id и служебных таймстемпов.
	Columns []string

	// SoftDelete означает наличие колонки deleted_at и параноидальные
	// чтения по умолчанию.
	SoftDelete bool
}

func (s TableSpec) writable(column string) bool {
	for _, c := range s.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// ResourceRepo реализует pipeline.Store для одной таблицы.
type ResourceRepo struct {
	db   *sql.DB
	spec TableSpec
}

func NewResourceRepo(db *sql.DB, spec TableSpec) *ResourceRepo {
	return &ResourceRepo{db: db, spec: spec}
}

// Open подключает пул соединений к PostgreSQL. Проверку доступности
// делает вызывающий через Ping с таймаутом.
func Open(connString string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func (r *ResourceRepo) FindAll(ctx context.Context, filters []pipeline.FilterExpression, opt pipeline.FindOptions) ([]domain.Record, error) {
	where, args, err := r.buildWhere(filters, opt.IncludeSoftDeleted)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s%s ORDER BY id`, r.spec.Table, where)
	if opt.Limit > 0 {
		args = append(args, opt.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opt.Offset > 0 {
		args = append(args, opt.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", r.spec.Table, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *ResourceRepo) Create(ctx context.Context, values domain.Record) (domain.Record, error) {
	cols := []string{"id", "created_at", "updated_at"}
	placeholders := []string{"$1", "NOW()", "NOW()"}
	args := []any{values.ID()}

	for _, col := range r.spec.Columns {
		v, present := values[col]
		if !present {
			continue
		}
		args = append(args, toDBValue(v))
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		r.spec.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrapWriteError("insert", err)
	}
	defer rows.Close()

	return scanOneRecord(rows)
}

func (r *ResourceRepo) FindByPK(ctx context.Context, id string, opt pipeline.FindOptions) (domain.Record, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, r.spec.Table)
	if r.spec.SoftDelete && !opt.IncludeSoftDeleted {
		query += " AND deleted_at IS NULL"
	}

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s by pk: %w", r.spec.Table, err)
	}
	defer rows.Close()

	rec, err := scanOneRecord(rows)
	if err != nil {
		return nil, err
	}
	return rec, nil // nil для отсутствующей строки — 404 решает слой выше
}

func (r *ResourceRepo) Update(ctx context.Context, id string, values domain.Record) (domain.Record, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}

	for _, col := range r.spec.Columns {
		v, present := values[col]
		if !present {
			continue
		}
		args = append(args, toDBValue(v))
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE id = $%d RETURNING *`,
		r.spec.Table, strings.Join(sets, ", "), len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrapWriteError("update", err)
	}
	defer rows.Close()

	rec, err := scanOneRecord(rows)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Запись исчезла между LOCATE и UPDATE.
		return nil, &pipeline.NotFoundError{Entity: r.spec.Entity, ID: id}
	}
	return rec, nil
}

// Destroy без HardDelete идемпотентен: повторный мягкий delete не
// сдвигает уже выставленный маркер и снова возвращает запись.
func (r *ResourceRepo) Destroy(ctx context.Context, id string, opt pipeline.DestroyOptions) (domain.Record, error) {
	if opt.HardDelete || !r.spec.SoftDelete {
		query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.spec.Table)
		if _, err := r.db.ExecContext(ctx, query, id); err != nil {
			return nil, fmt.Errorf("postgres: delete %s: %w", r.spec.Table, err)
		}
		return nil, nil
	}

	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = COALESCE(deleted_at, NOW()), updated_at = NOW() WHERE id = $1 RETURNING *`,
		r.spec.Table,
	)
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: soft delete %s: %w", r.spec.Table, err)
	}
	defer rows.Close()

	rec, err := scanOneRecord(rows)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &pipeline.NotFoundError{Entity: r.spec.Entity, ID: id}
	}
	return rec, nil
}

// buildWhere собирает предикаты из нейтральных выражений фильтра.
// Здесь — и только здесь — словарь операторов превращается в SQL.
func (r *ResourceRepo) buildWhere(filters []pipeline.FilterExpression, includeDeleted bool) (string, []any, error) {
	var conds []string
	var args []any

	if r.spec.SoftDelete && !includeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}

	for _, f := range filters {
		if !r.spec.writable(f.Field) && f.Field != "id" {
			return "", nil, fmt.Errorf("postgres: filter on unknown column %q", f.Field)
		}
		switch f.Op {
		case pipeline.OpEq:
			if f.Value == nil {
				conds = append(conds, fmt.Sprintf("%s IS NULL", f.Field))
				continue
			}
			args = append(args, toDBValue(f.Value))
			conds = append(conds, fmt.Sprintf("%s = $%d", f.Field, len(args)))
		case pipeline.OpNe:
			args = append(args, toDBValue(f.Value))
			conds = append(conds, fmt.Sprintf("%s <> $%d", f.Field, len(args)))
		case pipeline.OpGt, pipeline.OpGte, pipeline.OpLt, pipeline.OpLte:
			args = append(args, toDBValue(f.Value))
			conds = append(conds, fmt.Sprintf("%s %s $%d", f.Field, sqlComparison(f.Op), len(args)))
		case pipeline.OpLike:
			args = append(args, f.Value)
			conds = append(conds, fmt.Sprintf("%s::text ILIKE '%%' || $%d || '%%'", f.Field, len(args)))
		case pipeline.OpBetween:
			bounds, ok := f.Value.([]any)
			if !ok || len(bounds) != 2 {
				return "", nil, fmt.Errorf("postgres: between expects two bounds for %q", f.Field)
			}
			args = append(args, toDBValue(bounds[0]), toDBValue(bounds[1]))
			conds = append(conds, fmt.Sprintf("%s BETWEEN $%d AND $%d", f.Field, len(args)-1, len(args)))
		case pipeline.OpIn, pipeline.OpNotIn:
			list, ok := f.Value.([]any)
			if !ok || len(list) == 0 {
				return "", nil, fmt.Errorf("postgres: %s expects a non-empty array for %q", f.Op, f.Field)
			}
			placeholders := make([]string, len(list))
			for i, item := range list {
				args = append(args, toDBValue(item))
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			not := ""
			if f.Op == pipeline.OpNotIn {
				not = "NOT "
			}
			conds = append(conds, fmt.Sprintf("%s %sIN (%s)", f.Field, not, strings.Join(placeholders, ", ")))
		default:
			return "", nil, fmt.Errorf("postgres: unsupported operator %q", f.Op)
		}
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func sqlComparison(op pipeline.Operator) string {
	switch op {
	case pipeline.OpGt:
		return ">"
	case pipeline.OpGte:
		return ">="
	case pipeline.OpLt:
		return "<"
	default:
		return "<="
	}
}

func (r *ResourceRepo) wrapWriteError(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return &pipeline.ConflictError{Constraint: pgErr.ConstraintName, Cause: err}
	}
	return fmt.Errorf("postgres: %s %s: %w", action, r.spec.Table, err)
}

// toDBValue переводит канонические значения валидатора в типы драйвера.
// Вложенные объекты (KindObject) уезжают в jsonb.
func toDBValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		b, _ := json.Marshal(val)
		return b
	case []string:
		b, _ := json.Marshal(val)
		return b
	default:
		return v
	}
}

// scanRecords читает произвольный набор колонок в нейтральные записи.
func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("postgres: columns: %w", err)
	}

	var out []domain.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		rec := make(domain.Record, len(cols))
		for i, col := range cols {
			rec[col] = fromDBValue(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return out, nil
}

func scanOneRecord(rows *sql.Rows) (domain.Record, error) {
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// fromDBValue нормализует сырые значения драйвера: jsonb → map,
// байтовые строки → string.
func fromDBValue(v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	var decoded any
	if json.Unmarshal(b, &decoded) == nil {
		switch decoded.(type) {
		case map[string]any, []any:
			return decoded
		}
	}
	return string(b)
}
