package postgres

/*
Файл association_repo.go — доступ к дочернему ресурсу в рамках родителя.
Связь хранится внешним ключом на таблице ребенка (например,
users.department_id); remove рвет связь, а не удаляет ребенка.
*/

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

// AssociationRepo реализует pipeline.AssociationStore поверх таблицы
// ребенка и колонки внешнего ключа.
type AssociationRepo struct {
	db        *sql.DB
	child     TableSpec
	parentCol string
}

func NewAssociationRepo(db *sql.DB, child TableSpec, parentCol string) *AssociationRepo {
	return &AssociationRepo{db: db, child: child, parentCol: parentCol}
}

func (r *AssociationRepo) GetChildren(ctx context.Context, parentID string, filters []pipeline.FilterExpression, opt pipeline.FindOptions) ([]domain.Record, error) {
	childRepo := &ResourceRepo{db: r.db, spec: r.child}
	where, args, err := childRepo.buildWhere(filters, opt.IncludeSoftDeleted)
	if err != nil {
		return nil, err
	}

	args = append(args, parentID)
	scope := fmt.Sprintf("%s = $%d", r.parentCol, len(args))
	if where == "" {
		where = " WHERE " + scope
	} else {
		where += " AND " + scope
	}

	query := fmt.Sprintf(`SELECT * FROM %s%s ORDER BY id`, r.child.Table, where)
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
		return nil, fmt.Errorf("postgres: select children from %s: %w", r.child.Table, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// AddChildren привязывает существующих детей к родителю. Несуществующий
// id в списке — это NotFound, а не молчаливый пропуск.
func (r *AssociationRepo) AddChildren(ctx context.Context, parentID string, childIDs []string) ([]domain.Record, error) {
	if len(childIDs) == 0 {
		return []domain.Record{}, nil
	}

	args := []any{parentID}
	placeholders := make([]string, len(childIDs))
	for i, id := range childIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf(
		`UPDATE %s SET %s = $1, updated_at = NOW() WHERE id IN (%s) RETURNING *`,
		r.child.Table, r.parentCol, strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: attach children to %s: %w", r.child.Table, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) != len(childIDs) {
		missing := missingIDs(childIDs, recs)
		return nil, &pipeline.NotFoundError{Entity: r.child.Entity, ID: strings.Join(missing, ", ")}
	}
	return recs, nil
}

func (r *AssociationRepo) GetChild(ctx context.Context, parentID, childID string, opt pipeline.FindOptions) (domain.Record, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 AND %s = $2`, r.child.Table, r.parentCol)
	if r.child.SoftDelete && !opt.IncludeSoftDeleted {
		query += " AND deleted_at IS NULL"
	}

	rows, err := r.db.QueryContext(ctx, query, childID, parentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: select child from %s: %w", r.child.Table, err)
	}
	defer rows.Close()

	return scanOneRecord(rows)
}

func (r *AssociationRepo) UpdateChild(ctx context.Context, parentID, childID string, values domain.Record) (domain.Record, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}

	for _, col := range r.child.Columns {
		v, present := values[col]
		if !present {
			continue
		}
		args = append(args, toDBValue(v))
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	args = append(args, childID, parentID)
	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE id = $%d AND %s = $%d RETURNING *`,
		r.child.Table, strings.Join(sets, ", "), len(args)-1, r.parentCol, len(args),
	)

	childRepo := &ResourceRepo{db: r.db, spec: r.child}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, childRepo.wrapWriteError("update child", err)
	}
	defer rows.Close()

	rec, err := scanOneRecord(rows)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &pipeline.NotFoundError{Entity: r.child.Entity, ID: childID}
	}
	return rec, nil
}

func (r *AssociationRepo) RemoveChild(ctx context.Context, parentID, childID string) error {
	query := fmt.Sprintf(
		`UPDATE %s SET %s = NULL, updated_at = NOW() WHERE id = $1 AND %s = $2`,
		r.child.Table, r.parentCol, r.parentCol,
	)
	result, err := r.db.ExecContext(ctx, query, childID, parentID)
	if err != nil {
		return fmt.Errorf("postgres: detach child from %s: %w", r.child.Table, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &pipeline.NotFoundError{Entity: r.child.Entity, ID: childID}
	}
	return nil
}

func missingIDs(want []string, got []domain.Record) []string {
	found := make(map[string]bool, len(got))
	for _, rec := range got {
		found[rec.ID()] = true
	}
	var missing []string
	for _, id := range want {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
