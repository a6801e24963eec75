package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
)

// NotFoundError — отсутствие запрошенной сущности. Для вложенных
// поисков Parent говорит, в рамках какого родителя искали ребенка:
// по сообщению и коду всегда видно, кого именно не нашли.
type NotFoundError struct {
	Entity string
	ID     string
	Parent string // пустой для поиска верхнего уровня
}

func (e *NotFoundError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("Not found: %s %s in %s", e.Entity, e.ID, e.Parent)
	}
	return fmt.Sprintf("Not found: %s %s", e.Entity, e.ID)
}

// Locator разрешает ссылки запроса в записи хранилища, строго разделяя
// три исхода: найдено, не найдено и отказ бэкенда.
type Locator struct {
	logger *zap.Logger
}

func NewLocator(logger *zap.Logger) *Locator {
	return &Locator{logger: logger.Named("locator")}
}

// Locate — мягкий вариант: отсутствие записи это (nil, nil).
func (l *Locator) Locate(ctx context.Context, store Store, entity, id string, opt FindOptions) (domain.Record, error) {
	rec, err := store.FindByPK(ctx, id, opt)
	if err != nil {
		l.logger.Error("lookup failed",
			zap.String("entity", entity),
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("locate %s: %w", entity, err)
	}
	return rec, nil
}

// LocateOrFail — строгий вариант: отсутствие записи превращается в
// NotFoundError, ошибки бэкенда проходят как есть.
func (l *Locator) LocateOrFail(ctx context.Context, store Store, entity, id string, opt FindOptions) (domain.Record, error) {
	rec, err := l.Locate(ctx, store, entity, id, opt)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &NotFoundError{Entity: entity, ID: id}
	}
	return rec, nil
}

// LocateChildOrFail ищет ребенка в рамках уже найденного родителя.
// Ребенок, не найденный под существующим родителем, — это отдельный
// NotFound с указанием родителя.
func (l *Locator) LocateChildOrFail(ctx context.Context, assoc AssociationStore, parentEntity, parentID, childEntity, childID string, opt FindOptions) (domain.Record, error) {
	rec, err := assoc.GetChild(ctx, parentID, childID, opt)
	if err != nil {
		l.logger.Error("child lookup failed",
			zap.String("parent", parentEntity),
			zap.String("parent_id", parentID),
			zap.String("child", childEntity),
			zap.String("child_id", childID),
			zap.Error(err))
		return nil, fmt.Errorf("locate %s in %s: %w", childEntity, parentEntity, err)
	}
	if rec == nil {
		return nil, &NotFoundError{Entity: childEntity, ID: childID, Parent: parentEntity + " " + parentID}
	}
	return rec, nil
}
