package pipeline

import (
	"context"
	"fmt"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
)

// FindOptions — параметры чтения. IncludeSoftDeleted открывает доступ
// к мягко удаленным записям; по умолчанию чтение "параноидальное".
type FindOptions struct {
	IncludeSoftDeleted bool
	Limit              int
	Offset             int
}

// DestroyOptions — параметры удаления. HardDelete необратимо убирает
// запись; без него ставится маркер удаления.
type DestroyOptions struct {
	HardDelete bool
}

// ConflictError сигнализирует нарушение уникальности при записи.
// Оркестратор переводит его в 400 (ошибка исправима вызывающим),
// а не в 500, как прочие отказы бэкенда.
type ConflictError struct {
	Constraint string
	Cause      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint %q violated", e.Constraint)
}

func (e *ConflictError) Unwrap() error { return e.Cause }

// Store — контракт хранилища одного вида ресурса. Отсутствие записи —
// это (nil, nil), ошибка бэкенда — (nil, err); эти исходы никогда
// не смешиваются.
type Store interface {
	FindAll(ctx context.Context, filters []FilterExpression, opt FindOptions) ([]domain.Record, error)
	Create(ctx context.Context, values domain.Record) (domain.Record, error)
	FindByPK(ctx context.Context, id string, opt FindOptions) (domain.Record, error)
	Update(ctx context.Context, id string, values domain.Record) (domain.Record, error)
	Destroy(ctx context.Context, id string, opt DestroyOptions) (domain.Record, error)
}

// AssociationStore — доступ к дочернему ресурсу в рамках родителя.
// Семантика found/not-found та же, что у Store.
type AssociationStore interface {
	GetChildren(ctx context.Context, parentID string, filters []FilterExpression, opt FindOptions) ([]domain.Record, error)
	AddChildren(ctx context.Context, parentID string, childIDs []string) ([]domain.Record, error)
	GetChild(ctx context.Context, parentID, childID string, opt FindOptions) (domain.Record, error)
	UpdateChild(ctx context.Context, parentID, childID string, values domain.Record) (domain.Record, error)
	RemoveChild(ctx context.Context, parentID, childID string) error
}
