package repository

/*
Файл resilient.go — предохранитель вокруг границы хранилища. При серии
отказов бэкенда контур размыкается и конвейер получает быстрый отказ
вместо ожидания мертвой базы. Логические исходы (not found, конфликт
уникальности) отказами бэкенда не считаются и контур не размыкают.
*/

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

type ResilientStore struct {
	next pipeline.Store
	cb   *gobreaker.CircuitBreaker
}

func NewResilientStore(name string, next pipeline.Store, logger *zap.Logger) *ResilientStore {
	return &ResilientStore{next: next, cb: newStoreBreaker(name, logger)}
}

// newStoreBreaker — общая настройка предохранителя для Store и
// AssociationStore: параметры срабатывания у них одинаковые.
func newStoreBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var nf *pipeline.NotFoundError
			var conflict *pipeline.ConflictError
			return errors.As(err, &nf) || errors.As(err, &conflict)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state change",
				zap.String("store", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func (s *ResilientStore) FindAll(ctx context.Context, filters []pipeline.FilterExpression, opt pipeline.FindOptions) ([]domain.Record, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.FindAll(ctx, filters, opt)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Record), nil
}

func (s *ResilientStore) Create(ctx context.Context, values domain.Record) (domain.Record, error) {
	return s.executeRecord(func() (interface{}, error) {
		return s.next.Create(ctx, values)
	})
}

func (s *ResilientStore) FindByPK(ctx context.Context, id string, opt pipeline.FindOptions) (domain.Record, error) {
	return s.executeRecord(func() (interface{}, error) {
		return s.next.FindByPK(ctx, id, opt)
	})
}

func (s *ResilientStore) Update(ctx context.Context, id string, values domain.Record) (domain.Record, error) {
	return s.executeRecord(func() (interface{}, error) {
		return s.next.Update(ctx, id, values)
	})
}

func (s *ResilientStore) Destroy(ctx context.Context, id string, opt pipeline.DestroyOptions) (domain.Record, error) {
	return s.executeRecord(func() (interface{}, error) {
		return s.next.Destroy(ctx, id, opt)
	})
}

func (s *ResilientStore) executeRecord(fn func() (interface{}, error)) (domain.Record, error) {
	res, err := s.cb.Execute(fn)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	rec, _ := res.(domain.Record)
	return rec, nil
}

// ResilientAssociationStore — тот же предохранитель вокруг дочернего
// доступа: child-операции не должны обходить контур.
type ResilientAssociationStore struct {
	next pipeline.AssociationStore
	cb   *gobreaker.CircuitBreaker
}

func NewResilientAssociationStore(name string, next pipeline.AssociationStore, logger *zap.Logger) *ResilientAssociationStore {
	return &ResilientAssociationStore{next: next, cb: newStoreBreaker(name, logger)}
}

func (s *ResilientAssociationStore) GetChildren(ctx context.Context, parentID string, filters []pipeline.FilterExpression, opt pipeline.FindOptions) ([]domain.Record, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.GetChildren(ctx, parentID, filters, opt)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Record), nil
}

func (s *ResilientAssociationStore) AddChildren(ctx context.Context, parentID string, childIDs []string) ([]domain.Record, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.AddChildren(ctx, parentID, childIDs)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Record), nil
}

func (s *ResilientAssociationStore) GetChild(ctx context.Context, parentID, childID string, opt pipeline.FindOptions) (domain.Record, error) {
	return s.executeRecord(func() (interface{}, error) {
		return s.next.GetChild(ctx, parentID, childID, opt)
	})
}

func (s *ResilientAssociationStore) UpdateChild(ctx context.Context, parentID, childID string, values domain.Record) (domain.Record, error) {
	return s.executeRecord(func() (interface{}, error) {
		return s.next.UpdateChild(ctx, parentID, childID, values)
	})
}

func (s *ResilientAssociationStore) RemoveChild(ctx context.Context, parentID, childID string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.RemoveChild(ctx, parentID, childID)
	})
	return err
}

func (s *ResilientAssociationStore) executeRecord(fn func() (interface{}, error)) (domain.Record, error) {
	res, err := s.cb.Execute(fn)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	rec, _ := res.(domain.Record)
	return rec, nil
}
