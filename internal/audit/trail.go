package audit

/*
Файл trail.go — асинхронный след операций. События уходят из горячего
пути через неблокирующий канал, копятся в памяти и пишутся в PostgreSQL
пачками по таймеру или при достижении лимита. При остановке буфер
вычитывается до конца (drain через закрытие канала), так что финальный
flush ничего не теряет.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняется след.
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []OperationEvent) error
}

type Auditor interface {
	Log(event OperationEvent)
}

type Trail struct {
	ch     chan OperationEvent
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	// mu сериализует закрытие канала с конкурентными Log: отправка в
	// закрытый канал — паника, флага без блокировки здесь недостаточно.
	mu     sync.RWMutex
	closed bool
}

func NewTrail(repo StorageInterface, logger *zap.Logger) *Trail {
	return &Trail{
		ch:     make(chan OperationEvent, 10000),
		repo:   repo,
		logger: logger.Named("audit-trail"),
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход в канал и ждет, пока воркер всё допишет.
// Повторный Stop безопасен и ничего не делает.
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.ch)
	t.mu.Unlock()

	t.logger.Info("stopping audit trail: flushing buffer...")
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event OperationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Читательская блокировка держится на время отправки: close в Stop
	// не может проскочить между проверкой флага и записью в канал.
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Переполненный буфер не тормозит запрос: событие уходит хотя бы в лог.
	select {
	case t.ch <- event:
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("trace_id", event.TraceID),
			zap.String("resource", event.Resource),
			zap.String("operation", event.Operation),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]OperationEvent, 0, 100)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к моменту финального flush
			// может быть уже закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): остатки уже вычитаны, пишем
				// финальную пачку и выходим.
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
