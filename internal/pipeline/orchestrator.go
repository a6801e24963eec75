package pipeline

/*
Файл orchestrator.go — линейная машина состояний одного вызова:

  START → AUTHORIZE → VALIDATE → LOCATE(parent) → LOCATE(child)? →
  EXECUTE → ENVELOPE(success)

Любой шаг может коротко замкнуть конвейер в ENVELOPE(failure) со своим
видом отказа. На вызов всегда производится ровно один конверт; паника
не выходит за границу конвейера.
*/

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
)

// Request — неизменяемый вход одного вызова. Транспортный адаптер
// обязан заполнить CallerPermissions из уже проверенного токена.
type Request struct {
	CallerPermissions map[string]bool
	Params            map[string]string
	Query             map[string]any
	Body              map[string]any
}

// ExecArgs — все, что доступно шагу EXECUTE: провалидированный вход и
// записи, найденные на шаге LOCATE.
type ExecArgs struct {
	Req    *Request
	Input  *ValidatedInput
	Parent domain.Record // для дочерних операций
	Target domain.Record // основная запись (или ребенок)
}

// Operation — полная конфигурация одной операции одного ресурса.
// Новые ресурсы добавляются данными (разрешение, схема, привязка к
// хранилищу), а не новым control flow.
type Operation struct {
	Resource   string
	Action     string
	Permission string
	Schema     *SchemaDescriptor

	Store         Store
	Assoc         AssociationStore
	ChildResource string

	// LocateTarget включает строгий поиск записи по params["id"].
	// LocateChild дополнительно ищет ребенка по params["childId"]
	// в рамках найденного родителя.
	LocateTarget bool
	LocateChild  bool

	// LocateIncludesDeleted открывает на шаге LOCATE мягко удаленные
	// записи (нужно delete-операциям для идемпотентности).
	LocateIncludesDeleted bool

	// SecretFields вычищаются из успешного результата.
	SecretFields []string

	// SuccessStatus подсказывает транспорту код успеха (200/201).
	SuccessStatus int

	Execute func(ctx context.Context, a *ExecArgs) (any, error)
}

func (op *Operation) code(step string) string {
	return op.Resource + "." + op.Action + "." + step
}

// Orchestrator прогоняет запросы через машину состояний. Состояния
// между вызовами не разделяются, любое количество вызовов безопасно
// выполняется параллельно.
type Orchestrator struct {
	locator *Locator
	metrics *Metrics
	logger  *zap.Logger
}

func NewOrchestrator(logger *zap.Logger, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		locator: NewLocator(logger),
		metrics: metrics,
		logger:  logger.Named("orchestrator"),
	}
}

// Run выполняет операцию и всегда возвращает корректный конверт.
func (o *Orchestrator) Run(ctx context.Context, op *Operation, req *Request) (env *domain.Envelope) {
	start := time.Now()
	o.metrics.TotalOperations.WithLabelValues(op.Resource, op.Action).Inc()

	defer func() {
		if r := recover(); r != nil {
			// Граница конвейера: наружу уходит конверт, не паника.
			o.logger.Error("pipeline panic",
				zap.String("resource", op.Resource),
				zap.String("operation", op.Action),
				zap.Any("panic", r))
			o.metrics.FailureTotal.WithLabelValues("panic").Inc()
			env = domain.Fail(&domain.ErrorInfo{
				Message:    "Internal error",
				HTTPStatus: http.StatusInternalServerError,
				Code:       op.code("panic"),
			})
		}
		status := "success"
		if env == nil || !env.Success {
			status = "failure"
		}
		o.metrics.OperationDuration.
			WithLabelValues(op.Resource, op.Action, status).
			Observe(time.Since(start).Seconds())
	}()

	// AUTHORIZE: отказ терминален, никаких побочных эффектов дальше.
	if decision := Authorize(req.CallerPermissions, op.Permission); !decision.Allowed {
		o.metrics.FailureTotal.WithLabelValues("forbidden").Inc()
		return domain.Fail(&domain.ErrorInfo{
			Message:    fmt.Sprintf("Forbidden: requires permission %q", decision.RequiredPermission),
			HTTPStatus: http.StatusForbidden,
			Code:       op.code("forbidden"),
		})
	}

	// VALIDATE: все три среза за один проход, отказ агрегированный.
	input, err := Validate(op.Schema, RawInput{Params: req.Params, Query: req.Query, Body: req.Body})
	if err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return o.failBackend(op, "validate", err)
		}
		o.metrics.FailureTotal.WithLabelValues("validation").Inc()
		return domain.Fail(&domain.ErrorInfo{
			Message:    "Validation: " + strings.Join(ve.Fields, "; "),
			HTTPStatus: http.StatusBadRequest,
			Code:       op.code("validation"),
		})
	}

	args := &ExecArgs{Req: req, Input: input}

	// LOCATE: сперва родитель (или основная запись), затем ребенок.
	if op.LocateTarget || op.LocateChild {
		id, _ := input.Params["id"].(string)
		// "Параноидальное" чтение по умолчанию; includeDeleted в query
		// (если схема его объявила) открывает мягко удаленные записи.
		opt := FindOptions{
			IncludeSoftDeleted: op.LocateIncludesDeleted || input.Bool(input.Query, "includeDeleted"),
		}

		target, err := o.locator.LocateOrFail(ctx, op.Store, op.Resource, id, opt)
		if err != nil {
			return o.failFromError(op, "locate", err)
		}

		if op.LocateChild {
			args.Parent = target
			childID, _ := input.Params["childId"].(string)
			child, err := o.locator.LocateChildOrFail(ctx, op.Assoc, op.Resource, id, op.ChildResource, childID, opt)
			if err != nil {
				return o.failFromError(op, "locate_child", err)
			}
			args.Target = child
		} else {
			args.Target = target
		}
	}

	// EXECUTE: ровно один вызов персистентности, без ретраев.
	data, err := op.Execute(ctx, args)
	if err != nil {
		return o.failFromError(op, "execute", err)
	}

	return domain.OK(stripSecrets(data, op.SecretFields))
}

// failFromError переводит ошибки нижних слоев в конверт по таксономии:
// NotFound → 404, конфликт уникальности → 400 (исправимо вызывающим),
// всё прочее → 500 с сохранением причины в логе.
func (o *Orchestrator) failFromError(op *Operation, step string, err error) *domain.Envelope {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		code := op.code("not_found")
		if nf.Parent != "" {
			code = op.code("child_not_found")
		}
		o.metrics.FailureTotal.WithLabelValues("not_found").Inc()
		return domain.Fail(&domain.ErrorInfo{
			Message:    nf.Error(),
			HTTPStatus: http.StatusNotFound,
			Code:       code,
		})
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		o.metrics.FailureTotal.WithLabelValues("conflict").Inc()
		return domain.Fail(&domain.ErrorInfo{
			Message:    "Validation: " + conflict.Error(),
			HTTPStatus: http.StatusBadRequest,
			Code:       op.code("conflict"),
		})
	}

	return o.failBackend(op, step, err)
}

func (o *Orchestrator) failBackend(op *Operation, step string, err error) *domain.Envelope {
	// Исходная причина остается в логах; клиенту уходит общий текст.
	o.logger.Error("backend failure",
		zap.String("resource", op.Resource),
		zap.String("operation", op.Action),
		zap.String("step", step),
		zap.Error(err))
	o.metrics.FailureTotal.WithLabelValues("backend").Inc()
	return domain.Fail(&domain.ErrorInfo{
		Message:    "Internal error",
		HTTPStatus: http.StatusInternalServerError,
		Code:       op.code("backend"),
	})
}

// stripSecrets вычищает секретные поля из записи или списка записей.
func stripSecrets(data any, secrets []string) any {
	if len(secrets) == 0 {
		return data
	}
	switch v := data.(type) {
	case domain.Record:
		return v.WithoutFields(secrets...)
	case []domain.Record:
		out := make([]domain.Record, len(v))
		for i, rec := range v {
			out[i] = rec.WithoutFields(secrets...)
		}
		return out
	}
	return data
}
