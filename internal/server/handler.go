package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/audit"
	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/infra/auth"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

// ResourceHandler — единственный транспортный адаптер для всех ресурсов.
// Он только переводит HTTP в запрос конвейера и конверт обратно в HTTP;
// бизнес-решений здесь нет.
type ResourceHandler struct {
	orch    *pipeline.Orchestrator
	auditor audit.Auditor // nil отключает след
	logger  *zap.Logger
}

func NewResourceHandler(orch *pipeline.Orchestrator, auditor audit.Auditor, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{orch: orch, auditor: auditor, logger: logger.Named("http")}
}

// Handle строит http.HandlerFunc для одной операции.
func (h *ResourceHandler) Handle(op *pipeline.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := decodeBody(r)
		if !ok {
			writeEnvelope(w, h.logger, http.StatusBadRequest, domain.Fail(&domain.ErrorInfo{
				Message:    "Validation: body must be a JSON object",
				HTTPStatus: http.StatusBadRequest,
				Code:       op.Resource + "." + op.Action + ".validation",
			}))
			return
		}

		req := &pipeline.Request{
			CallerPermissions: auth.CallerPermissions(r.Context()),
			Params:            urlParams(r),
			Query:             queryValues(r),
			Body:              body,
		}

		start := time.Now()
		env := h.orch.Run(r.Context(), op, req)

		status := op.SuccessStatus
		if !env.Success {
			status = env.Error.HTTPStatus
		}

		if h.auditor != nil {
			h.auditor.Log(operationEvent(r, op, req, env, status, time.Since(start)))
		}

		writeEnvelope(w, h.logger, status, env)
	}
}

// operationEvent собирает запись следа из исхода конвейера.
func operationEvent(r *http.Request, op *pipeline.Operation, req *pipeline.Request, env *domain.Envelope, status int, took time.Duration) audit.OperationEvent {
	event := audit.OperationEvent{
		ID:         uuid.NewString(),
		TraceID:    TraceIDFromContext(r.Context()),
		CallerID:   auth.UserID(r.Context()),
		Resource:   op.Resource,
		Operation:  op.Action,
		RecordID:   req.Params["id"],
		Status:     "SUCCESS",
		HTTPStatus: status,
		DurationMs: took.Milliseconds(),
	}
	if childID := req.Params["childId"]; childID != "" {
		event.RecordID = childID
	}
	if !env.Success {
		event.Status = "FAILED"
		event.Code = env.Error.Code
	}
	return event
}

// urlParams собирает path-параметры. Присутствуют только те, что
// объявлены в шаблоне маршрута.
func urlParams(r *http.Request) map[string]string {
	params := map[string]string{}
	if id := chi.URLParam(r, "id"); id != "" {
		params["id"] = id
	}
	if childID := chi.URLParam(r, "childId"); childID != "" {
		params["childId"] = childID
	}
	return params
}

// queryValues переводит query-строку в срез для валидатора. Скаляры
// остаются строками (валидатор приводит сам); search передается как
// URL-encoded JSON и декодируется здесь. Невалидный JSON уходит в
// валидатор как есть и отклоняется там же.
func queryValues(r *http.Request) map[string]any {
	raw := r.URL.Query()
	if len(raw) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(raw))
	for key, vals := range raw {
		if len(vals) == 0 {
			continue
		}
		if key == "search" {
			var decoded any
			if err := json.Unmarshal([]byte(vals[0]), &decoded); err != nil {
				out[key] = vals[0]
				continue
			}
			out[key] = decoded
			continue
		}
		out[key] = vals[0]
	}
	return out
}

// decodeBody читает JSON-объект тела. Пустое тело — валидный вход
// (например, у GET и DELETE тела нет вовсе).
func decodeBody(r *http.Request) (map[string]any, bool) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, true
	}
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return nil, false
	}
	return body, true
}

func writeEnvelope(w http.ResponseWriter, logger *zap.Logger, status int, env *domain.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}
