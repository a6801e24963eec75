package audit

import "time"

// OperationEvent — одна запись следа: кто, над каким ресурсом, какую
// операцию выполнил и чем она закончилась.
type OperationEvent struct {
	ID       string `json:"id"`       // UUID события
	TraceID  string `json:"trace_id"` // Сквозной ID запроса
	CallerID string `json:"caller_id"`

	Resource  string `json:"resource"`
	Operation string `json:"operation"`
	RecordID  string `json:"record_id"` // пустой для list/create без локации

	Status     string `json:"status"` // "SUCCESS" или "FAILED"
	HTTPStatus int    `json:"http_status"`
	Code       string `json:"code"` // код отказа конвейера, пустой при успехе

	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}
