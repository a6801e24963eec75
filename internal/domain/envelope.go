package domain

// Envelope — единый формат результата любой операции пайплайна.
// Ровно один конверт на вызов: либо Data, либо Error, никогда оба сразу.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *ErrorInfo `json:"error"`
}

// ErrorInfo — машиночитаемое описание отказа.
// Code стабилен для каждой точки отказа (resource.operation.step) и
// используется только для логов и тестов, клиенты его не интерпретируют.
type ErrorInfo struct {
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus"`
	Code       string `json:"code"`
}

// OK упаковывает успешный результат.
func OK(data any) *Envelope {
	return &Envelope{Success: true, Data: data}
}

// Fail упаковывает отказ. Data при этом всегда nil.
func Fail(info *ErrorInfo) *Envelope {
	return &Envelope{Success: false, Error: info}
}
