package model

// Response is the error/status envelope returned by the HTTP API.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewResponse(message string, data interface{}) Response {
	return Response{Message: message, Data: data}
}
