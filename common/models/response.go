package models

// BaseResponse wraps successful HTTP responses.
type BaseResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse wraps failed HTTP responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Msg   string `json:"msg"`
}
