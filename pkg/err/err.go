package errprocess

import (
	"errors"
	"net/http"
)

// CodeError error carry a status code for the request surface
type CodeError struct {
	Code    int
	Message string
}

// New create a CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

func (e *CodeError) Error() string {
	return e.Message
}

// StatusCode returns the status code of err, 500 when err carries none
func StatusCode(err error) int {
	var ce *CodeError
	if errors.As(err, &ce) && ce.Code > 0 {
		return ce.Code
	}
	return http.StatusInternalServerError
}
