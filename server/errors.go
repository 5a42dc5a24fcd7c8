package server

import (
	"fmt"
	"net/http"
	"strings"
)

// Error codes the server itself reports.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeBadVariables = "BAD_VARIABLES"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error is an operation failure with the status and error envelope the
// gateway answers with. Handlers may return one; any other error is answered
// with status 500 and its text.
type Error struct {
	Status   int
	Code     string
	Messages []string
}

// Errorf returns an *Error with a single formatted message.
func Errorf(status int, code string, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Messages: []string{fmt.Sprintf(format, args...)}}
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *Error) status() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}
