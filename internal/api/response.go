// Package api implements the HTTP response envelope and the mapping
// from domain errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pbparthas/enki/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes data as a JSON response with the given status. A nil
// payload writes headers only.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes data inside the success envelope.
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error envelope with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeAlreadyExists:    http.StatusConflict,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeForbidden:        http.StatusForbidden,
	domain.ErrCodeInvalidOperation: http.StatusBadRequest,
	domain.ErrCodeInternalError:    http.StatusInternalServerError,
}

// DomainErrorToHTTP resolves a status code for err. Anything that is
// not a DomainError, including wrapped ones with unknown codes, maps to
// 500 so internals are never leaked as client errors.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	if status, ok := statusByCode[domainErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes the error envelope for err at its mapped status.
func HandleError(w http.ResponseWriter, err error) {
	Error(w, DomainErrorToHTTP(err), err.Error())
}
