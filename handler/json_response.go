package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/todokit/pkg/validator"
)

// JSONResponse is the standard JSON response structure
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information. For validation failures Message
// joins the user-facing messages with ", " and Details groups them by field.
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures JSON response
type JSONOption func(*jsonResponse)

// WithJSONStatus sets custom HTTP status code
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// WithJSONMeta adds metadata to response
func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) {
		r.body.Meta = meta
	}
}

// JSON creates a JSON response. An error passed as v renders like JSONError.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK}

	switch val := v.(type) {
	case JSONResponse:
		r.body = val
	case error:
		r.body.Error = errorToDetail(val, &r.status)
	default:
		r.body.Data = v
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError creates a JSON error response; the status is derived from err.
func JSONError(err error, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusInternalServerError}
	r.body.Error = errorToDetail(err, &r.status)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// errorToDetail maps validation errors to 422 and HTTPError to its own code.
// Anything else is a 500 whose message is not exposed.
func errorToDetail(err error, status *int) *ErrorDetail {
	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
		*status = http.StatusUnprocessableEntity
		detail := &ErrorDetail{
			Code:    "validation_error",
			Message: strings.Join(verrs.FullMessages(), ", "),
			Details: make(map[string][]string),
		}
		for _, e := range verrs {
			detail.Details[e.Field] = append(detail.Details[e.Field], e.FullMessage())
		}
		return detail
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		*status = httpErr.Code
		return &ErrorDetail{Code: httpErr.Key, Message: httpErrorMessage(err, httpErr)}
	}

	*status = http.StatusInternalServerError
	return &ErrorDetail{
		Code:    ErrInternalServerError.Key,
		Message: http.StatusText(http.StatusInternalServerError),
	}
}

// httpErrorMessage returns the cause joined with the HTTPError, or the
// status text when there is none.
func httpErrorMessage(err error, httpErr HTTPError) string {
	msg := strings.TrimLeft(strings.TrimPrefix(err.Error(), httpErr.Key), ":\n ")
	if msg == "" {
		return http.StatusText(httpErr.Code)
	}
	return msg
}
