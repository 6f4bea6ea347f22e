package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const (
	msgEmptyBody    = "empty request body"
	msgInvalidBody  = "invalid request body"
	msgValidation   = "validation error"
	msgEmptyURL     = "original url is required"
	msgInvalidLimit = "limit must be an integer"
	msgURLNotFound  = "url not found"
	msgServerError  = "server error occurred"
)

var tagMessages = map[string]string{
	"required": "this field is required",
	"url":      "invalid url",
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse is the body of every non-2xx JSON reply.
type errorResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors,omitempty"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string, fields ...fieldError) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Status:  "error",
		Message: msg,
		Errors:  fields,
	})
}

// serverError hides err from the client and attaches it to the request log.
func serverError(w http.ResponseWriter, r *http.Request, err error) {
	httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
	renderError(w, r, http.StatusInternalServerError, msgServerError)
}

// fieldErrors maps validator failures to the JSON field they belong to.
func fieldErrors(err error) []fieldError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	fields := make([]fieldError, 0, len(errs))
	for _, e := range errs {
		msg, ok := tagMessages[e.Tag()]
		if !ok {
			msg = "invalid value"
		}
		fields = append(fields, fieldError{Field: e.Field(), Message: msg})
	}

	return fields
}
