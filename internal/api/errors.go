package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kalambet/pagewise/internal/notebook"
	"github.com/kalambet/pagewise/internal/restaurant"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// serviceError maps service sentinel errors onto HTTP responses. Anything
// unrecognized is an upstream failure reported with its raw message.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notebook.ErrUnsupportedFile):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "Only PDF files are supported")
	case errors.Is(err, notebook.ErrInvalidInput):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
	case errors.Is(err, notebook.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "Notebook not found")
	case errors.Is(err, notebook.ErrNoInformation):
		httpError(w, http.StatusNotFound, "not_found", "No information found in PDF and web search failed")
	case errors.Is(err, restaurant.ErrInvalidQuery):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "Please specify location and cuisine preference (e.g., 'italian food in Rome')")
	case errors.Is(err, restaurant.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "No restaurants found for your query. Try different cuisine or location.")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%s", err.Error())
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into one sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs[i] = fe.Field() + " is required"
		case "max":
			msgs[i] = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			msgs[i] = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}
