package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

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

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code       `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeJSON writes data as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

// writeRemoved reports a successful delete.
func writeRemoved(w http.ResponseWriter, id any) {
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "removed": true})
}

// writeError converts err to the JSON error envelope. Internal errors are
// logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrRateLimited) {
		writeJSON(w, apperr.StatusFor(apperr.CodeRateLimited), errorBody{Error: errorDetail{
			Code:    apperr.CodeRateLimited,
			Message: "too many failed attempts, try again later",
		}})
		return
	}

	code := apperr.CodeOf(err)
	detail := errorDetail{Code: code, Message: err.Error()}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		detail.Message = ae.Message
		detail.Details = ae.Details
	}

	if code == apperr.CodeInternal {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		detail.Message = "internal server error"
		detail.Details = nil
	}

	writeJSON(w, apperr.StatusFor(code), errorBody{Error: detail})
}

// decode reads a JSON body into v and validates its struct tags.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}

	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			details := make(map[string]string, len(ve))
			for _, fe := range ve {
				rule := fe.Tag()
				if fe.Param() != "" {
					rule += " " + fe.Param()
				}
				details[fe.Field()] = rule
			}
			return apperr.ValidationFields(details)
		}
		return fmt.Errorf("validating request: %w", err)
	}
	return nil
}

// pathID parses a numeric path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationFields(map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}

// queryID parses an optional numeric query parameter. Missing yields 0.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationFields(map[string]string{name: "must be a positive integer"})
	}
	return id, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.ValidationFields(map[string]string{name: "must be a boolean"})
	}
	return b, nil
}

// principal returns the caller stored by the auth middleware.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// orEmpty keeps empty lists encoding as [] instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// utcPtr normalizes an optional timestamp to UTC.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
