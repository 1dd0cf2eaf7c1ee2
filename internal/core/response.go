package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (1 MB).
const maxRequestBodySize = 1 << 20

// Envelope is the standard response body for every endpoint. Status is
// "success" or "error"; Data carries optional payloads such as the created
// video identifiers.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success writes a 200 success envelope with an optional data payload.
func Success(w http.ResponseWriter, r *http.Request, message string, data any) {
	JSON(w, r, http.StatusOK, Envelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// JSON writes a JSON response with the given status code and body. If
// marshalling fails, it falls back to a generic 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(Envelope{
			Status:  "error",
			Message: "failed to marshal response",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// Error writes an error envelope. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, its code determines the
//     HTTP status and its message is returned to the client.
//   - Any other error becomes a generic 500 without leaking internals; full
//     detail is expected to be logged server-side by the caller.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), Envelope{
			Status:  "error",
			Message: appErr.Message,
			Data:    appErr.Details,
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, Envelope{
		Status:  "error",
		Message: "Internal server error",
	})
}

// DecodeJSON reads the request body into dst, enforcing a 1 MB size limit
// and rejecting unknown fields, empty bodies, and trailing JSON values.
// Failures are returned as 400-mapped AppErrors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}

	if dec.More() {
		return types.NewAppError(
			errCodeValidationInvalidJSON,
			"request body must contain a single JSON object",
			nil,
		)
	}

	return nil
}

// errCodeValidationInvalidJSON is local to the chassis layer; domain code
// never produces it.
const errCodeValidationInvalidJSON types.ErrorCode = "validation_invalid_json"

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(
			errCodeValidationInvalidJSON,
			"request body must not exceed 1MB",
			err,
		)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(
			errCodeValidationInvalidJSON,
			"malformed JSON in request body",
			err,
		)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppErrorWithDetails(
			errCodeValidationInvalidJSON,
			"invalid value for field",
			err,
			map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			},
		)
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(
			errCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "),
			err,
		)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(
			errCodeValidationInvalidJSON,
			"request body must not be empty",
			err,
		)
	}

	return types.NewAppError(
		errCodeValidationInvalidJSON,
		"invalid JSON in request body",
		err,
	)
}
