package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// Error body is a JSON object with 'detail' message, the way token endpoints answer
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	JSONWithStatus(w, data, http.StatusOK)
}

// Render ServiceError
func ServiceError(w http.ResponseWriter, message string, code int) {
	JSONWithStatus(w, ErrorResponse{Detail: message}, code)
}

// Render ServiceError with machine readable code
func CodedError(w http.ResponseWriter, message string, errCode string, code int) {
	JSONWithStatus(w, ErrorResponse{Detail: message, Code: errCode}, code)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	var message string

	// Try to provide more specific error message based on error type
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.As(err, &typeErr):
		message = "Expected a JSON object"
	default:
		message = fmt.Sprintf("JSON parse error - %s", err.Error())
	}

	ServiceError(w, message, http.StatusBadRequest)
}

// Render ValidationErrors as field name to list of messages
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := make(map[string][]string, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required."
		case "max":
			message = fmt.Sprintf("Ensure this field has no more than %s characters.", fieldError.Param())
		case "email":
			message = "Enter a valid email address."
		default:
			message = "Invalid value."
		}

		response[fieldError.Field()] = append(response[fieldError.Field()], message)
	}

	JSONWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return value, err
		}
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// Decode request body as JSON object
// Empty body is decoded as empty object. Writes error response on failure
func BindObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	value := make(map[string]any)

	err := json.NewDecoder(r.Body).Decode(&value)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return value, nil
	default:
		DecodeError(w, err)
		return nil, err
	}
}

// JSONWithStatus sends data as json and enforces status code
func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
