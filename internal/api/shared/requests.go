package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Global validator instance for reuse
var validate = validator.New()

// MaxBodyBytes bounds request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}
