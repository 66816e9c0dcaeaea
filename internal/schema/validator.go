// Package schema decodes and validates HTTP request bodies.
package schema

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ValidationError is a missing or invalid request field. Its message is
// returned to the client verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: field + " is required"}
}

// Request is a body that can check its own required fields.
type Request interface {
	Validate() error
}

const maxBodyBytes = 64 << 10

// Validator decodes request bodies.
type Validator struct {
	logger zerolog.Logger
}

func New() *Validator {
	return &Validator{logger: log.With().Str("component", "schema").Logger()}
}

// Decode parses a JSON body into dst and validates it. An empty body is
// treated as an empty object so the first missing field is reported.
func (v *Validator) Decode(body io.Reader, dst Request) error {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return &ValidationError{Field: "body", Message: "request body could not be read"}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return ve
			}
			v.logger.Debug().Err(err).Msg("Rejecting malformed request body")
			return &ValidationError{Field: "body", Message: "request body must be a JSON object"}
		}
	}
	if err := dst.Validate(); err != nil {
		v.logger.Debug().Err(err).Msg("Request failed validation")
		return err
	}
	return nil
}
