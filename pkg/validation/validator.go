package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxDocumentSize = 1 << 20
	MaxValues       = 64
	MaxValueKey     = 100
	MaxValueLength  = 4096

	valueKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)
)

func init() {
	validate = validator.New()
}

// DocumentRequest is the client form of a document: arbitrary JSON data
// plus optional string values.
type DocumentRequest struct {
	Data   json.RawMessage   `json:"data" validate:"required"`
	Values map[string]string `json:"values" validate:"omitempty,max=64,dive,keys,min=1,max=100,endkeys,max=4096"`
}

// ParseDocumentRequest decodes and validates a JSON document request.
func ParseDocumentRequest(raw []byte) (*DocumentRequest, error) {
	var req DocumentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid document JSON: %w", err)
	}
	if err := ValidateDocumentRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ValidateDocumentRequest validates a document add/replace request
func ValidateDocumentRequest(req *DocumentRequest) error {
	if req == nil {
		return errors.New("document request cannot be nil")
	}

	// Validate using struct tags
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if string(req.Data) == "null" {
		return errors.New("Data: field is required")
	}
	if len(req.Data) > MaxDocumentSize {
		return fmt.Errorf("Data: %d bytes exceeds maximum document size of %d", len(req.Data), MaxDocumentSize)
	}
	if !json.Valid(req.Data) {
		return errors.New("Data: must be valid JSON")
	}

	for key := range req.Values {
		if err := ValidateValueKey(key); err != nil {
			return fmt.Errorf("Values: %w", err)
		}
	}

	return nil
}

// Document converts a validated request into a docdb.Document.
func (r *DocumentRequest) Document() docdb.Document {
	return docdb.Document{Data: []byte(r.Data), Values: r.Values}
}

// DocumentResponse renders a stored document in request form.
func DocumentResponse(doc docdb.Document) DocumentRequest {
	data := json.RawMessage(doc.Data)
	if !json.Valid(data) {
		// Payloads written by other clients may not be JSON
		quoted, _ := json.Marshal(string(doc.Data))
		data = quoted
	}
	return DocumentRequest{Data: data, Values: doc.Values}
}

// ValidateValueKey validates a document value key
func ValidateValueKey(key string) error {
	if key == "" {
		return errors.New("value key cannot be empty")
	}
	if len(key) > MaxValueKey {
		return fmt.Errorf("value key '%s' exceeds maximum length of %d characters", key, MaxValueKey)
	}
	if !valueKeyPattern.MatchString(key) {
		return fmt.Errorf("value key '%s' is invalid (must start with letter or underscore, followed by alphanumeric, underscore, dot or dash)", key)
	}
	return nil
}

// ParseDocID parses a document id. Zero is never valid.
func ParseDocID(s string) (docdb.DocID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid document id %q: %w", s, docdb.ErrInvalidDocument)
	}
	if n == 0 {
		return 0, fmt.Errorf("document id must be at least 1: %w", docdb.ErrInvalidDocument)
	}
	return docdb.DocID(n), nil
}

// fieldErrors converts validator errors into one error per failing field
func fieldErrors(err error) []error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []error{err}
	}

	out := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		out = append(out, describe(e))
	}
	return out
}

func describe(e validator.FieldError) error {
	field := e.Field()
	param := e.Param()

	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "min":
		return fmt.Errorf("%s: must be at least %s", field, param)
	case "max":
		return fmt.Errorf("%s: must not exceed %s", field, param)
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", field, param)
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}

// formatValidationError returns the first validation error in a user-friendly format
func formatValidationError(err error) error {
	errs := fieldErrors(err)
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
