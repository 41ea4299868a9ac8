package curriculum

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrorKind classifies a validation failure.
type ErrorKind int

const (
	// MalformedOutput means the text is not parseable JSON.
	MalformedOutput ErrorKind = iota + 1
	// SchemaViolation means the JSON parsed but does not match the schema.
	SchemaViolation
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedOutput:
		return "malformed_output"
	case SchemaViolation:
		return "schema_violation"
	default:
		return "unknown"
	}
}

// FieldError names a field that failed validation.
type FieldError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// ValidationError is returned by Validate and ValidateDocument.
type ValidationError struct {
	Kind   ErrorKind
	Schema string
	Fields []FieldError
	Err    error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Kind == SchemaViolation && len(e.Fields) > 0:
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Field + ": " + f.Description
		}
		return fmt.Sprintf("%s: %s does not match schema: %s", e.Kind, e.Schema, strings.Join(parts, "; "))
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Schema, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Schema)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate parses sanitized model output and checks it against the
// generation response schema. The returned document carries the fields
// exactly as the model produced them.
func Validate(cleaned string) (GenerationResponse, error) {
	var doc GenerationResponse
	if err := ValidateDocument(SchemaGenerationResponse, []byte(cleaned), &doc); err != nil {
		return GenerationResponse{}, err
	}
	return doc, nil
}

// ValidateQuiz validates generated quiz questions.
func ValidateQuiz(cleaned string) (Quiz, error) {
	var quiz Quiz
	if err := ValidateDocument(SchemaQuizQuestions, []byte(cleaned), &quiz); err != nil {
		return Quiz{}, err
	}
	return quiz, nil
}

// ValidateAssessment validates a generated level assessment.
func ValidateAssessment(cleaned string) (Assessment, error) {
	var a Assessment
	if err := ValidateDocument(SchemaQuizAssessment, []byte(cleaned), &a); err != nil {
		return Assessment{}, err
	}
	return a, nil
}

// ValidateDocument checks body against the named schema and, when dst is
// non-nil, decodes it into dst.
func ValidateDocument(schemaName string, body []byte, dst any) error {
	reg, err := Schemas()
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	schema, ok := reg.Get(schemaName)
	if !ok {
		return fmt.Errorf("unknown schema %q", schemaName)
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &ValidationError{Kind: MalformedOutput, Schema: schemaName, Err: err}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(parsed))
	if err != nil {
		return &ValidationError{Kind: MalformedOutput, Schema: schemaName, Err: err}
	}
	if !result.Valid() {
		return &ValidationError{Kind: SchemaViolation, Schema: schemaName, Fields: fieldErrors(result.Errors())}
	}

	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &ValidationError{Kind: SchemaViolation, Schema: schemaName, Err: err}
	}
	return nil
}

func fieldErrors(errs []gojsonschema.ResultError) []FieldError {
	out := make([]FieldError, 0, len(errs))
	seen := make(map[FieldError]bool, len(errs))
	for _, e := range errs {
		field := e.Field()
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"].(string); ok {
				if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
					field = prop
				} else {
					field += "." + prop
				}
			}
		}
		fe := FieldError{Field: field, Description: e.Description()}
		if seen[fe] {
			continue
		}
		seen[fe] = true
		out = append(out, fe)
	}
	return out
}
