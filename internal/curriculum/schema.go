package curriculum

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names registered in the default registry.
const (
	SchemaResource             = "resource"
	SchemaStep                 = "step"
	SchemaAssignment           = "assignment"
	SchemaModule               = "module"
	SchemaCurriculum           = "curriculum"
	SchemaGenerationResponse   = "generationResponse"
	SchemaGenerationRequest    = "generationRequest"
	SchemaSaveRequest          = "saveRequest"
	SchemaQuizQuestions        = "quizQuestions"
	SchemaQuizAssessment       = "quizAssessment"
	SchemaQuizGenerateRequest  = "quizGenerateRequest"
	SchemaQuizAssessRequest    = "quizAssessRequest"
	SchemaStepCompletion       = "stepCompletion"
	SchemaAssignmentSubmission = "assignmentSubmission"
)

// definitions holds every shape as a draft-07 definition. Each registered
// schema is a document that references one of them.
const definitions = `{
  "nonEmpty": {"type": "string", "pattern": "\\S"},
  "resource": {
    "type": "object",
    "required": ["title", "url"],
    "properties": {
      "title": {"type": "string"},
      "url": {"type": "string", "format": "web-url"}
    }
  },
  "step": {
    "type": "object",
    "required": ["title", "description"],
    "properties": {
      "title": {"type": "string"},
      "description": {"type": "string"},
      "estimated_time": {"type": "string"},
      "resources": {"type": "array", "items": {"$ref": "#/definitions/resource"}}
    }
  },
  "assignment": {
    "type": "object",
    "required": ["title", "description"],
    "properties": {
      "title": {"type": "string"},
      "description": {"type": "string"},
      "estimated_time": {"type": "string"}
    }
  },
  "module": {
    "type": "object",
    "required": ["title", "description", "steps"],
    "properties": {
      "title": {"type": "string"},
      "description": {"type": "string"},
      "steps": {"type": "array", "items": {"$ref": "#/definitions/step"}},
      "assignment": {"$ref": "#/definitions/assignment"}
    }
  },
  "curriculum": {
    "type": "object",
    "required": ["title", "description", "modules"],
    "properties": {
      "title": {"type": "string"},
      "description": {"type": "string"},
      "modules": {"type": "array", "items": {"$ref": "#/definitions/module"}}
    }
  },
  "generationResponse": {
    "type": "object",
    "required": ["skill", "experienceLevel", "curriculum"],
    "properties": {
      "skill": {"type": "string"},
      "experienceLevel": {"type": "string"},
      "curriculum": {"$ref": "#/definitions/curriculum"}
    }
  },
  "generationRequest": {
    "type": "object",
    "required": ["skill", "experienceLevel"],
    "properties": {
      "skill": {"$ref": "#/definitions/nonEmpty"},
      "experienceLevel": {"type": "string", "enum": ["beginner", "intermediate", "advanced", "custom"]},
      "quizResults": {"type": "string"},
      "assessmentContext": {"type": "string"}
    }
  },
  "saveRequest": {
    "allOf": [
      {"$ref": "#/definitions/generationResponse"},
      {"properties": {"skill": {"$ref": "#/definitions/nonEmpty"}}}
    ]
  },
  "quizQuestions": {
    "type": "object",
    "required": ["questions"],
    "properties": {
      "questions": {
        "type": "array",
        "minItems": 1,
        "items": {
          "type": "object",
          "required": ["id", "text", "options"],
          "properties": {
            "id": {"type": "string"},
            "text": {"type": "string"},
            "options": {
              "type": "array",
              "minItems": 2,
              "items": {
                "type": "object",
                "required": ["value", "label"],
                "properties": {"value": {"type": "string"}, "label": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  },
  "quizAssessment": {
    "type": "object",
    "required": ["level"],
    "properties": {
      "level": {"type": "string", "enum": ["beginner", "intermediate", "advanced"]},
      "rationale": {"type": "string"}
    }
  },
  "quizGenerateRequest": {
    "type": "object",
    "required": ["skillName"],
    "properties": {"skillName": {"$ref": "#/definitions/nonEmpty"}}
  },
  "quizAssessRequest": {
    "type": "object",
    "required": ["skillName", "answers"],
    "properties": {
      "skillName": {"$ref": "#/definitions/nonEmpty"},
      "answers": {"type": "object", "minProperties": 1, "additionalProperties": {"type": "string"}}
    }
  },
  "stepCompletion": {
    "type": "object",
    "required": ["moduleIndex", "stepIndex"],
    "properties": {
      "moduleIndex": {"type": "integer", "minimum": 0},
      "stepIndex": {"type": "integer", "minimum": 0}
    }
  },
  "assignmentSubmission": {
    "type": "object",
    "required": ["moduleIndex", "stepIndex", "title"],
    "properties": {
      "moduleIndex": {"type": "integer", "minimum": 0},
      "stepIndex": {"type": "integer", "minimum": -1},
      "title": {"$ref": "#/definitions/nonEmpty"},
      "description": {"type": "string"}
    }
  }
}`

// Registry holds compiled JSON schemas by name.
type Registry struct {
	schemas map[string]*gojsonschema.Schema
}

func init() {
	gojsonschema.FormatCheckers.Add("web-url", webURLChecker{})
}

// webURLChecker accepts absolute http and https URLs with a host. The
// stock "uri" format only requires a scheme, which lets "https://" and
// "javascript:" through.
type webURLChecker struct{}

func (webURLChecker) IsFormat(input any) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}
	return u.Opaque == "" && u.Hostname() != ""
}

// NewRegistry compiles every named definition.
func NewRegistry() (*Registry, error) {
	names := []string{
		SchemaResource, SchemaStep, SchemaAssignment, SchemaModule, SchemaCurriculum,
		SchemaGenerationResponse, SchemaGenerationRequest, SchemaSaveRequest,
		SchemaQuizQuestions, SchemaQuizAssessment, SchemaQuizGenerateRequest,
		SchemaQuizAssessRequest, SchemaStepCompletion, SchemaAssignmentSubmission,
	}

	r := &Registry{schemas: make(map[string]*gojsonschema.Schema, len(names))}
	for _, name := range names {
		doc := fmt.Sprintf(`{"$schema": "http://json-schema.org/draft-07/schema#", "definitions": %s, "$ref": "#/definitions/%s"}`, definitions, name)
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		r.schemas[name] = schema
	}
	return r, nil
}

// Get returns the compiled schema with the given name.
func (r *Registry) Get(name string) (*gojsonschema.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered schema names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultRegistry     *Registry
	defaultRegistryErr  error
	defaultRegistryOnce sync.Once
)

// Schemas returns the process-wide registry, compiled on first use.
func Schemas() (*Registry, error) {
	defaultRegistryOnce.Do(func() {
		defaultRegistry, defaultRegistryErr = NewRegistry()
	})
	return defaultRegistry, defaultRegistryErr
}
