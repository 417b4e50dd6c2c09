package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins the errors into a single line.
func (r *ValidationResult) Summary() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(parts, "; ")
}

const runRequestSchema = `{
  "type": "object",
  "properties": {
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "content"],
        "properties": {
          "type": {"type": "string"},
          "content": {"type": "string"},
          "id": {"type": "string"}
        }
      }
    },
    "initial_search_query_count": {"type": "integer", "minimum": 1, "maximum": 10},
    "max_research_loops": {"type": "integer", "minimum": 1, "maximum": 10},
    "reasoning_model": {"type": "string"},
    "thread_id": {"type": "string"},
    "user_id": {"type": "string"}
  }
}`

const agentCardSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "url": {"type": "string"},
    "version": {"type": "string"},
    "skills": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var (
	runRequest = mustSchema(runRequestSchema)
	agentCard  = mustSchema(agentCardSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return schema
}

// ValidateRunRequest checks a raw run request body.
func ValidateRunRequest(body []byte) *ValidationResult {
	return validate(runRequest, gojsonschema.NewBytesLoader(body))
}

// ValidateAgentCard checks a raw remote agent card document.
func ValidateAgentCard(body []byte) *ValidationResult {
	return validate(agentCard, gojsonschema.NewBytesLoader(body))
}

func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := schema.Validate(doc)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_JSON",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}
