package skill

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	ErrInvalidRegistry = goerr.New("invalid skill registry")
)

// registrySchema is the JSON schema every registry document must satisfy.
// Validation happens once at load; after that the registry is read-only and
// safe for concurrent reads across runs.
const registrySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "description", "keywords", "relatedApps"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": "string", "minLength": 1},
      "description": {"type": "string"},
      "category": {"type": "string"},
      "keywords": {"type": "array", "items": {"type": "string"}},
      "params": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["name", "type"],
          "properties": {
            "name": {"type": "string", "minLength": 1},
            "type": {"type": "string", "enum": ["string", "number", "boolean"]},
            "required": {"type": "boolean"},
            "default": {"type": "string"},
            "examples": {"type": "array", "items": {"type": "string"}}
          }
        }
      },
      "relatedApps": {
        "type": "array",
        "minItems": 1,
        "items": {
          "type": "object",
          "required": ["packageName", "executionType"],
          "properties": {
            "packageName": {"type": "string", "minLength": 1},
            "executionType": {"type": "string", "enum": ["delegation", "gui_automation"]},
            "deepLinkTemplate": {"type": "string"},
            "stepHints": {"type": "array", "items": {"type": "string"}},
            "priority": {"type": "integer"}
          }
        }
      }
    }
  }
}`

// Registry is the read-only set of skill definitions, loaded once at
// process start and shared across runs.
type Registry struct {
	skills []Definition
}

// Load parses and validates a registry document.
func Load(data []byte) (*Registry, error) {
	if err := validateRegistry(data); err != nil {
		return nil, err
	}

	var skills []Definition
	if err := json.Unmarshal(data, &skills); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal skill registry")
	}

	seen := map[string]struct{}{}
	for _, s := range skills {
		if _, ok := seen[s.ID]; ok {
			return nil, goerr.Wrap(ErrInvalidRegistry, "duplicated skill id", goerr.V("id", s.ID))
		}
		seen[s.ID] = struct{}{}
	}

	return &Registry{skills: skills}, nil
}

// LoadFile loads a registry from a JSON file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read skill registry", goerr.V("path", path))
	}
	return Load(data)
}

func validateRegistry(data []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(registrySchema))
	if err != nil {
		return goerr.Wrap(err, "failed to parse registry schema")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("registry.json", schemaDoc); err != nil {
		return goerr.Wrap(err, "failed to add registry schema resource")
	}
	schema, err := compiler.Compile("registry.json")
	if err != nil {
		return goerr.Wrap(err, "failed to compile registry schema")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return goerr.Wrap(ErrInvalidRegistry, "registry is not valid JSON", goerr.V("cause", err.Error()))
	}
	if err := schema.Validate(doc); err != nil {
		return goerr.Wrap(ErrInvalidRegistry, "registry failed schema validation", goerr.V("cause", err.Error()))
	}

	return nil
}

// Skills returns the loaded definitions.
func (r *Registry) Skills() []Definition { return r.skills }

// Len returns the number of loaded skills.
func (r *Registry) Len() int { return len(r.skills) }
