package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/diagen/diagen/pkg/schema"
)

// sceneSchemaJSON is the JSON Schema for scene payloads arriving on the
// convert API. Embedded as a constant to avoid filesystem dependencies.
// Unknown element fields pass through: the renderer's element format grows
// over time and the reader ignores what it does not recognize.
const sceneSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://diagen.dev/schemas/scene.json",
  "type": "object",
  "required": ["elements"],
  "properties": {
    "elements": {
      "type": "array",
      "items": { "$ref": "#/$defs/element" }
    },
    "files": { "type": "object" }
  },
  "$defs": {
    "element": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "type": {
          "type": "string",
          "enum": ["rectangle", "ellipse", "diamond", "arrow", "text", "line", "freedraw", "image", "frame"]
        },
        "x": { "type": "number" },
        "y": { "type": "number" },
        "width": { "type": "number" },
        "height": { "type": "number" },
        "angle": { "type": "number" },
        "text": { "type": "string" },
        "containerId": { "type": ["string", "null"] },
        "boundElements": {
          "type": ["array", "null"],
          "items": {
            "type": "object",
            "required": ["id", "type"],
            "properties": {
              "id": { "type": "string" },
              "type": { "type": "string" }
            }
          }
        },
        "startBinding": { "$ref": "#/$defs/binding" },
        "endBinding": { "$ref": "#/$defs/binding" },
        "backgroundColor": { "type": "string" },
        "strokeColor": { "type": "string" },
        "groupIds": {
          "type": "array",
          "items": { "type": "string" }
        },
        "isDeleted": { "type": "boolean" }
      }
    },
    "binding": {
      "type": ["object", "null"],
      "required": ["elementId"],
      "properties": {
        "elementId": { "type": "string" },
        "focus": { "type": "number" },
        "gap": { "type": "number" }
      }
    }
  }
}`

// SceneValidator validates incoming scene documents against the embedded
// JSON Schema. It is safe for concurrent use.
type SceneValidator struct {
	sceneSchema *jsonschema.Schema
}

// NewSceneValidator compiles the scene schema once.
func NewSceneValidator() (*SceneValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(sceneSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal scene schema: %w", err)
	}
	if err := c.AddResource("https://diagen.dev/schemas/scene.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add scene schema resource: %w", err)
	}

	compiled, err := c.Compile("https://diagen.dev/schemas/scene.json")
	if err != nil {
		return nil, fmt.Errorf("compile scene schema: %w", err)
	}

	return &SceneValidator{sceneSchema: compiled}, nil
}

// ValidateScene validates raw scene JSON. Violations surface as a single
// VALIDATION_ERROR carrying every leaf violation in its details.
func (v *SceneValidator) ValidateScene(raw []byte) error {
	if len(raw) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "scene payload is empty")
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "scene payload is not valid JSON").WithCause(err)
	}

	if err := v.sceneSchema.Validate(doc); err != nil {
		return toDiagenError(err)
	}
	return nil
}

// DecodeScene validates and unmarshals a scene document in one step.
func (v *SceneValidator) DecodeScene(raw []byte) (*schema.Scene, error) {
	if err := v.ValidateScene(raw); err != nil {
		return nil, err
	}
	var scene schema.Scene
	if err := json.Unmarshal(raw, &scene); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "failed to decode scene").WithCause(err)
	}
	return &scene, nil
}

// toDiagenError converts a jsonschema.ValidationError into a DiagenError
// with clear, actionable messages.
func toDiagenError(err error) *schema.DiagenError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("scene validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
