package descriptor

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaURL names the embedded schema resource.
const SchemaURL = "https://hazyhaar.dev/schema/serialized-selection-v1.json"

// Schema is the JSON Schema of the Descriptor wire format.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "SerializedSelection",
  "type": "object",
  "required": ["id", "text", "type", "restore"],
  "properties": {
    "id":   {"type": "string", "minLength": 1},
    "text": {"type": "string", "minLength": 1},
    "type": {"type": "string"},
    "restore": {
      "type": "object",
      "minProperties": 1,
      "properties": {
        "anchors": {
          "type": "object",
          "required": ["startId", "endId", "startOffset", "endOffset"],
          "properties": {
            "startId": {"type": "string"},
            "endId": {"type": "string"},
            "startOffset": {"$ref": "#/definitions/offset"},
            "endOffset": {"$ref": "#/definitions/offset"},
            "startCustomId": {"type": "string"},
            "endCustomId": {"type": "string"}
          }
        },
        "paths": {
          "type": "object",
          "required": ["startPath", "endPath", "startOffset", "endOffset", "startTextOffset", "endTextOffset"],
          "properties": {
            "startPath": {"type": "string"},
            "endPath": {"type": "string"},
            "startOffset": {"$ref": "#/definitions/offset"},
            "endOffset": {"$ref": "#/definitions/offset"},
            "startTextOffset": {"$ref": "#/definitions/offset"},
            "endTextOffset": {"$ref": "#/definitions/offset"}
          }
        },
        "multipleAnchors": {
          "type": "object",
          "required": ["startAnchors", "endAnchors", "commonParent", "siblingInfo"],
          "properties": {
            "startAnchors": {"$ref": "#/definitions/shape"},
            "endAnchors": {"$ref": "#/definitions/shape"},
            "commonParent": {"type": "string"},
            "siblingInfo": {
              "type": "object",
              "required": ["index", "total", "tagPattern"],
              "properties": {
                "index": {"type": "integer"},
                "total": {"type": "integer", "minimum": 0},
                "tagPattern": {"type": "string"}
              }
            }
          }
        },
        "fingerprint": {
          "type": "object",
          "required": ["tagName", "textLength", "childCount", "depth", "parentChain", "siblingPattern"],
          "properties": {
            "tagName": {"type": "string", "minLength": 1},
            "className": {"type": "string"},
            "attributes": {"type": ["object", "null"], "additionalProperties": {"type": "string"}},
            "textLength": {"$ref": "#/definitions/offset"},
            "childCount": {"$ref": "#/definitions/offset"},
            "depth": {"$ref": "#/definitions/offset"},
            "parentChain": {
              "type": ["array", "null"],
              "items": {
                "type": "object",
                "required": ["tagName"],
                "properties": {
                  "tagName": {"type": "string"},
                  "className": {"type": "string"},
                  "id": {"type": "string"}
                }
              }
            },
            "siblingPattern": {
              "type": "object",
              "required": ["position", "total"],
              "properties": {
                "position": {"type": "integer"},
                "total": {"type": "integer"},
                "beforeTags": {"type": ["array", "null"], "items": {"type": "string"}},
                "afterTags": {"type": ["array", "null"], "items": {"type": "string"}}
              }
            }
          }
        },
        "context": {
          "type": "object",
          "required": ["precedingText", "followingText", "parentText", "textPosition"],
          "properties": {
            "precedingText": {"type": "string"},
            "followingText": {"type": "string"},
            "parentText": {"type": "string"},
            "textPosition": {
              "type": "object",
              "required": ["start", "end", "totalLength"],
              "properties": {
                "start": {"$ref": "#/definitions/offset"},
                "end": {"$ref": "#/definitions/offset"},
                "totalLength": {"$ref": "#/definitions/offset"}
              }
            }
          }
        }
      }
    }
  },
  "definitions": {
    "offset": {"type": "integer", "minimum": 0},
    "shape": {
      "type": "object",
      "required": ["tagName"],
      "properties": {
        "tagName": {"type": "string", "minLength": 1},
        "className": {"type": "string"},
        "id": {"type": "string"},
        "attributes": {"type": ["object", "null"], "additionalProperties": {"type": "string"}}
      }
    }
  }
}`

var compiled = jsonschema.MustCompileString(SchemaURL, Schema)

// Validate checks raw JSON against the descriptor schema.
func Validate(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("descriptor: invalid JSON: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("descriptor: schema: %w", err)
	}
	return nil
}
