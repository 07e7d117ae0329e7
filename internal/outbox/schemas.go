package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const recordSubmittedSchema = `{
  "type": "object",
  "title": "RecordSubmitted",
  "properties": {
    "record_id": {"type": "string"},
    "office": {"type": "string"},
    "period_key": {"type": "string"},
    "consultations": {"type": "integer", "minimum": 0},
    "follow_ups": {"type": "integer", "minimum": 0},
    "messages": {"type": "integer", "minimum": 0},
    "calls": {"type": "integer", "minimum": 0},
    "revenue": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["record_id", "office", "period_key", "consultations", "follow_ups", "messages", "calls", "revenue", "created_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry pairs the registered JSON schema with the rules the
// dispatcher enforces before a payload is framed for Kafka.
type SchemaCatalogEntry struct {
	Schema string

	required   []string
	properties map[string]propertyRule
	closed     bool
}

type propertyRule struct {
	Type    string   `json:"type"`
	Minimum *float64 `json:"minimum"`
}

func mustSchema(schema string) SchemaCatalogEntry {
	var doc struct {
		Properties           map[string]propertyRule `json:"properties"`
		Required             []string                `json:"required"`
		AdditionalProperties *bool                   `json:"additionalProperties"`
	}
	if err := json.Unmarshal([]byte(schema), &doc); err != nil {
		panic(fmt.Sprintf("outbox: invalid schema: %v", err))
	}
	return SchemaCatalogEntry{
		Schema:     schema,
		required:   doc.Required,
		properties: doc.Properties,
		closed:     doc.AdditionalProperties != nil && !*doc.AdditionalProperties,
	}
}

// Check reports the first way payload violates the schema. Only the subset
// used by the catalog is enforced: required, additionalProperties, string and
// integer types, and minimum.
func (e SchemaCatalogEntry) Check(payload []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("payload is not a JSON object: %w", err)
	}
	for _, name := range e.required {
		if _, ok := fields[name]; !ok {
			return fmt.Errorf("payload missing required field %q", name)
		}
	}
	for name, raw := range fields {
		rule, ok := e.properties[name]
		if !ok {
			if e.closed {
				return fmt.Errorf("payload has unexpected field %q", name)
			}
			continue
		}
		if err := rule.check(raw); err != nil {
			return fmt.Errorf("payload field %q: %w", name, err)
		}
	}
	return nil
}

func (r propertyRule) check(raw json.RawMessage) error {
	switch r.Type {
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return errors.New("expected string")
		}
	case "integer":
		n, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
		if err != nil {
			return errors.New("expected integer")
		}
		if r.Minimum != nil && float64(n) < *r.Minimum {
			return fmt.Errorf("%d is below minimum %v", n, *r.Minimum)
		}
	}
	return nil
}
