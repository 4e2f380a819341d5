package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

const changeSetSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["changes"],
  "properties": {
    "changes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["manufacturer", "part", "action"],
        "properties": {
          "manufacturer": {"type": "string", "pattern": "\\S"},
          "part": {"type": "string", "pattern": "\\S"},
          "model": {"type": "string"},
          "quantity": {"type": "integer", "minimum": 1, "maximum": 1000000},
          "action": {"enum": ["add", "remove"]}
        }
      }
    }
  }
}`

var changeSetSchema = jsonschema.MustCompileString("changeset.schema.json", changeSetSchemaJSON)

var changeValidator = newChangeValidator()

func newChangeValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ParseChanges turns a raw model reply into a validated ChangeSet.
//
// The reply must be exactly one JSON object with a "changes" array; anything
// else is ErrMalformedExtraction. A single change breaking the structural
// rules fails the whole batch with ErrInvalidChange.
func ParseChanges(raw string) (domain.ChangeSet, error) {
	doc, err := decodeStrict(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedExtraction, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an object", domain.ErrMalformedExtraction)
	}
	field, ok := obj["changes"]
	if !ok {
		return nil, fmt.Errorf("%w: field \"changes\" is missing", domain.ErrMalformedExtraction)
	}
	items, ok := field.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: field \"changes\" is not an array", domain.ErrMalformedExtraction)
	}

	if err := changeSetSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidChange, err)
	}

	cs := make(domain.ChangeSet, 0, len(items))
	for i, item := range items {
		ch, err := changeFromDocument(item.(map[string]any))
		if err != nil {
			return nil, fmt.Errorf("%w: change %d: %v", domain.ErrInvalidChange, i, err)
		}
		cs = append(cs, ch)
	}
	return cs, nil
}

// ValidateChangeSet checks a ChangeSet that arrives from a caller rather than
// from ParseChanges. The rules are the same.
func ValidateChangeSet(cs domain.ChangeSet) error {
	for i, ch := range cs {
		if err := changeValidator.Struct(ch); err != nil {
			return fmt.Errorf("%w: change %d: %v", domain.ErrInvalidChange, i, err)
		}
	}
	return nil
}

func decodeStrict(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty response")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON document")
	}
	return doc, nil
}

// changeFromDocument reads a change the schema already accepted.
func changeFromDocument(m map[string]any) (domain.Change, error) {
	ch := domain.Change{
		Manufacturer: m["manufacturer"].(string),
		Part:         m["part"].(string),
		Action:       domain.Action(m["action"].(string)),
		Quantity:     domain.DefaultQuantity,
	}
	if model, ok := m["model"].(string); ok {
		ch.Model = model
	}
	if q, ok := m["quantity"].(json.Number); ok {
		f, err := q.Float64()
		if err != nil {
			return domain.Change{}, fmt.Errorf("quantity %q: %w", q, err)
		}
		ch.Quantity = int(f)
	}
	return ch, nil
}
