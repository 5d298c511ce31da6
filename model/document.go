package model

import (
	"fmt"
	"strings"
)

const (
	// IDField holds the caller-supplied stable identifier of a document.
	IDField = "uuid"
	// TitleField is required on every document.
	TitleField = "title"
)

// Document is a schemaless JSON record. Only "title" is required; "uuid" is
// optional and drives upserts when present. Every other attribute is kept
// as-is and is reachable by key, e.g. doc["popularity"].
type Document map[string]interface{}

// GetID returns the document's uuid if it's a non-empty string.
func (d Document) GetID() (string, bool) {
	if id, ok := d[IDField]; ok {
		if str, sok := id.(string); sok {
			if str != "" {
				return str, true
			}
		}
	}
	return "", false
}

// Title returns the document title if present.
func (d Document) Title() (string, bool) {
	title, ok := d[TitleField].(string)
	return title, ok
}

// Clone returns a shallow copy of the document map.
func (d Document) Clone() Document {
	clone := make(Document, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}

// Validate checks the identity requirements of a document: a string title and,
// when present, a non-empty string uuid.
func (d Document) Validate() error {
	if d == nil {
		return fmt.Errorf("document is empty")
	}
	titleVal, ok := d[TitleField]
	if !ok || titleVal == nil {
		return fmt.Errorf("document must have a '%s' field", TitleField)
	}
	if _, isString := titleVal.(string); !isString {
		return fmt.Errorf("'%s' must be a string, got %T", TitleField, titleVal)
	}
	if idVal, exists := d[IDField]; exists && idVal != nil {
		id, isString := idVal.(string)
		if !isString {
			return fmt.Errorf("'%s' must be a string, got %T", IDField, idVal)
		}
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("'%s' cannot be empty or whitespace-only", IDField)
		}
	}
	return nil
}

// FieldText flattens a field value into the text that gets tokenized.
// Arrays contribute each string element; other scalars are formatted.
func (d Document) FieldText(field string) []string {
	val, ok := d[field]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		texts := make([]string, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				texts = append(texts, it)
			case nil:
			default:
				texts = append(texts, fmt.Sprint(it))
			}
		}
		return texts
	case map[string]interface{}:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}
