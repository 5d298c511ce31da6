// Package filter compiles the flat filter maps of search requests into an
// expression that is checked once per candidate document.
//
// A filter key is a field name, optionally followed by an operator suffix:
//
//	year_gte: 2001          -> year >= 2001
//	genres_contains: "drama" -> genres has "drama"
//	rating: 8.5             -> rating == 8.5
//
// All conditions must hold for a document to match.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gcbaptista/go-search-core/config"
	internalErrors "github.com/gcbaptista/go-search-core/internal/errors"
	"github.com/gcbaptista/go-search-core/model"
)

// Operator is a comparison applied to a document field.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
	OpContains
	OpNotContains
	OpContainsAnyOf
)

// suffixes is ordered longest first so "_contains_any_of" wins over "_contains"
// and "_gte" over "_gt".
var suffixes = []struct {
	suffix string
	op     Operator
}{
	{"_contains_any_of", OpContainsAnyOf},
	{"_ncontains", OpNotContains},
	{"_contains", OpContains},
	{"_exact", OpEqual},
	{"_gte", OpGreaterOrEqual},
	{"_lte", OpLessOrEqual},
	{"_gt", OpGreater},
	{"_lt", OpLess},
	{"_ne", OpNotEqual},
}

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "eq"
	case OpNotEqual:
		return "ne"
	case OpGreater:
		return "gt"
	case OpGreaterOrEqual:
		return "gte"
	case OpLess:
		return "lt"
	case OpLessOrEqual:
		return "lte"
	case OpContains:
		return "contains"
	case OpNotContains:
		return "ncontains"
	case OpContainsAnyOf:
		return "contains_any_of"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// Ordinal reports whether o orders values rather than matching them.
func (o Operator) Ordinal() bool {
	return o == OpGreater || o == OpGreaterOrEqual || o == OpLess || o == OpLessOrEqual
}

// Condition is a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Operand  model.Value
}

// Expression is a conjunction of conditions.
type Expression struct {
	Conditions []Condition
}

// ParseKey splits a filter key into field and operator. A key that is a
// filterable field itself is always an equality check, so fields whose names
// end in an operator suffix stay addressable.
func ParseKey(key string, settings *config.IndexSettings) (string, Operator, error) {
	if settings.IsFilterable(key) {
		return key, OpEqual, nil
	}
	for _, s := range suffixes {
		if !strings.HasSuffix(key, s.suffix) {
			continue
		}
		field := strings.TrimSuffix(key, s.suffix)
		if settings.IsFilterable(field) {
			return field, s.op, nil
		}
		return "", 0, internalErrors.NewValidationError(key,
			fmt.Sprintf("field '%s' is not filterable in index '%s'", field, settings.Name))
	}
	return "", 0, internalErrors.NewValidationError(key,
		fmt.Sprintf("field '%s' is not filterable in index '%s'", key, settings.Name))
}

// Parse compiles a filter map into an expression. Every problem with the
// filters (unknown field, unsupported operand) is reported here as a
// validation error, before any document is looked at.
func Parse(filters map[string]interface{}, settings *config.IndexSettings) (*Expression, error) {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	expr := &Expression{Conditions: make([]Condition, 0, len(keys))}
	for _, key := range keys {
		field, op, err := ParseKey(key, settings)
		if err != nil {
			return nil, err
		}
		operand := model.ValueOf(filters[key])
		if err := checkOperand(key, op, operand); err != nil {
			return nil, err
		}
		expr.Conditions = append(expr.Conditions, Condition{Field: field, Operator: op, Operand: operand})
	}
	return expr, nil
}

func checkOperand(key string, op Operator, operand model.Value) error {
	switch {
	case operand.IsNull():
		return internalErrors.NewValidationError(key, "filter value cannot be null")
	case op.Ordinal() && !operand.Ordered():
		return internalErrors.NewValidationError(key,
			fmt.Sprintf("operator '%s' needs a number or string, got %s", op, operand.Kind))
	case op == OpContainsAnyOf && operand.Kind != model.KindArray:
		return internalErrors.NewValidationError(key,
			fmt.Sprintf("operator '%s' needs an array, got %s", op, operand.Kind))
	case (op == OpContains || op == OpNotContains) && operand.Kind == model.KindObject:
		return internalErrors.NewValidationError(key,
			fmt.Sprintf("operator '%s' does not accept an object", op))
	}
	return nil
}

// IsEmpty reports whether the expression has no conditions and so matches
// every document.
func (e *Expression) IsEmpty() bool {
	return e == nil || len(e.Conditions) == 0
}

// Fields returns the distinct fields the expression reads.
func (e *Expression) Fields() []string {
	if e == nil {
		return nil
	}
	var fields []string
	seen := make(map[string]bool)
	for _, c := range e.Conditions {
		if !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	}
	return fields
}

// Evaluate reports whether doc satisfies every condition. It fails with a
// validation error when a document value cannot be ordered against the
// operand of an ordinal condition.
func (e *Expression) Evaluate(doc model.Document) (bool, error) {
	if e == nil {
		return true, nil
	}
	for _, c := range e.Conditions {
		ok, err := c.Evaluate(doc)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Evaluate checks a single condition. A missing or null field never matches.
func (c Condition) Evaluate(doc model.Document) (bool, error) {
	value := doc.Field(c.Field)
	if value.IsNull() {
		return false, nil
	}
	switch c.Operator {
	case OpEqual:
		return equals(value, c.Operand), nil
	case OpNotEqual:
		return !equals(value, c.Operand), nil
	case OpContains:
		return contains(value, c.Operand), nil
	case OpNotContains:
		return !contains(value, c.Operand), nil
	case OpContainsAnyOf:
		for _, item := range c.Operand.Array {
			if equals(value, item) {
				return true, nil
			}
		}
		return false, nil
	default:
		return c.compare(value)
	}
}

// equals is type-aware equality; an array document value matches a scalar
// operand it contains.
func equals(value, operand model.Value) bool {
	if value.Kind == model.KindArray && operand.Kind != model.KindArray {
		for _, item := range value.Array {
			if model.Equal(item, operand) {
				return true
			}
		}
		return false
	}
	return model.Equal(value, operand)
}

// contains is case-insensitive substring search for string operands and
// membership otherwise. Array elements are checked one by one.
func contains(value, operand model.Value) bool {
	if value.Kind == model.KindArray {
		for _, item := range value.Array {
			if contains(item, operand) {
				return true
			}
		}
		return false
	}
	if operand.Kind == model.KindString && value.Kind == model.KindString {
		return strings.Contains(strings.ToLower(value.Str), strings.ToLower(operand.Str))
	}
	if operand.Kind == model.KindArray {
		for _, item := range operand.Array {
			if model.Equal(value, item) {
				return true
			}
		}
		return false
	}
	return model.Equal(value, operand)
}

// compare applies an ordinal operator. Array values match when any element does.
func (c Condition) compare(value model.Value) (bool, error) {
	if value.Kind == model.KindArray {
		for _, item := range value.Array {
			if item.IsNull() {
				continue
			}
			ok, err := c.compare(item)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	cmp, ok := model.Compare(value, c.Operand)
	if !ok {
		return false, internalErrors.NewValidationError(c.Field,
			fmt.Sprintf("document value of type %s cannot be compared with %s using '%s'", value.Kind, c.Operand.Kind, c.Operator))
	}
	switch c.Operator {
	case OpGreater:
		return cmp > 0, nil
	case OpGreaterOrEqual:
		return cmp >= 0, nil
	case OpLess:
		return cmp < 0, nil
	case OpLessOrEqual:
		return cmp <= 0, nil
	}
	return false, nil
}
