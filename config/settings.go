// Package config provides configuration structures for the search engine.
// It defines index settings, ranking criteria, and the server configuration.
package config

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultMinWordSizeFor1Typo is used when an index is created without a 1-typo threshold.
	DefaultMinWordSizeFor1Typo = 4
	// DefaultMinWordSizeFor2Typos is used when an index is created without a 2-typo threshold.
	DefaultMinWordSizeFor2Typos = 7
)

// indexNamePattern keeps index names safe to use as directory names.
var indexNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// RankingCriterion defines a single field and direction to use for ranking search results.
// The ranking is applied in the order specified in the IndexSettings.RankingCriteria slice,
// after match quality. Fields can be any document field.
type RankingCriterion struct {
	Field string `json:"field"` // Field name to rank by (e.g., "popularity", "year")
	Order string `json:"order"` // Sort order: "asc" for ascending, "desc" for descending
}

// IndexSettings contains all configuration options for a search index.
//
// SearchableFields order matters: a match in an earlier field ranks above an
// equally good match in a later one, and it is the default display order of
// field matches.
//
// FieldsWithoutPrefixSearch, NoTypoToleranceFields, NonTypoTolerantWords and
// DistinctField are read at query time. Changing them never requires reindexing.
type IndexSettings struct {
	Name                      string             `json:"name"`
	SearchableFields          []string           `json:"searchable_fields"`
	FilterableFields          []string           `json:"filterable_fields"`
	RankingCriteria           []RankingCriterion `json:"ranking_criteria"`
	MinWordSizeFor1Typo       int                `json:"min_word_size_for_1_typo"`
	MinWordSizeFor2Typos      int                `json:"min_word_size_for_2_typos"`
	FieldsWithoutPrefixSearch []string           `json:"fields_without_prefix_search"`
	NoTypoToleranceFields     []string           `json:"no_typo_tolerance_fields"`
	NonTypoTolerantWords      []string           `json:"non_typo_tolerant_words,omitempty"`
	DistinctField             string             `json:"distinct_field"`
}

// SettingsUpdate is the mutable subset of IndexSettings. A nil pointer means
// "leave unchanged"; an empty slice or string clears the setting.
type SettingsUpdate struct {
	FieldsWithoutPrefixSearch *[]string `json:"fields_without_prefix_search,omitempty"`
	NoTypoToleranceFields     *[]string `json:"no_typo_tolerance_fields,omitempty"`
	NonTypoTolerantWords      *[]string `json:"non_typo_tolerant_words,omitempty"`
	DistinctField             *string   `json:"distinct_field,omitempty"`
}

// MutableSettingKeys lists the JSON keys a settings update may carry.
var MutableSettingKeys = []string{
	"fields_without_prefix_search",
	"no_typo_tolerance_fields",
	"non_typo_tolerant_words",
	"distinct_field",
}

// IsEmpty reports whether the update changes nothing.
func (u SettingsUpdate) IsEmpty() bool {
	return u.FieldsWithoutPrefixSearch == nil && u.NoTypoToleranceFields == nil &&
		u.NonTypoTolerantWords == nil && u.DistinctField == nil
}

// Apply returns a copy of settings with the update applied.
func (u SettingsUpdate) Apply(settings IndexSettings) IndexSettings {
	updated := settings.Clone()
	if u.FieldsWithoutPrefixSearch != nil {
		updated.FieldsWithoutPrefixSearch = append([]string{}, *u.FieldsWithoutPrefixSearch...)
	}
	if u.NoTypoToleranceFields != nil {
		updated.NoTypoToleranceFields = append([]string{}, *u.NoTypoToleranceFields...)
	}
	if u.NonTypoTolerantWords != nil {
		words := make([]string, 0, len(*u.NonTypoTolerantWords))
		for _, w := range *u.NonTypoTolerantWords {
			words = append(words, strings.ToLower(w))
		}
		updated.NonTypoTolerantWords = words
	}
	if u.DistinctField != nil {
		updated.DistinctField = strings.TrimSpace(*u.DistinctField)
	}
	return updated
}

// Clone returns a deep copy of the settings so callers can't alias slices
// held by a live index.
func (settings IndexSettings) Clone() IndexSettings {
	clone := settings
	clone.SearchableFields = append([]string{}, settings.SearchableFields...)
	clone.FilterableFields = append([]string{}, settings.FilterableFields...)
	clone.RankingCriteria = append([]RankingCriterion{}, settings.RankingCriteria...)
	clone.FieldsWithoutPrefixSearch = append([]string{}, settings.FieldsWithoutPrefixSearch...)
	clone.NoTypoToleranceFields = append([]string{}, settings.NoTypoToleranceFields...)
	clone.NonTypoTolerantWords = append([]string{}, settings.NonTypoTolerantWords...)
	return clone
}

// ValidateIndexName checks that name is usable as an index identifier.
func ValidateIndexName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("index name is required")
	}
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("index name '%s' may only contain letters, digits, '_', '-' and '.', and must start with a letter or digit", name)
	}
	return nil
}

// Validate checks the full settings document used to create an index and
// returns every problem found.
func (settings *IndexSettings) Validate() []string {
	var problems []string
	if err := ValidateIndexName(settings.Name); err != nil {
		problems = append(problems, err.Error())
	}
	if settings.MinWordSizeFor1Typo < 0 || settings.MinWordSizeFor2Typos < 0 {
		problems = append(problems, "Typo thresholds cannot be negative")
	}
	if settings.MinWordSizeFor1Typo > settings.MinWordSizeFor2Typos {
		problems = append(problems, fmt.Sprintf("min_word_size_for_1_typo (%d) must not exceed min_word_size_for_2_typos (%d)",
			settings.MinWordSizeFor1Typo, settings.MinWordSizeFor2Typos))
	}
	return append(problems, settings.ValidateFieldNames()...)
}

// ValidateFieldNames validates field names for basic requirements: no
// duplicates, no empty names, and valid ranking orders.
func (settings *IndexSettings) ValidateFieldNames() []string {
	var conflicts []string

	conflicts = append(conflicts, checkDuplicates("searchable_fields", settings.SearchableFields)...)
	conflicts = append(conflicts, checkDuplicates("filterable_fields", settings.FilterableFields)...)
	conflicts = append(conflicts, checkDuplicates("fields_without_prefix_search", settings.FieldsWithoutPrefixSearch)...)
	conflicts = append(conflicts, checkDuplicates("no_typo_tolerance_fields", settings.NoTypoToleranceFields)...)

	for _, criterion := range settings.RankingCriteria {
		if strings.TrimSpace(criterion.Field) == "" {
			conflicts = append(conflicts, "Ranking criterion field cannot be empty")
		}
		if criterion.Order != "asc" && criterion.Order != "desc" {
			conflicts = append(conflicts, "Invalid order '"+criterion.Order+"' for field '"+criterion.Field+"' in ranking_criteria (must be 'asc' or 'desc')")
		}
	}

	allFields := make([]string, 0)
	allFields = append(allFields, settings.SearchableFields...)
	allFields = append(allFields, settings.FilterableFields...)
	allFields = append(allFields, settings.FieldsWithoutPrefixSearch...)
	allFields = append(allFields, settings.NoTypoToleranceFields...)
	for _, field := range allFields {
		if strings.TrimSpace(field) == "" {
			conflicts = append(conflicts, "Field name cannot be empty or whitespace-only")
		}
	}

	return conflicts
}

// Warnings lists settings that are accepted but currently have no effect.
func (settings *IndexSettings) Warnings() []string {
	var warnings []string
	for _, field := range settings.FieldsWithoutPrefixSearch {
		if !settings.IsSearchable(field) {
			warnings = append(warnings, fmt.Sprintf("field '%s' in fields_without_prefix_search is not searchable and has no effect", field))
		}
	}
	for _, field := range settings.NoTypoToleranceFields {
		if !settings.IsSearchable(field) {
			warnings = append(warnings, fmt.Sprintf("field '%s' in no_typo_tolerance_fields is not searchable and has no effect", field))
		}
	}
	return warnings
}

// IsSearchable reports whether field is listed in SearchableFields.
func (settings *IndexSettings) IsSearchable(field string) bool {
	return contains(settings.SearchableFields, field)
}

// IsFilterable reports whether field is listed in FilterableFields.
func (settings *IndexSettings) IsFilterable(field string) bool {
	return contains(settings.FilterableFields, field)
}

// PrefixSearchEnabled reports whether prefix matching applies to field.
func (settings *IndexSettings) PrefixSearchEnabled(field string) bool {
	return !contains(settings.FieldsWithoutPrefixSearch, field)
}

// TypoToleranceEnabled reports whether typo expansion applies to field.
func (settings *IndexSettings) TypoToleranceEnabled(field string) bool {
	return !contains(settings.NoTypoToleranceFields, field)
}

// IsNonTypoTolerantWord reports whether word must only ever match exactly.
func (settings *IndexSettings) IsNonTypoTolerantWord(word string) bool {
	return contains(settings.NonTypoTolerantWords, word)
}

// checkDuplicates checks for duplicate values in a slice and returns error messages
func checkDuplicates(fieldName string, fields []string) []string {
	var errors []string
	seen := make(map[string]bool)

	for _, field := range fields {
		if seen[field] {
			errors = append(errors, "Duplicate field '"+field+"' found in "+fieldName)
		}
		seen[field] = true
	}

	return errors
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// ApplyDefaults applies default values to the index settings
func (settings *IndexSettings) ApplyDefaults() {
	if settings.MinWordSizeFor1Typo == 0 {
		settings.MinWordSizeFor1Typo = DefaultMinWordSizeFor1Typo
	}
	if settings.MinWordSizeFor2Typos == 0 {
		settings.MinWordSizeFor2Typos = DefaultMinWordSizeFor2Typos
		if settings.MinWordSizeFor2Typos < settings.MinWordSizeFor1Typo {
			settings.MinWordSizeFor2Typos = settings.MinWordSizeFor1Typo + 1
		}
	}

	// Initialize empty slices if nil so the JSON shape is stable
	if settings.SearchableFields == nil {
		settings.SearchableFields = []string{}
	}
	if settings.FilterableFields == nil {
		settings.FilterableFields = []string{}
	}
	if settings.FieldsWithoutPrefixSearch == nil {
		settings.FieldsWithoutPrefixSearch = []string{}
	}
	if settings.NoTypoToleranceFields == nil {
		settings.NoTypoToleranceFields = []string{}
	}
	if settings.NonTypoTolerantWords == nil {
		settings.NonTypoTolerantWords = []string{}
	}
	if settings.RankingCriteria == nil {
		settings.RankingCriteria = []RankingCriterion{}
	}
	for i, w := range settings.NonTypoTolerantWords {
		settings.NonTypoTolerantWords[i] = strings.ToLower(w)
	}
}
