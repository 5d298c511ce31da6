package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/model"
)

const (
	defaultDocumentPageSize = 10
	maxDocumentPageSize     = 100
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ParseDocuments accepts a single document object or an array of them.
func ParseDocuments(body []byte) ([]model.Document, *ValidationResult) {
	result := &ValidationResult{}

	var rawData interface{}
	if err := json.Unmarshal(body, &rawData); err != nil {
		result.AddError("request_body", "Invalid JSON in request body: "+err.Error())
		return nil, result
	}

	var docs []model.Document
	switch data := rawData.(type) {
	case []interface{}:
		docs = make([]model.Document, 0, len(data))
		for i, item := range data {
			docMap, isMap := item.(map[string]interface{})
			if !isMap {
				result.AddError(fmt.Sprintf("documents[%d]", i), "Document is not a valid object")
				continue
			}
			docs = append(docs, model.Document(docMap))
		}
	case map[string]interface{}:
		docs = []model.Document{model.Document(data)}
	default:
		result.AddError("request_body", "Expecting a document object or an array of documents")
	}

	if !result.HasErrors() && len(docs) == 0 {
		result.AddError("documents", "No documents provided")
	}
	return docs, result
}

// ParseSettingsUpdate decodes a PATCH settings body. Only the mutable settings
// are accepted; any other key needs the index to be recreated.
func ParseSettingsUpdate(body []byte) (config.SettingsUpdate, *ValidationResult) {
	result := &ValidationResult{}
	var update config.SettingsUpdate

	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &raw); err != nil {
		result.AddError("request_body", "Invalid JSON in request body: "+err.Error())
		return update, result
	}

	mutable := make(map[string]bool, len(config.MutableSettingKeys))
	for _, key := range config.MutableSettingKeys {
		mutable[key] = true
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !mutable[key] {
			result.AddError(key, fmt.Sprintf("'%s' cannot be updated; changing it requires recreating the index", key))
		}
	}
	if result.HasErrors() {
		return update, result
	}

	for key, value := range raw {
		// A JSON null clears the setting
		if strings.TrimSpace(string(value)) == "null" {
			raw[key] = json.RawMessage(nullReplacement(key))
		}
	}
	normalized, _ := json.Marshal(raw)
	if err := json.Unmarshal(normalized, &update); err != nil {
		result.AddError("request_body", "Invalid settings update: "+err.Error())
		return update, result
	}
	if update.IsEmpty() {
		result.AddError("request_body", "No mutable setting provided (allowed: "+strings.Join(config.MutableSettingKeys, ", ")+")")
	}
	return update, result
}

func nullReplacement(key string) string {
	if key == "distinct_field" {
		return `""`
	}
	return `[]`
}

// ParsePagination reads page and page_size query parameters.
func ParsePagination(pageParam, pageSizeParam string) (int, int, *ValidationResult) {
	result := &ValidationResult{}
	page, pageSize := 1, defaultDocumentPageSize

	if pageParam != "" {
		value, err := strconv.Atoi(pageParam)
		if err != nil || value < 1 {
			result.AddError("page", "Page number must be a positive integer")
		} else {
			page = value
		}
	}
	if pageSizeParam != "" {
		value, err := strconv.Atoi(pageSizeParam)
		switch {
		case err != nil || value < 1:
			result.AddError("page_size", "Page size must be a positive integer")
		case value > maxDocumentPageSize:
			result.AddError("page_size", fmt.Sprintf("Page size must not exceed %d", maxDocumentPageSize))
		default:
			pageSize = value
		}
	}
	return page, pageSize, result
}

// ParseAsync reads the async query parameter.
func ParseAsync(param string) (bool, *ValidationResult) {
	result := &ValidationResult{}
	if param == "" {
		return false, result
	}
	async, err := strconv.ParseBool(param)
	if err != nil {
		result.AddError("async", "async must be true or false")
	}
	return async, result
}
