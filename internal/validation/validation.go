// Package validation evaluates documents against a declarative
// required/recommended/datatype schema.
package validation

import (
	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/document"
)

// Status is the overall outcome of validating one document.
type Status string

const (
	StatusPass Status = "Y"
	StatusFail Status = "N"
)

// Category classifies a diagnostic.
type Category string

const (
	CategoryRequired    Category = "Required"
	CategoryRecommended Category = "Recommended"
	CategoryDatatype    Category = "datatype"
)

// Diagnostic reports one issue found while validating a document. RecordID
// identifies the record positionally or by key so audit logs can trace it.
type Diagnostic struct {
	RecordID string   `json:"record_id"`
	Category Category `json:"category"`
	Field    string   `json:"field"`
}

// Result is the outcome of validating one document. Status is failed only by
// missing required fields; recommended and datatype diagnostics are
// observability signals.
type Result struct {
	Status      Status       `json:"status"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Schema declares what a valid document looks like: which dotted paths are
// required, which are recommended, and the expected type tag per path
// ("datetime" or a concrete scalar type name).
type Schema struct {
	Required    []string
	Recommended []string
	Types       map[string]string
}

// SchemaFromClassification builds a Schema from the flat source-side form: a
// mapping from field path to "Required", "Recommended" or "Optional".
func SchemaFromClassification(classes map[string]string) Schema {
	var s Schema
	for path, class := range classes {
		switch class {
		case "Required":
			s.Required = append(s.Required, path)
		case "Recommended":
			s.Recommended = append(s.Recommended, path)
		}
	}
	return s
}

// SchemaFromSections builds a Schema from the sectioned target-side form,
// where each top-level section maps field name to classification. Paths come
// out dotted as "Section.Field".
func SchemaFromSections(sections map[string]map[string]string) Schema {
	var s Schema
	for section, fields := range sections {
		for field, class := range fields {
			path := section + "." + field
			switch class {
			case "Required":
				s.Required = append(s.Required, path)
			case "Recommended":
				s.Recommended = append(s.Recommended, path)
			}
		}
	}
	return s
}

// Validate checks doc against schema and returns the full set of diagnostics.
// Every required path is checked even after the first violation, so a record
// missing two fields reports both. recordID labels the diagnostics.
func Validate(recordID string, doc map[string]any, schema Schema) Result {
	flat := document.Flatten(doc)
	result := Result{Status: StatusPass}

	for _, path := range schema.Required {
		if flat[path] == "" {
			result.Status = StatusFail
			result.Diagnostics = append(result.Diagnostics, diagnose(recordID, CategoryRequired, path))
		}
	}

	for _, path := range schema.Recommended {
		if flat[path] == "" {
			result.Diagnostics = append(result.Diagnostics, diagnose(recordID, CategoryRecommended, path))
		}
	}

	for path, expected := range schema.Types {
		val, found := document.Traverse(doc, path)
		if !found || val == nil {
			continue
		}
		if !typeMatches(val, expected) {
			result.Diagnostics = append(result.Diagnostics, diagnose(recordID, CategoryDatatype, path))
		}
	}

	return result
}

func diagnose(recordID string, category Category, field string) Diagnostic {
	d := Diagnostic{RecordID: recordID, Category: category, Field: field}
	switch category {
	case CategoryRequired:
		zap.L().Error("record does not have all Required fields",
			zap.String("record", recordID), zap.String("field", field))
	case CategoryRecommended:
		zap.L().Warn("record does not have all Recommended fields",
			zap.String("record", recordID), zap.String("field", field))
	case CategoryDatatype:
		zap.L().Warn("record does not have the expected datatype for field",
			zap.String("record", recordID), zap.String("field", field))
	}
	return d
}

func typeMatches(val any, expected string) bool {
	switch expected {
	case "datetime":
		s, isString := val.(string)
		return isString && IsDate(s)
	case "str":
		_, ok := val.(string)
		return ok
	case "int":
		switch val.(type) {
		case int, int64:
			return true
		case float64:
			f := val.(float64)
			return f == float64(int64(f))
		}
		return false
	case "float":
		switch val.(type) {
		case float64, float32:
			return true
		}
		return false
	case "bool":
		_, ok := val.(bool)
		return ok
	default:
		// Unknown type tags never produce diagnostics.
		return true
	}
}

// IsDate reports whether s can be interpreted as a date. The parse is fuzzy
// in the same sense as the upstream schema contract: any recognizable date
// layout passes.
func IsDate(s string) bool {
	if s == "" {
		return false
	}
	_, err := dateparse.ParseAny(s)
	return err == nil
}
