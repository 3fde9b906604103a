package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Pass(t *testing.T) {
	doc := map[string]any{
		"CODE":  "IFS0067",
		"Title": "Intro to Financial Systems",
	}
	schema := Schema{Required: []string{"CODE", "Title"}}

	result := Validate("1", doc, schema)

	assert.Equal(t, StatusPass, result.Status)
	assert.Empty(t, result.Diagnostics)
}

func TestValidate_ReportsEveryMissingRequiredField(t *testing.T) {
	doc := map[string]any{"Title": "present"}
	schema := Schema{Required: []string{"CODE", "Title", "AGENCY"}}

	result := Validate("3", doc, schema)

	assert.Equal(t, StatusFail, result.Status)
	require.Len(t, result.Diagnostics, 2)
	fields := []string{result.Diagnostics[0].Field, result.Diagnostics[1].Field}
	assert.ElementsMatch(t, []string{"CODE", "AGENCY"}, fields)
	for _, d := range result.Diagnostics {
		assert.Equal(t, CategoryRequired, d.Category)
		assert.Equal(t, "3", d.RecordID)
	}
}

func TestValidate_EmptyStringFailsRequired(t *testing.T) {
	doc := map[string]any{"CODE": ""}
	schema := Schema{Required: []string{"CODE"}}

	result := Validate("1", doc, schema)

	assert.Equal(t, StatusFail, result.Status)
}

func TestValidate_RecommendedDoesNotFail(t *testing.T) {
	doc := map[string]any{"CODE": "IFS0067"}
	schema := Schema{
		Required:    []string{"CODE"},
		Recommended: []string{"Description"},
	}

	result := Validate("1", doc, schema)

	assert.Equal(t, StatusPass, result.Status)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, CategoryRecommended, result.Diagnostics[0].Category)
	assert.Equal(t, "Description", result.Diagnostics[0].Field)
}

func TestValidate_DatatypeDiagnosticsDoNotFail(t *testing.T) {
	doc := map[string]any{
		"CODE":      "IFS0067",
		"StartDate": "not a date",
		"Credits":   "three",
	}
	schema := Schema{
		Required: []string{"CODE"},
		Types: map[string]string{
			"StartDate": "datetime",
			"Credits":   "int",
		},
	}

	result := Validate("1", doc, schema)

	assert.Equal(t, StatusPass, result.Status)
	require.Len(t, result.Diagnostics, 2)
	for _, d := range result.Diagnostics {
		assert.Equal(t, CategoryDatatype, d.Category)
	}
}

func TestValidate_DatatypeAbsentFieldSkipped(t *testing.T) {
	doc := map[string]any{"CODE": "IFS0067"}
	schema := Schema{
		Required: []string{"CODE"},
		Types:    map[string]string{"StartDate": "datetime"},
	}

	result := Validate("1", doc, schema)

	assert.Equal(t, StatusPass, result.Status)
	assert.Empty(t, result.Diagnostics)
}

func TestValidate_NestedPaths(t *testing.T) {
	doc := map[string]any{
		"Course": map[string]any{"CourseCode": "X1"},
	}
	schema := Schema{Required: []string{"Course.CourseCode", "Course.CourseTitle"}}

	result := Validate("1", doc, schema)

	assert.Equal(t, StatusFail, result.Status)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "Course.CourseTitle", result.Diagnostics[0].Field)
}

func TestTypeMatches(t *testing.T) {
	assert.True(t, typeMatches("2020-01-01", "datetime"))
	assert.False(t, typeMatches("garbage", "datetime"))
	assert.False(t, typeMatches(12345, "datetime"))

	assert.True(t, typeMatches("text", "str"))
	assert.False(t, typeMatches(1, "str"))

	assert.True(t, typeMatches(3, "int"))
	assert.True(t, typeMatches(float64(3), "int")) // whole JSON numbers count
	assert.False(t, typeMatches(3.5, "int"))
	assert.False(t, typeMatches("3", "int"))

	assert.True(t, typeMatches(3.5, "float"))
	assert.True(t, typeMatches(true, "bool"))

	// Unknown tags never produce diagnostics.
	assert.True(t, typeMatches("anything", "mystery"))
}

func TestIsDate(t *testing.T) {
	assert.True(t, IsDate("2020-01-01T00:00:00Z"))
	assert.True(t, IsDate("January 2, 2020"))
	assert.False(t, IsDate(""))
	assert.False(t, IsDate("not a date"))
}

func TestSchemaFromClassification(t *testing.T) {
	schema := SchemaFromClassification(map[string]string{
		"CODE":        "Required",
		"Description": "Recommended",
		"Notes":       "Optional",
	})

	assert.ElementsMatch(t, []string{"CODE"}, schema.Required)
	assert.ElementsMatch(t, []string{"Description"}, schema.Recommended)
}

func TestSchemaFromSections(t *testing.T) {
	schema := SchemaFromSections(map[string]map[string]string{
		"Course": {
			"CourseCode":  "Required",
			"CourseNotes": "Optional",
		},
		"Lifecycle": {
			"Provider": "Recommended",
		},
	})

	assert.ElementsMatch(t, []string{"Course.CourseCode"}, schema.Required)
	assert.ElementsMatch(t, []string{"Lifecycle.Provider"}, schema.Recommended)
}
