package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/transform"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadClassification_JSON(t *testing.T) {
	path := writeTestFile(t, "classification.json", `{
		"CODE": "Required",
		"Description": "Recommended",
		"Notes": "Optional"
	}`)

	classes, err := LoadClassification(path)
	require.NoError(t, err)
	assert.Equal(t, "Required", classes["CODE"])
	assert.Equal(t, "Recommended", classes["Description"])
}

func TestLoadClassification_YAML(t *testing.T) {
	path := writeTestFile(t, "classification.yaml", "CODE: Required\nDescription: Recommended\n")

	classes, err := LoadClassification(path)
	require.NoError(t, err)
	assert.Equal(t, "Required", classes["CODE"])
}

func TestLoadSections(t *testing.T) {
	path := writeTestFile(t, "sections.json", `{
		"Course": {"CourseCode": "Required", "CourseNotes": "Optional"},
		"Lifecycle": {"Provider": "Recommended"}
	}`)

	sections, err := LoadSections(path)
	require.NoError(t, err)
	assert.Equal(t, "Required", sections["Course"]["CourseCode"])
	assert.Equal(t, "Recommended", sections["Lifecycle"]["Provider"])
}

func TestLoadMapping(t *testing.T) {
	path := writeTestFile(t, "mapping.yaml", `
Course:
  CourseCode: CODE
  CourseTitle: TITLE
`)

	mapping, err := LoadMapping(path)
	require.NoError(t, err)
	course, ok := mapping["Course"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CODE", course["CourseCode"])
}

func TestLoadTypes(t *testing.T) {
	path := writeTestFile(t, "types.json", `{"StartDate": "datetime", "Credits": "int"}`)

	types, err := LoadTypes(path)
	require.NoError(t, err)
	assert.Equal(t, "datetime", types["StartDate"])
}

func TestLoadOverwrites(t *testing.T) {
	path := writeTestFile(t, "overwrites.json", `[
		{"fieldName": "Provider", "overwrite": true, "fieldValue": "DAU"},
		{"fieldName": "CourseCode", "overwrite": false, "fieldValue": "-v2", "fieldType": ""}
	]`)

	rules, err := LoadOverwrites(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, transform.OverwriteRule{
		TargetPath: "Provider", Value: "DAU", Mode: transform.ModeOverwrite,
	}, rules[0])
	assert.Equal(t, transform.ModeAppend, rules[1].Mode)
}

func TestLoadRemaps(t *testing.T) {
	path := writeTestFile(t, "remaps.json", `[
		{"fieldName": "CourseType", "valueMap": {"y": "Mandatory", "n": "Non-Mandatory"}}
	]`)

	rules, err := LoadRemaps(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "CourseType", rules[0].TargetPath)
	assert.Equal(t, "Mandatory", rules[0].Values["y"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadClassification(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeTestFile(t, "bad.json", `{not json`)

	_, err := LoadClassification(path)
	assert.Error(t, err)
}
