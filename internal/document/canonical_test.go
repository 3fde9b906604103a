package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertEpochDates(t *testing.T) {
	doc := map[string]any{
		"StartDate": 1577836800, // 2020-01-01T00:00:00Z
		"Lifecycle": map[string]any{
			"ModifiedTime": float64(1577836800),
		},
		"Title": 12345, // no date/time in the path, untouched
	}

	ConvertEpochDates(doc)

	assert.Equal(t, "2020-01-01T00:00:00Z", doc["StartDate"])
	modified, _ := Traverse(doc, "Lifecycle.ModifiedTime")
	assert.Equal(t, "2020-01-01T00:00:00Z", modified)
	assert.Equal(t, 12345, doc["Title"])
}

func TestConvertEpochDates_FractionalLeftAlone(t *testing.T) {
	doc := map[string]any{"StartDate": 1577836800.5}

	ConvertEpochDates(doc)

	assert.Equal(t, 1577836800.5, doc["StartDate"])
}

func TestStripHTML(t *testing.T) {
	doc := map[string]any{
		"Description": "<p>Course <b>overview</b></p>",
		"Formula":     "a < b",
		"Plain":       "no markup here",
	}

	StripHTML(doc)

	assert.Equal(t, "Course overview", doc["Description"])
	assert.Equal(t, "a < b", doc["Formula"])
	assert.Equal(t, "no markup here", doc["Plain"])
}

func TestCanonicalize_DoesNotMutateInput(t *testing.T) {
	doc := map[string]any{
		"StartDate":   1577836800,
		"Description": "<p>text</p>",
	}

	out := Canonicalize(doc)

	assert.Equal(t, 1577836800, doc["StartDate"])
	assert.Equal(t, "<p>text</p>", doc["Description"])
	assert.Equal(t, "2020-01-01T00:00:00Z", out["StartDate"])
	assert.Equal(t, "text", out["Description"])
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	doc := map[string]any{
		"b": 1,
		"a": map[string]any{"z": "v", "y": "w"},
	}

	first, err := CanonicalJSON(doc)
	require.NoError(t, err)

	second, err := CanonicalJSON(map[string]any{
		"a": map[string]any{"y": "w", "z": "v"},
		"b": 1,
	})
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.JSONEq(t, `{"a":{"y":"w","z":"v"},"b":1}`, string(first))
}
