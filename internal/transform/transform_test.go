package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/document"
)

func TestTransform_Mapping(t *testing.T) {
	source := map[string]any{
		"CODE":  "IFS0067",
		"TITLE": "Intro",
		"Depth": map[string]any{"Level": "3"},
	}
	mapping := MappingSchema{
		"Course": map[string]any{
			"CourseCode":  "CODE",
			"CourseTitle": "TITLE",
			"CourseLevel": "Depth.Level",
		},
	}

	target := Transform(source, mapping, nil, nil)

	course, ok := target["Course"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "IFS0067", course["CourseCode"])
	assert.Equal(t, "Intro", course["CourseTitle"])
	assert.Equal(t, "3", course["CourseLevel"])
}

func TestTransform_AbsentSourceBecomesEmptyString(t *testing.T) {
	source := map[string]any{"CODE": "IFS0067"}
	mapping := MappingSchema{
		"Course": map[string]any{
			"CourseCode":  "CODE",
			"CourseTitle": "TITLE", // not present in source
		},
	}

	target := Transform(source, mapping, nil, nil)

	course := target["Course"].(map[string]any)
	assert.Equal(t, "", course["CourseTitle"])
}

func TestTransform_OverwriteReplaces(t *testing.T) {
	source := map[string]any{"PROVIDER": "old"}
	mapping := MappingSchema{"Provider": "PROVIDER"}
	overwrites := []OverwriteRule{
		{TargetPath: "Provider", Value: "DAU", Mode: ModeOverwrite},
	}

	target := Transform(source, mapping, overwrites, nil)

	assert.Equal(t, "DAU", target["Provider"])
}

func TestTransform_OverwriteNestedPathCreated(t *testing.T) {
	target := Transform(map[string]any{}, MappingSchema{}, []OverwriteRule{
		{TargetPath: "Lifecycle.Provider", Value: "DAU", Mode: ModeOverwrite},
	}, nil)

	val, ok := document.Traverse(target, "Lifecycle.Provider")
	require.True(t, ok)
	assert.Equal(t, "DAU", val)
}

func TestTransform_Append(t *testing.T) {
	source := map[string]any{"CODE": "IFS0067"}
	mapping := MappingSchema{"CourseCode": "CODE"}
	overwrites := []OverwriteRule{
		{TargetPath: "CourseCode", Value: "-v2", Mode: ModeAppend},
	}

	target := Transform(source, mapping, overwrites, nil)

	assert.Equal(t, "IFS0067-v2", target["CourseCode"])
}

func TestTransform_AppendToAbsentField(t *testing.T) {
	target := Transform(map[string]any{}, MappingSchema{}, []OverwriteRule{
		{TargetPath: "Suffix", Value: "tail", Mode: ModeAppend},
	}, nil)

	assert.Equal(t, "tail", target["Suffix"])
}

func TestTransform_OverwriteTypedLiterals(t *testing.T) {
	target := Transform(map[string]any{}, MappingSchema{}, []OverwriteRule{
		{TargetPath: "Credits", Value: "3", Mode: ModeOverwrite, Type: "int"},
		{TargetPath: "Online", Value: "true", Mode: ModeOverwrite, Type: "bool"},
		{TargetPath: "Start", Value: "2020-01-01", Mode: ModeOverwrite, Type: "datetime"},
	}, nil)

	assert.Equal(t, 3, target["Credits"])
	assert.Equal(t, true, target["Online"])
	start, ok := target["Start"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2020, start.Year())
}

func TestTransform_OverwriteCastFailureLeavesFieldUntouched(t *testing.T) {
	source := map[string]any{"CREDITS": "mapped"}
	mapping := MappingSchema{"Credits": "CREDITS"}
	overwrites := []OverwriteRule{
		{TargetPath: "Credits", Value: "not-a-number", Mode: ModeOverwrite, Type: "int"},
	}

	target := Transform(source, mapping, overwrites, nil)

	assert.Equal(t, "mapped", target["Credits"])
}

func TestTransform_Remap(t *testing.T) {
	source := map[string]any{"MANDATORY": "y"}
	mapping := MappingSchema{"CourseType": "MANDATORY"}
	remaps := []RemapRule{
		{TargetPath: "CourseType", Values: map[string]string{
			"y": "Mandatory",
			"n": "Non-Mandatory",
		}},
	}

	target := Transform(source, mapping, nil, remaps)

	assert.Equal(t, "Mandatory", target["CourseType"])
}

func TestTransform_RemapUnknownValueUnchanged(t *testing.T) {
	source := map[string]any{"MANDATORY": "maybe"}
	mapping := MappingSchema{"CourseType": "MANDATORY"}
	remaps := []RemapRule{
		{TargetPath: "CourseType", Values: map[string]string{"y": "Mandatory"}},
	}

	target := Transform(source, mapping, nil, remaps)

	assert.Equal(t, "maybe", target["CourseType"])
}

func TestTransform_RemapAbsentPathIgnored(t *testing.T) {
	target := Transform(map[string]any{}, MappingSchema{}, nil, []RemapRule{
		{TargetPath: "Nope", Values: map[string]string{"y": "Mandatory"}},
	})

	_, found := target["Nope"]
	assert.False(t, found)
}

func TestTransform_OverwritesRunBeforeRemaps(t *testing.T) {
	overwrites := []OverwriteRule{
		{TargetPath: "CourseType", Value: "y", Mode: ModeOverwrite},
	}
	remaps := []RemapRule{
		{TargetPath: "CourseType", Values: map[string]string{"y": "Mandatory"}},
	}

	target := Transform(map[string]any{}, MappingSchema{}, overwrites, remaps)

	assert.Equal(t, "Mandatory", target["CourseType"])
}
