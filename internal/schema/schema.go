// Package schema loads the declarative pipeline schemas (field
// classifications, expected datatypes, mapping schema, overwrite
// configuration) from JSON or YAML files.
package schema

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/transform"
)

// LoadClassification reads the flat source-side classification schema: a
// mapping from field path to "Required", "Recommended" or "Optional".
func LoadClassification(path string) (map[string]string, error) {
	var out map[string]string
	if err := loadInto(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadSections reads the sectioned target-side classification schema, keyed
// by top-level section, each mapping field name to classification.
func LoadSections(path string) (map[string]map[string]string, error) {
	var out map[string]map[string]string
	if err := loadInto(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTypes reads the expected-datatype schema: field path to a type tag
// ("datetime" or a concrete scalar type name).
func LoadTypes(path string) (map[string]string, error) {
	var out map[string]string
	if err := loadInto(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadMapping reads the mapping schema: a nested document shaped like the
// target, whose leaves name dotted source field paths.
func LoadMapping(path string) (transform.MappingSchema, error) {
	var out map[string]any
	if err := loadInto(path, &out); err != nil {
		return nil, err
	}
	return transform.MappingSchema(out), nil
}

// overwriteEntry is the on-disk shape of one overwrite configuration row.
// The boolean selects between overwrite and append semantics.
type overwriteEntry struct {
	FieldName  string `json:"fieldName" yaml:"fieldName"`
	Overwrite  bool   `json:"overwrite" yaml:"overwrite"`
	FieldValue string `json:"fieldValue" yaml:"fieldValue"`
	FieldType  string `json:"fieldType,omitempty" yaml:"fieldType,omitempty"`
}

// LoadOverwrites reads the ordered overwrite configuration.
func LoadOverwrites(path string) ([]transform.OverwriteRule, error) {
	var entries []overwriteEntry
	if err := loadInto(path, &entries); err != nil {
		return nil, err
	}
	rules := make([]transform.OverwriteRule, 0, len(entries))
	for _, e := range entries {
		mode := transform.ModeAppend
		if e.Overwrite {
			mode = transform.ModeOverwrite
		}
		rules = append(rules, transform.OverwriteRule{
			TargetPath: e.FieldName,
			Value:      e.FieldValue,
			Mode:       mode,
			Type:       e.FieldType,
		})
	}
	return rules, nil
}

// LoadRemaps reads the value remap rules.
func LoadRemaps(path string) ([]transform.RemapRule, error) {
	var out []transform.RemapRule
	if err := loadInto(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadInto(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "schema: read %s", path)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return eris.Wrapf(err, "schema: parse yaml %s", path)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrapf(err, "schema: parse json %s", path)
		}
	}
	return nil
}
