// Package transform maps validated source documents into the target document
// shape using a declarative mapping schema plus field overwrite/append and
// value remap rules.
package transform

import (
	"fmt"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/document"
)

// MappingSchema is a nested structure mirroring the target document shape.
// Each leaf names the flattened source path to copy from.
type MappingSchema map[string]any

// Mode selects how an overwrite rule combines with the mapped value.
type Mode string

const (
	// ModeOverwrite replaces the mapped value unconditionally.
	ModeOverwrite Mode = "overwrite"
	// ModeAppend concatenates the literal to the mapped value.
	ModeAppend Mode = "append"
)

// OverwriteRule writes a literal into the target document after mapping.
// Type ("int", "bool", "datetime" or empty for string) is applied to the
// literal before writing; a cast failure logs and leaves the field untouched.
type OverwriteRule struct {
	TargetPath string `json:"fieldName" yaml:"fieldName"`
	Value      string `json:"fieldValue" yaml:"fieldValue"`
	Mode       Mode   `json:"mode" yaml:"mode"`
	Type       string `json:"fieldType,omitempty" yaml:"fieldType,omitempty"`
}

// RemapRule normalizes a well-known enumeration after mapping, e.g. a
// yes/no field rewritten to Mandatory/Non-Mandatory canonical labels.
type RemapRule struct {
	TargetPath string            `json:"fieldName" yaml:"fieldName"`
	Values     map[string]string `json:"valueMap" yaml:"valueMap"`
}

// Transform builds the target document from source using the mapping schema,
// then applies overwrite rules in order and remap rules last. Absent or nil
// source values become empty strings in the target, never nulls, to keep
// downstream consumers contract-stable.
func Transform(source map[string]any, mapping MappingSchema, overwrites []OverwriteRule, remaps []RemapRule) map[string]any {
	flat := document.Flatten(source)
	target := make(map[string]any, len(mapping))
	applyMapping(mapping, flat, target)

	for _, rule := range overwrites {
		applyOverwrite(target, rule)
	}
	for _, rule := range remaps {
		applyRemap(target, rule)
	}
	return target
}

func applyMapping(mapping map[string]any, flat map[string]string, target map[string]any) {
	for key, spec := range mapping {
		switch leaf := spec.(type) {
		case string:
			// nil/absent source values land as "" by map lookup default.
			target[key] = flat[leaf]
		case map[string]any:
			inner := make(map[string]any, len(leaf))
			target[key] = inner
			applyMapping(leaf, flat, inner)
		default:
			zap.L().Warn("transform: mapping schema leaf is neither path nor object",
				zap.String("target_field", key))
			target[key] = ""
		}
	}
}

func applyOverwrite(target map[string]any, rule OverwriteRule) {
	literal, err := castLiteral(rule.Type, rule.Value)
	if err != nil {
		zap.L().Error("transform: overwrite literal failed type cast",
			zap.String("field", rule.TargetPath),
			zap.String("type", rule.Type),
			zap.Error(err))
		return
	}

	switch rule.Mode {
	case ModeAppend:
		current, _ := document.Traverse(target, rule.TargetPath)
		document.SetPath(target, rule.TargetPath, stringify(current)+stringify(literal))
	default:
		document.SetPath(target, rule.TargetPath, literal)
	}
}

func applyRemap(target map[string]any, rule RemapRule) {
	current, found := document.Traverse(target, rule.TargetPath)
	if !found {
		return
	}
	if mapped, known := rule.Values[stringify(current)]; known {
		document.SetPath(target, rule.TargetPath, mapped)
	}
}

// castLiteral converts an overwrite literal to its declared type. An empty
// literal casts to nothing regardless of type.
func castLiteral(fieldType, value string) (any, error) {
	if value == "" {
		return "", nil
	}
	switch fieldType {
	case "int":
		return cast.ToIntE(value)
	case "bool":
		return cast.ToBoolE(value)
	case "datetime":
		return dateparse.ParseAny(value)
	default:
		return value, nil
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}
