// Package document provides the nested-document primitives shared by the
// pipeline engines: flattening to dotted-path form, path traversal, and
// canonicalization ahead of content hashing.
package document

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Flatten normalizes a nested document into a dotted-path -> scalar mapping,
// e.g. {"Course": {"CourseCode": "X1"}} -> {"Course.CourseCode": "X1"}.
// Non-string scalars are coerced to their string representation. Lists are
// leaf values. Nil values and empty branches are omitted. Flatten never
// mutates its input.
func Flatten(doc map[string]any) map[string]string {
	flat := make(map[string]string, len(doc))
	for key, val := range doc {
		flattenValue(key, val, flat)
	}
	return flat
}

func flattenValue(prefix string, val any, flat map[string]string) {
	switch v := val.(type) {
	case nil:
		// absent branch
	case map[string]any:
		for key, inner := range v {
			flattenValue(prefix+"."+key, inner, flat)
		}
	case string:
		flat[prefix] = v
	default:
		flat[prefix] = fmt.Sprint(v)
	}
}

// Traverse walks doc along a dotted path and returns the leaf value. A missing
// or non-object intermediate segment yields ok=false; it is a representable
// result, not an error.
func Traverse(doc map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, found := current[seg]
		if !found {
			zap.L().Debug("document: traversal path does not exist", zap.String("path", path))
			return nil, false
		}
		inner, isMap := next.(map[string]any)
		if !isMap {
			zap.L().Debug("document: traversal path crosses a scalar", zap.String("path", path))
			return nil, false
		}
		current = inner
	}
	val, found := current[segments[len(segments)-1]]
	return val, found
}

// SetPath writes value at the dotted path, creating intermediate objects as
// needed. An existing scalar in the middle of the path is replaced by an
// object.
func SetPath(doc map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		inner, isMap := current[seg].(map[string]any)
		if !isMap {
			inner = make(map[string]any)
			current[seg] = inner
		}
		current = inner
	}
	current[segments[len(segments)-1]] = value
}

// Clone deep-copies a document. Maps are copied recursively; slices are
// shallow-copied since the engines treat lists as leaf values.
func Clone(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, val := range doc {
		if inner, isMap := val.(map[string]any); isMap {
			out[key] = Clone(inner)
			continue
		}
		out[key] = val
	}
	return out
}
