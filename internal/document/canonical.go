package document

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Canonicalize returns a copy of doc with epoch date fields converted to
// timestamps and HTML leaves reduced to plain text. The result is the form
// the content hash is computed over; the input document is left untouched.
func Canonicalize(doc map[string]any) map[string]any {
	out := Clone(doc)
	ConvertEpochDates(out)
	StripHTML(out)
	return out
}

// ConvertEpochDates rewrites, in place, any field whose path mentions "date"
// or "time" and whose value is an integer epoch into an RFC 3339 UTC
// timestamp string.
func ConvertEpochDates(doc map[string]any) {
	for path := range Flatten(doc) {
		lower := strings.ToLower(path)
		if !strings.Contains(lower, "date") && !strings.Contains(lower, "time") {
			continue
		}
		val, found := Traverse(doc, path)
		if !found {
			continue
		}
		if epoch, isEpoch := asEpoch(val); isEpoch {
			SetPath(doc, path, time.Unix(epoch, 0).UTC().Format(time.RFC3339))
		}
	}
}

func asEpoch(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		// JSON numbers decode as float64; only whole values are epochs.
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// StripHTML rewrites, in place, any string leaf containing markup into its
// extracted text.
func StripHTML(doc map[string]any) {
	for path, val := range Flatten(doc) {
		if !strings.Contains(val, "<") {
			continue
		}
		text, stripped := htmlToText(val)
		if stripped {
			SetPath(doc, path, text)
		}
	}
}

// htmlToText reports whether s contains HTML elements and, if so, returns the
// document text. Plain strings that merely contain "<" come back unchanged.
func htmlToText(s string) (string, bool) {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		zap.L().Debug("document: html parse failed", zap.Error(err))
		return s, false
	}
	if parsed.Find("body").Children().Length() == 0 {
		return s, false
	}
	return strings.TrimSpace(parsed.Text()), true
}

// CanonicalJSON serializes doc deterministically: encoding/json emits map
// keys in sorted order at every level.
func CanonicalJSON(doc map[string]any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "document: canonical serialization")
	}
	return data, nil
}
