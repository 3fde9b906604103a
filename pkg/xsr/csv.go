package xsr

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CSVSource reads documents from a flat CSV file whose first row is the
// header. Every row becomes one flat document keyed by header name.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a CSVSource for the given file path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "xsr: open csv %s", s.Path)
	}
	defer f.Close()

	docs, err := decodeCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "xsr: read csv %s", s.Path)
	}

	zap.L().Info("xsr: read documents from csv", zap.String("file", s.Path), zap.Int("count", len(docs)))
	return docs, nil
}

// decodeCSV zips each data row against the header row. The documents the
// pipeline carries are schemaless, so rows decode into maps rather than
// structs.
func decodeCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}

	var docs []map[string]any
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read row")
		}
		doc := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) {
				doc[name] = row[i]
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
