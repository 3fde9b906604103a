package xsr

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// XLSXSource reads documents from a spreadsheet export. The first row of the
// selected sheet is the header; each following row becomes one flat document.
type XLSXSource struct {
	Path  string
	Sheet string // empty selects the first sheet
}

// NewXLSXSource creates an XLSXSource for the given file and sheet name.
func NewXLSXSource(path, sheet string) *XLSXSource {
	return &XLSXSource{Path: path, Sheet: sheet}
}

func (s *XLSXSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	file, err := xlsx.OpenFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "xsr: open xlsx %s", s.Path)
	}
	if len(file.Sheets) == 0 {
		return nil, eris.Errorf("xsr: xlsx %s has no sheets", s.Path)
	}

	sheet := file.Sheets[0]
	if s.Sheet != "" {
		named, found := file.Sheet[s.Sheet]
		if !found {
			return nil, eris.Errorf("xsr: xlsx %s has no sheet %q", s.Path, s.Sheet)
		}
		sheet = named
	}

	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := make([]string, 0, len(sheet.Rows[0].Cells))
	for _, cell := range sheet.Rows[0].Cells {
		header = append(header, cell.String())
	}

	var docs []map[string]any
	for _, row := range sheet.Rows[1:] {
		doc := make(map[string]any, len(header))
		empty := true
		for i, cell := range row.Cells {
			if i >= len(header) {
				break
			}
			val := cell.String()
			if val != "" {
				empty = false
			}
			doc[header[i]] = val
		}
		if !empty {
			docs = append(docs, doc)
		}
	}

	zap.L().Info("xsr: read documents from xlsx", zap.String("file", s.Path), zap.Int("count", len(docs)))
	return docs, nil
}
