package models

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// PreviewRowLimit caps the data rows returned by sheet previews.
const PreviewRowLimit = 5

// Workbook is an in-memory view of an uploaded spreadsheet: sheet names in
// file order, each sheet a slice of string rows. Pure data; building one has
// no side effects.
type Workbook struct {
	sheetNames []string
	sheets     map[string][][]string
}

type SheetInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

type SheetPreview struct {
	SheetName string     `json:"sheet_name"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
}

// ParseWorkbook parses raw upload bytes into a Workbook. The filename's
// extension selects the parser: .csv goes through encoding/csv as a single
// synthetic sheet, everything else through excelize.
func ParseWorkbook(data []byte, filename string) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".csv" {
		return parseCSV(data)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnreadableFile
	}
	defer f.Close()

	wb := &Workbook{sheets: map[string][][]string{}}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, ErrUnreadableFile
		}
		wb.sheetNames = append(wb.sheetNames, name)
		wb.sheets[name] = rows
	}
	return wb, nil
}

func parseCSV(data []byte) (*Workbook, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, ErrUnreadableFile
	}
	return &Workbook{
		sheetNames: []string{"Sheet1"},
		sheets:     map[string][][]string{"Sheet1": rows},
	}, nil
}

// AnalyzeSheets lists every sheet with its row and column counts.
func (w *Workbook) AnalyzeSheets() []SheetInfo {
	infos := make([]SheetInfo, 0, len(w.sheetNames))
	for _, name := range w.sheetNames {
		rows := w.sheets[name]
		cols := 0
		for _, row := range rows {
			if len(row) > cols {
				cols = len(row)
			}
		}
		infos = append(infos, SheetInfo{Name: name, Rows: len(rows), Columns: cols})
	}
	return infos
}

// SheetRows returns all rows of the named sheet.
func (w *Workbook) SheetRows(name string) ([][]string, error) {
	rows, ok := w.sheets[name]
	if !ok {
		return nil, ErrInvalidSheet
	}
	return rows, nil
}

// PreviewSheet returns the header row plus up to limit data rows. Cells are
// already display strings; short rows are padded to the header width.
func (w *Workbook) PreviewSheet(name string, limit int) (*SheetPreview, error) {
	rows, err := w.SheetRows(name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = PreviewRowLimit
	}

	preview := &SheetPreview{SheetName: name}
	if len(rows) == 0 {
		return preview, nil
	}
	preview.Headers = rows[0]

	for _, row := range rows[1:] {
		if len(preview.Rows) >= limit {
			break
		}
		preview.Rows = append(preview.Rows, padRow(row, len(preview.Headers)))
	}
	return preview, nil
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
