package importer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Columns of the spreadsheet form of a question file, in template order.
var workbookColumns = []string{
	"question", "option_1", "option_2", "option_3", "option_4", "correct_answer", "image_link",
}

// IsWorkbook reports whether path names a spreadsheet rather than YAML.
func IsWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// ReadWorkbook decodes the first sheet of an .xlsx question file. The first
// row holds the column names; image_link may be omitted, every other column
// is required. Column order does not matter and blank rows are skipped.
func ReadWorkbook(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(cells[0]))
	for i, name := range cells[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range workbookColumns {
		if _, ok := index[name]; !ok && name != "image_link" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	var rows []Row
	for i, line := range cells[1:] {
		cell := func(name string) string {
			col, ok := index[name]
			if !ok || col >= len(line) {
				return ""
			}
			return strings.TrimSpace(line[col])
		}
		if strings.Join(line, "") == "" {
			continue
		}

		row := Row{
			Question:  cell("question"),
			Option1:   cell("option_1"),
			Option2:   cell("option_2"),
			Option3:   cell("option_3"),
			Option4:   cell("option_4"),
			ImageLink: cell("image_link"),
		}
		if v := cell("correct_answer"); v != "" {
			n, err := parseWholeNumber(v)
			if err != nil {
				return nil, &FormatError{Row: i + 2, Reason: fmt.Sprintf("correct_answer %q is not a whole number", v)}
			}
			row.CorrectAnswer = &n
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteWorkbook encodes rows as a single-sheet .xlsx question file.
func WriteWorkbook(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(workbookColumns))
	for i, name := range workbookColumns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		var correct interface{}
		if row.CorrectAnswer != nil {
			correct = *row.CorrectAnswer
		}
		values := []interface{}{
			row.Question, row.Option1, row.Option2, row.Option3, row.Option4, correct, row.ImageLink,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return nil
}

// parseWholeNumber accepts "2" as well as the "2.0" some spreadsheets store.
func parseWholeNumber(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return int(f), nil
}
