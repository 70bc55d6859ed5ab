package importer

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/chuo/core"
)

var ErrUnsupportedFile = errors.New("only .csv and .xlsx files are supported")

// Table is the content of an import file: the header row, then the data rows.
// Data rows are padded or cut to the header width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ReadTable reads a csv file, or the first sheet of an xlsx file, picked by the filename extension.
func ReadTable(filename string, r io.Reader) (Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return Table{}, core.NewFieldError("file", ErrUnsupportedFile.Error())
	}
	if err != nil {
		return Table{}, core.NewFieldError("file", "could not read file: "+errors.Cause(err).Error())
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return Table{}, core.NewFieldError("file", "the file is empty")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(headers))
		copy(row, rec)
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	return records, errors.Wrap(err, "reading csv")
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening xlsx")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	return rows, errors.Wrap(err, "reading sheet")
}
