package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadTable_csv(t *testing.T) {
	csv := "\ufeff Title ,Author,Qty\nDune,Frank Herbert,3\nShort\n"
	table, err := ReadTable("books.CSV", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "Author", "Qty"}, table.Headers)
	assert.Equal(t, [][]string{{"Dune", "Frank Herbert", "3"}, {"Short", "", ""}}, table.Rows)
}

func TestReadTable_xlsx(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Course Code", "Name", "Credits"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"CS101", "Programming", 12}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ReadTable("courses.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Course Code", "Name", "Credits"}, table.Headers)
	assert.Equal(t, [][]string{{"CS101", "Programming", "12"}}, table.Rows)
}

func TestReadTable_errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		wantErr  string
	}{
		{name: "unsupported", filename: "books.pdf", content: "%PDF", wantErr: ErrUnsupportedFile.Error()},
		{name: "empty", filename: "books.csv", content: "", wantErr: "the file is empty"},
		{name: "not a workbook", filename: "books.xlsx", content: "lol", wantErr: "could not read file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(tt.filename, strings.NewReader(tt.content))
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDetectMapping(t *testing.T) {
	headers := []string{"Course-Code", "COURSE NAME", "Dept.", "level", "Title", "Notes"}
	assert.Equal(t, Mapping{
		"Course-Code": "code",
		"COURSE NAME": "title",
		"Dept.":       "department_code",
		"level":       "level",
	}, DetectMapping(KindCourses, headers))

	assert.Equal(t, Mapping{"Full Name": "name", "E-mail": "email", "Reg No": "username"},
		DetectMapping(KindStudents, []string{"Full Name", "E-mail", "Reg No"}))

	assert.Empty(t, DetectMapping("grades", headers))
}

func TestRequest_mapping(t *testing.T) {
	columns, err := resolveColumns(KindBooks, []string{"Book", "Writer", "Notes"}, Mapping{"Book": "title", "Writer": "authors", "Notes": ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"title": 0, "authors": 1}, columns)

	_, err = resolveColumns(KindStudents, []string{"Email"}, Mapping{"Email": "email"})
	if assert.Error(t, err) {
		assert.Equal(t, "no column mapped to: name", err.Error())
	}
}
