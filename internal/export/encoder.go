package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tealeg/xlsx/v3"
)

// Format is an export file format
type Format string

// Supported formats
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	delimiter       = ","
	rowSeparator    = "\n"
	jsonIndent      = "  "
	xlsxColumnWidth = 18
)

// ParseFormat maps a case-insensitive name to a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	case "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv;charset=utf-8;"
	case FormatJSON:
		return "application/json;charset=utf-8;"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Filename returns the download name for a catalog export
func (f Format) Filename(catalog string) string {
	return catalog + "." + string(f)
}

// Encode renders records in format. Zero records produce no output.
func Encode(format Format, records []Record, sheetName string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ToDelimitedText(records), nil
	case FormatJSON:
		return ToStructuredText(records)
	case FormatXLSX:
		return ToSpreadsheet(records, sheetName)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// ToDelimitedText renders comma separated rows. The header is the keys of the
// first record. Values containing the delimiter, a quote or a line break are
// quoted with inner quotes doubled. Rows are joined by "\n" without a trailing
// newline.
func ToDelimitedText(records []Record) []byte {
	if len(records) == 0 {
		return nil
	}

	keys := records[0].Keys()
	var sb strings.Builder
	sb.WriteString(strings.Join(keys, delimiter))

	for _, rec := range records {
		sb.WriteString(rowSeparator)
		for i, key := range keys {
			if i > 0 {
				sb.WriteString(delimiter)
			}
			value, _ := rec.Get(key)
			sb.WriteString(quoteCell(text(value)))
		}
	}
	return []byte(sb.String())
}

func quoteCell(s string) string {
	if !strings.ContainsAny(s, delimiter+"\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ToStructuredText renders records as a JSON array indented by two spaces
func ToStructuredText(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}

	// json.Marshal would re-escape <, > and & in values that MarshalJSON left literal
	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return bytes.TrimRight(out.Bytes(), "\n"), nil
}

// ToSpreadsheet renders records as an XLSX workbook with one sheet
func ToSpreadsheet(records []Record, sheetName string) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if sheetName == "" {
		sheetName = "Export"
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	keys := records[0].Keys()
	headerRow := sheet.AddRow()
	for _, key := range keys {
		cell := headerRow.AddCell()
		cell.Value = key
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, rec := range records {
		row := sheet.AddRow()
		for _, key := range keys {
			value, _ := rec.Get(key)
			cell := row.AddCell()
			switch v := value.(type) {
			case int:
				cell.SetInt(v)
			default:
				cell.Value = text(value)
			}
		}
	}

	for i := range keys {
		sheet.SetColWidth(i+1, i+1, xlsxColumnWidth)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write spreadsheet to buffer: %w", err)
	}
	return buffer.Bytes(), nil
}
