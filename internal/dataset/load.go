package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/instadash-cli/internal/apperr"
)

// LoadOptions controls how a file is read into a Table.
type LoadOptions struct {
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffed from the extension and header line.
	Delimiter rune
	// Sheet selects an XLSX sheet by name or 1-based index. Empty means the first sheet.
	Sheet string
	// Numbers controls locale-aware numeric coercion.
	Numbers NumberFormat
}

// SupportedExtensions lists the file extensions Load accepts.
var SupportedExtensions = []string{".csv", ".tsv", ".txt", ".xlsx", ".xlsm"}

// Load reads a CSV, TSV or XLSX file.
func Load(path string, opt LoadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		if opt.Delimiter == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
			opt.Delimiter = '\t'
		}
		return ReadCSV(f, opt)
	case ".xlsx", ".xlsm":
		return loadXLSX(path, opt)
	case ".xls":
		return nil, apperr.Input("legacy .xls workbooks are not supported; save the file as .xlsx")
	default:
		return nil, apperr.Input(fmt.Sprintf("unsupported file type %q (expected csv, tsv or xlsx)", filepath.Ext(path)))
	}
}

// ReadCSV reads delimited text. The first record is the header.
func ReadCSV(r io.Reader, opt LoadOptions) (*Table, error) {
	br := bufio.NewReader(r)
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(br)
	}
	cr := csv.NewReader(br)
	cr.Comma = opt.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Input("file is empty")
		}
		return nil, apperr.Wrap(apperr.KindInput, "read header", err)
	}
	header = append([]string(nil), header...)

	var records [][]string
	for {
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInput, fmt.Sprintf("read row %d", len(records)+2), err)
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, append([]string(nil), rec...))
	}
	return FromRecordsWithFormat(header, records, opt.Numbers), nil
}

func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	first := string(line)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	best, bestN := ',', strings.Count(first, ",")
	for _, d := range []rune{';', '\t', '|'} {
		if n := strings.Count(first, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func loadXLSX(path string, opt LoadOptions) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInput, "open xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Input("workbook has no sheets")
	}
	sheet := sheets[0]
	if opt.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			if idx, err := strconv.Atoi(opt.Sheet); err == nil && idx >= 1 && idx <= len(sheets) {
				sheet = sheets[idx-1]
			}
		}
		if sheet == "" {
			return nil, apperr.Input(fmt.Sprintf("sheet %q not found", opt.Sheet))
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInput, "read sheet "+sheet, err)
	}
	if len(rows) == 0 {
		return nil, apperr.Input("sheet " + sheet + " is empty")
	}
	header := rows[0]
	var records [][]string
	for _, rec := range rows[1:] {
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return FromRecordsWithFormat(header, records, opt.Numbers), nil
}
