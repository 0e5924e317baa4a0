package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/util"
)

// headerScanLimit bounds how deep into a sheet the header row may sit.
// Auction exports sometimes carry a banner row or two above the table.
const headerScanLimit = 5

// ReadSheet loads an auction export from disk. XLSX and CSV files are read
// directly; .eml files are unwrapped to their first spreadsheet attachment,
// falling back to an item table in the HTML body.
func ReadSheet(path string) (*internal.Sheet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadSheetBytes(filepath.Base(path), content)
}

func ReadSheetBytes(name string, content []byte) (*internal.Sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return readXLSX(name, content)
	case ".csv":
		return readCSV(name, content)
	case ".html", ".htm":
		return readHTMLTable(name, content)
	case ".eml":
		return readEML(name, content)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", name)
	}
}

// readXLSX takes the first worksheet that has any rows. Platform workbooks
// sometimes lead with an empty cover sheet.
func readXLSX(name string, content []byte) (*internal.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", name, err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) == 0 {
			continue
		}
		return &internal.Sheet{Source: name, Rows: rows}, nil
	}
	return nil, fmt.Errorf("xlsx %s has no populated worksheet", name)
}

func readCSV(name string, content []byte) (*internal.Sheet, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", name, err)
	}
	return &internal.Sheet{Source: name, Rows: rows}, nil
}

// readHTMLTable reads an export delivered as an HTML page or email body.
// Platform emails wrap everything in layout tables, so the widest table by
// row count is taken as the export; its first row is the header.
func readHTMLTable(name string, content []byte) (*internal.Sheet, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", name, err)
	}

	var best *goquery.Selection
	bestRows := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if n := table.Find("tr").Length(); n >= 2 && n > bestRows {
			best, bestRows = table, n
		}
	})
	if best == nil {
		return nil, fmt.Errorf("html %s has no item table", name)
	}

	rows := make([][]string, 0, bestRows)
	best.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return &internal.Sheet{Source: name, Rows: rows}, nil
}

func readEML(name string, content []byte) (*internal.Sheet, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("read eml %s: %w", name, err)
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for _, att := range parts {
		filename := strings.TrimSpace(att.FileName)
		if IsSpreadsheetName(filename) {
			return ReadSheetBytes(filename, att.Content)
		}
	}

	if strings.TrimSpace(env.HTML) != "" {
		if sheet, err := readHTMLTable(name, []byte(env.HTML)); err == nil {
			return sheet, nil
		}
	}
	return nil, fmt.Errorf("eml %s has no spreadsheet attachment or item table", name)
}

// IsSpreadsheetName reports whether a filename looks like a tabular export.
func IsSpreadsheetName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls") || strings.HasSuffix(lower, ".csv")
}

// Columns maps the configured export columns to their indices in the header
// row. Optional columns resolve to -1 when the export omits them.
type Columns struct {
	Number      int
	Title       int
	Description int
	Value       int
	Categories  int
	Notes       int
	Expiration  int
}

// FindHeader locates the header row within the first rows of a sheet and
// resolves the configured column names against it. The returned index is
// the header row's position; data rows follow it.
func FindHeader(sheet *internal.Sheet, cfg config.Config) (Columns, int, error) {
	limit := len(sheet.Rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	var lastErr error
	for i := 0; i < limit; i++ {
		cols, err := ResolveColumns(sheet.Rows[i], cfg)
		if err == nil {
			return cols, i, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("sheet %s is empty", sheet.Source)
	}
	return Columns{}, -1, lastErr
}

// ResolveColumns matches a candidate header row against the configured
// column names, case and punctuation insensitive. Number and Value must
// resolve, since reconciliation keys on the number and placeholder rows are
// told apart by their value; everything else degrades to -1.
func ResolveColumns(headers []string, cfg config.Config) (Columns, error) {
	lookup := map[string]int{}
	for i, h := range headers {
		key := util.NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, exists := lookup[key]; !exists {
			lookup[key] = i
		}
	}

	find := func(names []string) int {
		for _, name := range names {
			if idx, ok := lookup[util.NormalizeHeader(name)]; ok {
				return idx
			}
		}
		return -1
	}

	cols := Columns{
		Number:      find(cfg.NumberColumns),
		Title:       find(cfg.TitleColumns),
		Description: find(cfg.DescriptionColumns),
		Value:       find(cfg.ValueColumns),
		Categories:  find(cfg.CategoryColumns),
		Notes:       find(cfg.NotesColumns),
		Expiration:  find(cfg.ExpirationColumns),
	}
	if cols.Number < 0 || cols.Value < 0 {
		return Columns{}, fmt.Errorf("header row missing required columns: %s", strings.Join(headers, " | "))
	}
	return cols, nil
}

// CellAt reads a cell by index, tolerating the ragged rows short of the
// header width that excelize and csv both produce.
func CellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// JoinRow flattens a raw row for hashing and storage.
func JoinRow(row []string) string {
	trimmed := make([]string, 0, len(row))
	for _, cell := range row {
		trimmed = append(trimmed, strings.TrimSpace(cell))
	}
	return strings.Join(trimmed, " | ")
}
