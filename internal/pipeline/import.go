package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/extraction"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/util"
)

// ImportService reconciles an auction export against the stored items.
// Rows are matched to line items by business number and position within
// that number; the sheet is the source of truth.
type ImportService struct {
	db       *storage.DB
	cfg      config.Config
	enricher *extraction.Enricher
}

func NewImportService(db *storage.DB, cfg config.Config, enricher *extraction.Enricher) *ImportService {
	return &ImportService{db: db, cfg: cfg, enricher: enricher}
}

type lineKey struct {
	number   int
	position int
}

// Reconcile imports one export file. Unchanged rows are skipped without
// touching the extraction service, changed rows are updated in place, and
// line items absent from the sheet are deleted only after every row has
// been examined, so a truncated or unreadable sheet can never mass-delete.
func (s *ImportService) Reconcile(ctx context.Context, source string) (internal.RunStats, error) {
	sheet, err := ReadSheet(source)
	if err != nil {
		return internal.RunStats{}, err
	}
	return s.ReconcileSheet(ctx, sheet)
}

func (s *ImportService) ReconcileSheet(ctx context.Context, sheet *internal.Sheet) (internal.RunStats, error) {
	start := time.Now()

	cols, headerRow, err := FindHeader(sheet, s.cfg)
	if err != nil {
		return internal.RunStats{}, err
	}

	stored, err := s.db.ListLineItems()
	if err != nil {
		return internal.RunStats{}, err
	}
	existing := make(map[lineKey]internal.LineItemRecord, len(stored))
	for _, rec := range stored {
		existing[lineKey{rec.Number, rec.Position}] = rec
	}

	var stats internal.RunStats
	observed := map[lineKey]bool{}
	positions := map[int]int{}
	items := map[int]internal.ItemRecord{}

	for i, row := range sheet.Rows[headerRow+1:] {
		rowNum := headerRow + 2 + i

		if rowEmpty(row) {
			continue
		}

		numberCell := CellAt(row, cols.Number)
		number := parseItemNumber(numberCell)

		if number <= 0 {
			slog.Warn("skipping export row", slog.Int("row", rowNum), slog.String("number", numberCell), slog.String("reason", "missing or invalid item number"))
			stats.Rejected = append(stats.Rejected, internal.RowIssue{Row: rowNum, Number: numberCell, Reason: "missing or invalid item number"})
			continue
		}

		attrs := buildAttrs(row, cols)
		if attrs.Value <= 0 {
			slog.Warn("skipping export row", slog.Int("row", rowNum), slog.String("number", numberCell), slog.String("reason", "placeholder row without a value"))
			stats.Rejected = append(stats.Rejected, internal.RowIssue{Row: rowNum, Number: numberCell, Reason: "placeholder row without a value"})
			continue
		}

		positions[number]++
		key := lineKey{number, positions[number]}
		observed[key] = true

		current, exists := existing[key]
		if exists && current.ContentHash == attrs.ContentHash {
			stats.Skipped++
			continue
		}

		s.enrichAttrs(ctx, &attrs)

		if exists {
			if err := s.db.UpdateLineItem(current.ID, attrs); err != nil {
				s.rejectRow(&stats, rowNum, numberCell, fmt.Sprintf("update failed: %v", err))
				continue
			}
			_ = s.db.TouchItem(current.ItemID)
			stats.Updated++
			continue
		}

		item, ok := items[number]
		if !ok {
			rec, created, err := s.ensureItem(number)
			if err != nil {
				s.rejectRow(&stats, rowNum, numberCell, fmt.Sprintf("item lookup failed: %v", err))
				continue
			}
			if created {
				stats.NewItems++
			}
			items[number] = rec
			item = rec
		}

		if _, err := s.db.CreateLineItem(item.ID, key.position, attrs); err != nil {
			s.rejectRow(&stats, rowNum, numberCell, fmt.Sprintf("insert failed: %v", err))
			continue
		}
		_ = s.db.TouchItem(item.ID)
		stats.NewLineItems++
	}

	for key, rec := range existing {
		if observed[key] {
			continue
		}
		if err := s.db.DeleteLineItem(rec.ID); err != nil {
			slog.Warn("orphan delete failed", slog.Int("number", key.number), slog.Int("position", key.position), slog.Any("error", err))
			continue
		}
		_ = s.db.TouchItem(rec.ItemID)
		stats.Deleted++
	}

	deletedItems, err := s.db.DeleteEmptyItems()
	if err != nil {
		slog.Warn("empty item cleanup failed", slog.Any("error", err))
	}
	stats.DeletedItems = deletedItems

	_ = s.db.InsertRun(uuid.NewString(), sheet.Source,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{
			"newItems":     stats.NewItems,
			"newLineItems": stats.NewLineItems,
			"updated":      stats.Updated,
			"skipped":      stats.Skipped,
			"deleted":      stats.Deleted,
			"deletedItems": stats.DeletedItems,
			"rejected":     len(stats.Rejected),
		})

	return stats, nil
}

func (s *ImportService) ensureItem(number int) (internal.ItemRecord, bool, error) {
	rec, err := s.db.GetItemByNumber(number)
	if err != nil {
		return internal.ItemRecord{}, false, err
	}
	if rec != nil {
		return *rec, false, nil
	}
	created, err := s.db.CreateItem(number)
	if err != nil {
		return internal.ItemRecord{}, false, err
	}
	return created, true, nil
}

func (s *ImportService) rejectRow(stats *internal.RunStats, rowNum int, numberCell, reason string) {
	slog.Warn("export row not persisted", slog.Int("row", rowNum), slog.String("number", numberCell), slog.String("reason", reason))
	stats.Rejected = append(stats.Rejected, internal.RowIssue{Row: rowNum, Number: numberCell, Reason: reason})
}

// enrichAttrs runs the description through the extraction service, then
// normalizes every text field and formats the description as HTML, so the
// stored record is ready for rendering. Extraction failures leave the raw
// description in place; the row still imports.
func (s *ImportService) enrichAttrs(ctx context.Context, attrs *internal.LineItemAttrs) {
	if !s.cfg.SkipExtraction && strings.TrimSpace(attrs.RawDescription) != "" {
		ex, err := s.enricher.Process(ctx, attrs.RawDescription)
		if err != nil {
			slog.Warn("extraction failed, keeping raw description", slog.String("title", attrs.Title), slog.Any("error", err))
		} else {
			extraction.Apply(attrs, ex)
		}
	}

	attrs.Title = NormalizeText(attrs.Title)
	attrs.Notes = NormalizeText(attrs.Notes)
	attrs.Expiration = NormalizeText(attrs.Expiration)
	attrs.Description = Htmlify(NormalizeText(attrs.Description))
}

func buildAttrs(row []string, cols Columns) internal.LineItemAttrs {
	raw := JoinRow(row)
	desc := CellAt(row, cols.Description)
	return internal.LineItemAttrs{
		Title:          CellAt(row, cols.Title),
		Description:    desc,
		Value:          util.ParseMoney(CellAt(row, cols.Value)),
		Categories:     util.SplitList(CellAt(row, cols.Categories)),
		Notes:          CellAt(row, cols.Notes),
		Expiration:     CellAt(row, cols.Expiration),
		ContentHash:    hashRow(raw),
		RawRow:         raw,
		RawDescription: desc,
	}
}

func hashRow(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func parseItemNumber(cell string) int {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		n = int(f)
	}
	if n < 0 {
		return 0
	}
	return n
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
