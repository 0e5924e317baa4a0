package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/extraction"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
)

type BackfillStats struct {
	Examined int
	Updated  int
	Failed   int
}

// BackfillService replays extraction over stored line items. Rows imported
// while the extraction service was down, or before a prompt change, pick up
// their structured fields without waiting for the next export.
type BackfillService struct {
	db       *storage.DB
	enricher *extraction.Enricher
}

func NewBackfillService(db *storage.DB, enricher *extraction.Enricher) *BackfillService {
	return &BackfillService{db: db, enricher: enricher}
}

// Run re-derives description, notes and expiration from the stored raw
// description of every line item that has nothing extracted yet. Rows that
// already carry notes or an expiration are left alone, and cached
// extractions are reused, so a rerun over an enriched table is cheap.
func (s *BackfillService) Run(ctx context.Context) (BackfillStats, error) {
	var stats BackfillStats

	rows, err := s.db.ListLineItems()
	if err != nil {
		return stats, err
	}

	for _, row := range rows {
		if strings.TrimSpace(row.RawDescription) == "" {
			continue
		}
		if row.Notes != "" || row.Expiration != "" {
			continue
		}
		stats.Examined++

		ex, err := s.enricher.Process(ctx, row.RawDescription)
		if err != nil {
			stats.Failed++
			slog.Warn("backfill extraction failed",
				slog.Int("number", row.Number), slog.Int("position", row.Position), slog.Any("error", err))
			continue
		}

		attrs := internal.LineItemAttrs{
			Title:          row.Title,
			Description:    row.RawDescription,
			Value:          row.Value,
			Categories:     row.Categories,
			ContentHash:    row.ContentHash,
			RawRow:         row.RawRow,
			RawDescription: row.RawDescription,
		}
		extraction.Apply(&attrs, ex)
		attrs.Title = NormalizeText(attrs.Title)
		attrs.Notes = NormalizeText(attrs.Notes)
		attrs.Expiration = NormalizeText(attrs.Expiration)
		attrs.Description = Htmlify(NormalizeText(attrs.Description))

		if attrs.Title == row.Title && attrs.Description == row.Description &&
			attrs.Notes == row.Notes && attrs.Expiration == row.Expiration {
			continue
		}
		if err := s.db.UpdateLineItem(row.ID, attrs); err != nil {
			stats.Failed++
			slog.Warn("backfill update failed",
				slog.Int("number", row.Number), slog.Int("position", row.Position), slog.Any("error", err))
			continue
		}
		stats.Updated++
	}

	_ = s.db.SetMetadata("extraction.last_backfill", time.Now().UTC().Format(time.RFC3339))
	return stats, nil
}
