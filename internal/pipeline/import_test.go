package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/extraction"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
)

type stubExtractor struct {
	calls int
	err   error
	fn    func(description string) internal.Extraction
}

func (s *stubExtractor) Extract(ctx context.Context, description string) (internal.Extraction, error) {
	s.calls++
	if s.err != nil {
		return internal.Extraction{}, s.err
	}
	if s.fn != nil {
		return s.fn(description), nil
	}
	return internal.Extraction{Description: description}, nil
}

func newImportService(t *testing.T, stub *stubExtractor) (*ImportService, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewImportService(db, sheetConfig(), extraction.NewEnricher(db, stub)), db
}

func rowsSheet(rows ...[]string) *internal.Sheet {
	all := [][]string{{"Item Number", "Title", "Description", "Value", "Categories"}}
	all = append(all, rows...)
	return &internal.Sheet{Source: "export.xlsx", Rows: all}
}

func TestReconcileCreatesItemsAndLineItems(t *testing.T) {
	stub := &stubExtractor{fn: func(description string) internal.Extraction {
		return internal.Extraction{
			Expiration:  "Expires 12/31/2026.",
			Notes:       "Certificate mailed to winner.",
			Description: description,
		}
	}}
	svc, db := newImportService(t, stub)

	sheet := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard .", "$250", "Dining; Experiences"},
		[]string{"139", "Case of Reds", "Twelve bottles.Hand picked.", "$480", "Dining"},
		[]string{"139", "Cellar Tour", "Call 520-838-2571 to schedule.", "$95", ""},
	)

	stats, err := svc.ReconcileSheet(context.Background(), sheet)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.NewItems != 1 || stats.NewLineItems != 3 {
		t.Fatalf("stats: %+v", stats)
	}
	if stub.calls != 3 {
		t.Fatalf("extractor calls: %d", stub.calls)
	}

	rows, err := db.ListLineItems()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("stored rows: %d", len(rows))
	}
	for i, row := range rows {
		if row.Number != 139 || row.Position != i+1 {
			t.Fatalf("row %d: number=%d position=%d", i, row.Number, row.Position)
		}
		if row.ContentHash == "" || row.RawRow == "" {
			t.Fatalf("row %d missing hash or raw row", i)
		}
		if row.Expiration != "Expires 12/31/2026." {
			t.Fatalf("row %d expiration: %q", i, row.Expiration)
		}
	}

	if rows[0].Description != "<p>An evening at the vineyard.</p>" {
		t.Fatalf("space before period survived: %q", rows[0].Description)
	}
	if rows[1].Description != "<p>Twelve bottles. Hand picked.</p>" {
		t.Fatalf("run-on sentence survived: %q", rows[1].Description)
	}
	if rows[2].Description != "<p>Call (520) 838-2571 to schedule.</p>" {
		t.Fatalf("phone not formatted: %q", rows[2].Description)
	}
	if len(rows[0].Categories) != 2 || rows[0].Categories[1] != "Experiences" {
		t.Fatalf("categories: %v", rows[0].Categories)
	}
	if rows[0].Value != 250 || rows[1].Value != 480 {
		t.Fatalf("values: %d %d", rows[0].Value, rows[1].Value)
	}
}

func TestReconcileSecondRunUpdatesSkipsAndDeletes(t *testing.T) {
	stub := &stubExtractor{}
	svc, db := newImportService(t, stub)

	first := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard.", "$250", ""},
		[]string{"139", "Case of Reds", "Twelve hand picked bottles.", "$480", ""},
		[]string{"139", "Cellar Tour", "A private tour.", "$95", ""},
	)
	if _, err := svc.ReconcileSheet(context.Background(), first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := stub.calls

	second := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard with the winemaker.", "$250", ""},
		[]string{"139", "Case of Reds", "Twelve hand picked bottles.", "$480", ""},
	)
	stats, err := svc.ReconcileSheet(context.Background(), second)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if stats.Updated != 1 || stats.Skipped != 1 || stats.Deleted != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.NewItems != 0 || stats.NewLineItems != 0 || stats.DeletedItems != 0 {
		t.Fatalf("unexpected creations or item deletions: %+v", stats)
	}
	if stub.calls != callsAfterFirst+1 {
		t.Fatalf("only the changed row should reach the extractor: %d -> %d", callsAfterFirst, stub.calls)
	}

	rows, err := db.ListLineItems()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("stored rows: %d", len(rows))
	}
	if rows[0].Description != "<p>An evening at the vineyard with the winemaker.</p>" {
		t.Fatalf("update not applied: %q", rows[0].Description)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	stub := &stubExtractor{}
	svc, _ := newImportService(t, stub)

	sheet := rowsSheet(
		[]string{"7", "Golf Foursome", "18 holes at the club.", "$600", "Sports"},
		[]string{"8", "Spa Day", "A full day of treatments.", "$180", "Wellness"},
	)

	if _, err := svc.ReconcileSheet(context.Background(), sheet); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := stub.calls

	stats, err := svc.ReconcileSheet(context.Background(), sheet)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Changed() != 0 {
		t.Fatalf("repeat import changed state: %+v", stats)
	}
	if stats.Skipped != 2 {
		t.Fatalf("skipped: %d", stats.Skipped)
	}
	if stub.calls != callsAfterFirst {
		t.Fatalf("repeat import reached the extractor: %d -> %d", callsAfterFirst, stub.calls)
	}
}

func TestReconcilePlaceholderRows(t *testing.T) {
	stub := &stubExtractor{}
	svc, db := newImportService(t, stub)

	sheet := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard.", "$250", ""},
		[]string{"", "Orphan Title", "No number on this one.", "$10", ""},
		[]string{"0", "Zero Number", "Template filler.", "", ""},
		[]string{"141", "Raffle Stub", "Held for the raffle board.", "$0", ""},
		[]string{"", "", "", "", ""},
	)

	stats, err := svc.ReconcileSheet(context.Background(), sheet)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.NewItems != 1 || stats.NewLineItems != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if len(stats.Rejected) != 3 {
		t.Fatalf("rejected: %+v", stats.Rejected)
	}

	rows, err := db.ListLineItems()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Number != 139 {
		t.Fatalf("stored rows: %+v", rows)
	}
}

func TestReconcileExtractionFailureKeepsRow(t *testing.T) {
	stub := &stubExtractor{err: errors.New("service down")}
	svc, db := newImportService(t, stub)

	sheet := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard .", "$250", ""},
	)

	stats, err := svc.ReconcileSheet(context.Background(), sheet)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.NewLineItems != 1 || len(stats.Rejected) != 0 {
		t.Fatalf("stats: %+v", stats)
	}

	rows, _ := db.ListLineItems()
	if len(rows) != 1 {
		t.Fatalf("stored rows: %d", len(rows))
	}
	if rows[0].Description != "<p>An evening at the vineyard.</p>" {
		t.Fatalf("raw description should be kept and normalized: %q", rows[0].Description)
	}
	if rows[0].Notes != "" || rows[0].Expiration != "" {
		t.Fatalf("failed extraction should leave notes and expiration empty: %+v", rows[0])
	}
	if rows[0].RawDescription != "An evening at the vineyard ." {
		t.Fatalf("raw description column: %q", rows[0].RawDescription)
	}
}

func TestReconcileRemovedItemPruned(t *testing.T) {
	stub := &stubExtractor{}
	svc, db := newImportService(t, stub)

	first := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard.", "$250", ""},
		[]string{"140", "Spa Day", "A full day of treatments.", "$180", ""},
	)
	if _, err := svc.ReconcileSheet(context.Background(), first); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard.", "$250", ""},
	)
	stats, err := svc.ReconcileSheet(context.Background(), second)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Deleted != 1 || stats.DeletedItems != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if item, _ := db.GetItemByNumber(140); item != nil {
		t.Fatal("item 140 should be pruned")
	}
	if item, _ := db.GetItemByNumber(139); item == nil {
		t.Fatal("item 139 should survive")
	}
}

func TestReconcileBadSheetLeavesStateUntouched(t *testing.T) {
	stub := &stubExtractor{}
	svc, db := newImportService(t, stub)

	good := rowsSheet(
		[]string{"139", "Wine Tasting", "An evening at the vineyard.", "$250", ""},
	)
	if _, err := svc.ReconcileSheet(context.Background(), good); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	bad := &internal.Sheet{Source: "broken.xlsx", Rows: [][]string{
		{"Completely", "Unrelated", "Headers"},
		{"1", "2", "3"},
	}}
	if _, err := svc.ReconcileSheet(context.Background(), bad); err == nil {
		t.Fatal("expected header resolution error")
	}

	rows, err := db.ListLineItems()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("a failed parse must not delete rows: %d", len(rows))
	}
}
