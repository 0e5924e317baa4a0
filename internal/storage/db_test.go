package storage

import (
	"path/filepath"
	"testing"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLineItemRoundTrip(t *testing.T) {
	db := openTestDB(t)

	item, err := db.CreateItem(139)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	attrs := internal.LineItemAttrs{
		Title:       "Wine Tasting",
		Description: "An evening at the vineyard.",
		Value:       250,
		Categories:  []string{"Dining", "Experiences"},
		ContentHash: "abc123",
		RawRow:      "139 | Wine Tasting | An evening at the vineyard. | $250",
	}
	if _, err := db.CreateLineItem(item.ID, 1, attrs); err != nil {
		t.Fatalf("create line item: %v", err)
	}

	got, err := db.GetLineItem(item.ID, 1)
	if err != nil {
		t.Fatalf("get line item: %v", err)
	}
	if got == nil {
		t.Fatal("line item not found")
	}
	if got.Number != 139 {
		t.Fatalf("joined number: got %d want 139", got.Number)
	}
	if got.Title != attrs.Title || got.Value != 250 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Categories) != 2 || got.Categories[0] != "Dining" {
		t.Fatalf("categories: got %v", got.Categories)
	}

	attrs.Notes = "Must book 30 days ahead."
	attrs.ContentHash = "def456"
	if err := db.UpdateLineItem(got.ID, attrs); err != nil {
		t.Fatalf("update line item: %v", err)
	}
	got, err = db.GetLineItem(item.ID, 1)
	if err != nil {
		t.Fatalf("reread line item: %v", err)
	}
	if got.Notes != "Must book 30 days ahead." || got.ContentHash != "def456" {
		t.Fatalf("update not applied: %+v", got)
	}

	missing, err := db.GetLineItem(item.ID, 99)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing position, got %+v", missing)
	}
}

func TestListLineItemsOrder(t *testing.T) {
	db := openTestDB(t)

	second, _ := db.CreateItem(202)
	first, _ := db.CreateItem(101)
	for _, pos := range []int{2, 1} {
		if _, err := db.CreateLineItem(first.ID, pos, internal.LineItemAttrs{Title: "a", ContentHash: "h", RawRow: "r"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := db.CreateLineItem(second.ID, 1, internal.LineItemAttrs{Title: "b", ContentHash: "h", RawRow: "r"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows, err := db.ListLineItems()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows want 3", len(rows))
	}
	if rows[0].Number != 101 || rows[0].Position != 1 {
		t.Fatalf("order: first row %d/%d", rows[0].Number, rows[0].Position)
	}
	if rows[2].Number != 202 {
		t.Fatalf("order: last row number %d", rows[2].Number)
	}
}

func TestDeleteEmptyItems(t *testing.T) {
	db := openTestDB(t)

	kept, _ := db.CreateItem(1)
	if _, err := db.CreateLineItem(kept.ID, 1, internal.LineItemAttrs{Title: "t", ContentHash: "h", RawRow: "r"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.CreateItem(2); err != nil {
		t.Fatalf("create empty item: %v", err)
	}

	deleted, err := db.DeleteEmptyItems()
	if err != nil {
		t.Fatalf("delete empty: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted %d items want 1", deleted)
	}
	if row, _ := db.GetItemByNumber(2); row != nil {
		t.Fatal("empty item survived")
	}
	if row, _ := db.GetItemByNumber(1); row == nil {
		t.Fatal("non-empty item was deleted")
	}
}

func TestExtractionCache(t *testing.T) {
	db := openTestDB(t)

	hit, err := db.CacheGet("nope")
	if err != nil {
		t.Fatalf("miss lookup: %v", err)
	}
	if hit != nil {
		t.Fatalf("expected miss, got %+v", hit)
	}

	want := internal.Extraction{
		Expiration:  "Expires 12/31/2026.",
		Notes:       "Gift certificate mailed separately.",
		Description: "A weekend stay for two.",
	}
	if err := db.CachePut("hash1", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.CachePut("hash1", want); err != nil {
		t.Fatalf("repeat put: %v", err)
	}

	got, err := db.CacheGet("hash1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	if v, err := db.GetMetadata("missing"); err != nil || v != nil {
		t.Fatalf("missing key: v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.SetMetadata("k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := db.GetMetadata("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v == nil || *v != "v2" {
		t.Fatalf("got %v want v2", v)
	}
}
