package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  number INTEGER NOT NULL UNIQUE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS line_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  itemId INTEGER NOT NULL,
  position INTEGER NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  value INTEGER NOT NULL DEFAULT 0,
  categories TEXT NOT NULL DEFAULT '[]',
  notes TEXT NOT NULL DEFAULT '',
  expiration TEXT NOT NULL DEFAULT '',
  contentHash TEXT NOT NULL,
  rawRow TEXT NOT NULL,
  rawDescription TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(itemId, position),
  FOREIGN KEY(itemId) REFERENCES items(id)
);
CREATE INDEX IF NOT EXISTS idx_line_items_item ON line_items(itemId);
CREATE INDEX IF NOT EXISTS idx_line_items_hash ON line_items(contentHash);

CREATE TABLE IF NOT EXISTS extraction_cache (
  hash TEXT PRIMARY KEY,
  expiration TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS deliveries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  fileRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  source TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) GetItemByNumber(number int) (*internal.ItemRecord, error) {
	var row internal.ItemRecord
	err := d.conn.QueryRow(`
SELECT id, number, createdAt, updatedAt FROM items WHERE number = ?
`, number).Scan(&row.ID, &row.Number, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) CreateItem(number int) (internal.ItemRecord, error) {
	if _, err := d.conn.Exec(`INSERT INTO items (number) VALUES (?)`, number); err != nil {
		return internal.ItemRecord{}, err
	}
	row, err := d.GetItemByNumber(number)
	if err != nil {
		return internal.ItemRecord{}, err
	}
	if row == nil {
		return internal.ItemRecord{}, errors.New("failed to create item")
	}
	return *row, nil
}

func (d *DB) TouchItem(id int) error {
	_, err := d.conn.Exec(`UPDATE items SET updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// DeleteEmptyItems removes items left with no line items and reports how
// many were deleted.
func (d *DB) DeleteEmptyItems() (int, error) {
	result, err := d.conn.Exec(`
DELETE FROM items WHERE id NOT IN (SELECT DISTINCT itemId FROM line_items)
`)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// ListLineItems returns every line item joined with its parent's business
// number, ordered by number then position.
func (d *DB) ListLineItems() ([]internal.LineItemRecord, error) {
	rows, err := d.conn.Query(`
SELECT li.id, li.itemId, i.number, li.position, li.title, li.description,
       li.value, li.categories, li.notes, li.expiration, li.contentHash,
       li.rawRow, li.rawDescription, li.createdAt, li.updatedAt
FROM line_items li
JOIN items i ON i.id = li.itemId
ORDER BY i.number ASC, li.position ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.LineItemRecord
	for rows.Next() {
		row, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) GetLineItem(itemID, position int) (*internal.LineItemRecord, error) {
	row := d.conn.QueryRow(`
SELECT li.id, li.itemId, i.number, li.position, li.title, li.description,
       li.value, li.categories, li.notes, li.expiration, li.contentHash,
       li.rawRow, li.rawDescription, li.createdAt, li.updatedAt
FROM line_items li
JOIN items i ON i.id = li.itemId
WHERE li.itemId = ? AND li.position = ?
`, itemID, position)

	rec, err := scanLineItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *DB) CreateLineItem(itemID, position int, attrs internal.LineItemAttrs) (int64, error) {
	categoriesJSON, _ := json.Marshal(attrs.Categories)
	result, err := d.conn.Exec(`
INSERT INTO line_items (
  itemId, position, title, description, value, categories,
  notes, expiration, contentHash, rawRow, rawDescription
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, itemID, position, attrs.Title, attrs.Description, attrs.Value, string(categoriesJSON),
		attrs.Notes, attrs.Expiration, attrs.ContentHash, attrs.RawRow, attrs.RawDescription)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) UpdateLineItem(id int, attrs internal.LineItemAttrs) error {
	categoriesJSON, _ := json.Marshal(attrs.Categories)
	_, err := d.conn.Exec(`
UPDATE line_items SET
  title = ?, description = ?, value = ?, categories = ?,
  notes = ?, expiration = ?, contentHash = ?, rawRow = ?, rawDescription = ?,
  updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, attrs.Title, attrs.Description, attrs.Value, string(categoriesJSON),
		attrs.Notes, attrs.Expiration, attrs.ContentHash, attrs.RawRow, attrs.RawDescription, id)
	return err
}

func (d *DB) DeleteLineItem(id int) error {
	_, err := d.conn.Exec(`DELETE FROM line_items WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLineItem(s rowScanner) (internal.LineItemRecord, error) {
	var row internal.LineItemRecord
	var categoriesJSON string
	err := s.Scan(
		&row.ID, &row.ItemID, &row.Number, &row.Position, &row.Title, &row.Description,
		&row.Value, &categoriesJSON, &row.Notes, &row.Expiration, &row.ContentHash,
		&row.RawRow, &row.RawDescription, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return internal.LineItemRecord{}, err
	}
	_ = json.Unmarshal([]byte(categoriesJSON), &row.Categories)
	return row, nil
}

// CacheGet looks up a prior extraction by description hash. A miss returns
// (nil, nil).
func (d *DB) CacheGet(hash string) (*internal.Extraction, error) {
	var ex internal.Extraction
	err := d.conn.QueryRow(`
SELECT expiration, notes, description FROM extraction_cache WHERE hash = ?
`, hash).Scan(&ex.Expiration, &ex.Notes, &ex.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (d *DB) CachePut(hash string, ex internal.Extraction) error {
	_, err := d.conn.Exec(`
INSERT INTO extraction_cache (hash, expiration, notes, description)
VALUES (?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
  expiration = excluded.expiration,
  notes = excluded.notes,
  description = excluded.description
`, hash, ex.Expiration, ex.Notes, ex.Description)
	return err
}

func (d *DB) UpsertDelivery(provider, messageID, subject, sender, receivedAt, hash, fileRef, status string) (internal.Delivery, error) {
	_, err := d.conn.Exec(`
INSERT INTO deliveries (provider, messageId, subject, sender, receivedAt, hash, status, fileRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject = excluded.subject,
  sender = excluded.sender,
  receivedAt = excluded.receivedAt,
  hash = excluded.hash,
  fileRef = excluded.fileRef,
  updatedAt = CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, fileRef)
	if err != nil {
		return internal.Delivery{}, err
	}

	row, err := d.GetDeliveryByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.Delivery{}, err
	}
	if row == nil {
		return internal.Delivery{}, errors.New("failed to upsert delivery")
	}
	return *row, nil
}

func (d *DB) GetDeliveryByProviderMessageID(provider, messageID string) (*internal.Delivery, error) {
	var row internal.Delivery
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, fileRef
FROM deliveries WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.FileRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetDeliveryByID(id int) (*internal.Delivery, error) {
	var row internal.Delivery
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, fileRef
FROM deliveries WHERE id = ?
`, id).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.FileRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListDeliveriesByStatus(status string, limit int) ([]internal.Delivery, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, fileRef
FROM deliveries WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Delivery
	for rows.Next() {
		var row internal.Delivery
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.FileRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDeliveryStatus(deliveryID int, status string) error {
	_, err := d.conn.Exec(`UPDATE deliveries SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, deliveryID)
	return err
}

func (d *DB) MustDeliveryByProviderMessageID(provider, messageID string) (internal.Delivery, error) {
	row, err := d.GetDeliveryByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.Delivery{}, err
	}
	if row == nil {
		return internal.Delivery{}, fmt.Errorf("delivery not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) InsertRun(traceID, source string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`
INSERT INTO runs (traceId, source, timingsJson, countsJson) VALUES (?, ?, ?, ?)
`, traceID, source, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
