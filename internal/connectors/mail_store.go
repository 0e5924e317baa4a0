package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
)

// MailStoreService writes fetched messages to the raw mail directory and
// records a delivery row for each. Files are named by content hash, so the
// same message never lands on disk twice. A redelivered message keeps the
// status it already earned.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

func (s *MailStoreService) Store(msg internal.FetchedMailMessage, status string) (internal.Delivery, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.Delivery{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.Delivery{}, err
		}
	}

	return s.db.UpsertDelivery(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, status)
}
