package connectors

import (
	"bytes"
	"log/slog"

	"github.com/jhillyerd/enmime"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/pipeline"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	cfg       config.Config
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
	Ignored int
}

func NewFetchService(db *storage.DB, cfg config.Config, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		cfg:       cfg,
		connector: connector,
		store:     NewMailStoreService(db, cfg.RawMailDir),
	}
}

// FetchAndStore pulls unread messages and records a delivery per message.
// Messages classified as exports are stored as "fetched" for the import
// loop to pick up; everything else lands as "ignored" so a rerun does not
// inspect it again.
func (s *FetchService) FetchAndStore(mailbox string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(mailbox, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		detected := s.classify(msg.Raw)
		status := "fetched"
		if !detected.IsExport {
			status = "ignored"
			slog.Debug("mail ignored", slog.String("messageId", msg.MessageID), slog.String("reason", detected.Reason))
		}
		if _, err := s.store.Store(msg, status); err != nil {
			return FetchResult{}, err
		}
		if detected.IsExport {
			res.Stored++
		} else {
			res.Ignored++
		}
	}

	return res, nil
}

func (s *FetchService) classify(raw []byte) pipeline.DetectResult {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return pipeline.DetectResult{Reason: "unreadable_mime"}
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	names := make([]string, 0, len(parts))
	for _, att := range parts {
		names = append(names, att.FileName)
	}
	return pipeline.DetectExport(names, env.HTML, s.cfg)
}
