package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/connectors"
	imapconnector "github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/connectors/imap"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/extraction"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/pipeline"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
)

// Service polls the auction mailbox on an interval, imports every export it
// finds, and re-renders the receipt pages when an import changed anything.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	mailConnector, err := imapconnector.NewConnector(s.cfg)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerMailbox, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	enricher := extraction.NewEnricher(s.db, extraction.NewClient(s.cfg))
	importer := pipeline.NewImportService(s.db, s.cfg, enricher)
	processor := pipeline.NewProcessingService(s.db, s.cfg, importer)
	processed, stats, err := processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch)
	if err != nil {
		return err
	}

	rendered := 0
	if s.cfg.MailListenerAutoRender && stats.Changed() > 0 {
		rendered, err = pipeline.NewRenderService(s.db, s.cfg.OutputDir).RenderAll()
		if err != nil {
			return err
		}
	}

	_ = s.db.SetMetadata("listener.last_cycle", time.Now().UTC().Format(time.RFC3339))
	fmt.Printf("listener cycle done fetched=%d stored=%d ignored=%d processed=%d changed=%d rendered=%d\n",
		fetchResult.Fetched, fetchResult.Stored, fetchResult.Ignored, processed, stats.Changed(), rendered)
	return nil
}
