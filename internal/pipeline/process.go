package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
)

// ProcessingService turns fetched mail deliveries into reconcile runs. A
// delivery whose content cannot be imported is parked as "skipped" and never
// retried; infrastructure errors leave it "fetched" so the next cycle tries
// again.
type ProcessingService struct {
	db       *storage.DB
	cfg      config.Config
	importer *ImportService
}

func NewProcessingService(db *storage.DB, cfg config.Config, importer *ImportService) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, importer: importer}
}

type ProcessResult struct {
	DeliveryID int
	Stats      internal.RunStats
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	delivery, err := s.db.MustDeliveryByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessDelivery(ctx, delivery)
}

func (s *ProcessingService) ProcessPending(ctx context.Context, limit int) (int, internal.RunStats, error) {
	pending, err := s.db.ListDeliveriesByStatus("fetched", limit)
	if err != nil {
		return 0, internal.RunStats{}, err
	}

	processed := 0
	var total internal.RunStats
	for _, delivery := range pending {
		res, err := s.ProcessDelivery(ctx, delivery)
		if err != nil {
			return processed, total, err
		}
		processed++
		total.Add(res.Stats)
	}
	return processed, total, nil
}

func (s *ProcessingService) ProcessDelivery(ctx context.Context, delivery internal.Delivery) (ProcessResult, error) {
	raw, err := os.ReadFile(delivery.FileRef)
	if err != nil {
		return ProcessResult{}, err
	}

	sheet, err := ReadSheetBytes(filepath.Base(delivery.FileRef), raw)
	if err != nil {
		return s.park(delivery, err)
	}
	if _, _, err := FindHeader(sheet, s.cfg); err != nil {
		return s.park(delivery, err)
	}

	stats, err := s.importer.ReconcileSheet(ctx, sheet)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := s.db.UpdateDeliveryStatus(delivery.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{DeliveryID: delivery.ID, Stats: stats}, nil
}

func (s *ProcessingService) park(delivery internal.Delivery, cause error) (ProcessResult, error) {
	slog.Warn("delivery not importable",
		slog.Int("delivery", delivery.ID), slog.String("subject", delivery.Subject), slog.Any("error", cause))
	if err := s.db.UpdateDeliveryStatus(delivery.ID, "skipped"); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{DeliveryID: delivery.ID}, nil
}
