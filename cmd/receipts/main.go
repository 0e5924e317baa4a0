package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/connectors"
	imapconnector "github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/connectors/imap"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/extraction"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/listener"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/pipeline"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	setupLogging(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "export file (.xlsx, .csv, .html or .eml)")
		skip := fs.Bool("skip-extraction", false, "import without calling the extraction service")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		cfg.SkipExtraction = cfg.SkipExtraction || *skip
		stats, err := newImporter(db, cfg).Reconcile(context.Background(), *file)
		must(err)
		printStats(*file, stats)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		mailbox := fs.String("mailbox", cfg.MailListenerMailbox, "IMAP mailbox")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := imapconnector.NewConnector(cfg)
		must(err)
		fetch := connectors.NewFetchService(db, cfg, conn)
		result, err := fetch.FetchAndStore(*mailbox, *max)
		must(err)
		fmt.Printf("mail fetch done fetched=%d stored=%d ignored=%d\n", result.Fetched, result.Stored, result.Ignored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg, newImporter(db, cfg))
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(context.Background(), "imap", *messageID)
			must(err)
			fmt.Printf("processed delivery id=%d changed=%d\n", res.DeliveryID, res.Stats.Changed())
			return
		}
		processed, stats, err := processor.ProcessPending(context.Background(), *batch)
		must(err)
		fmt.Printf("processed pending deliveries=%d changed=%d rejected=%d\n", processed, stats.Changed(), len(stats.Rejected))
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "render":
		count, err := pipeline.NewRenderService(db, cfg.OutputDir).RenderAll()
		must(err)
		fmt.Printf("rendered %d receipt pages to %s\n", count, cfg.OutputDir)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		rows, err := db.ListLineItems()
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no line items to export"))
		}
		must(pipeline.ExportLineItemsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "extract:backfill":
		stats, err := pipeline.NewBackfillService(db, newEnricher(db, cfg)).Run(context.Background())
		must(err)
		fmt.Printf("backfill done examined=%d updated=%d failed=%d\n", stats.Examined, stats.Updated, stats.Failed)
	default:
		usage()
		os.Exit(1)
	}
}

func newEnricher(db *storage.DB, cfg config.Config) *extraction.Enricher {
	return extraction.NewEnricher(db, extraction.NewClient(cfg))
}

func newImporter(db *storage.DB, cfg config.Config) *pipeline.ImportService {
	return pipeline.NewImportService(db, cfg, newEnricher(db, cfg))
}

func printStats(source string, stats internal.RunStats) {
	fmt.Printf("import done source=%s newItems=%d newLineItems=%d updated=%d skipped=%d deleted=%d deletedItems=%d rejected=%d\n",
		source, stats.NewItems, stats.NewLineItems, stats.Updated, stats.Skipped, stats.Deleted, stats.DeletedItems, len(stats.Rejected))
	for _, issue := range stats.Rejected {
		fmt.Printf("  rejected row %d (number %q): %s\n", issue.Row, issue.Number, issue.Reason)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func usage() {
	fmt.Println("usage: receipts <command>")
	fmt.Println("commands:")
	fmt.Println("  import --file=./export.xlsx [--skip-extraction]")
	fmt.Println("  mail:fetch [--mailbox=INBOX] [--max=50]")
	fmt.Println("  mail:process [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  render")
	fmt.Println("  export:xlsx --out=./out/line-items.xlsx")
	fmt.Println("  extract:backfill")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
