package pipeline

import (
	"strings"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/config"
)

type DetectResult struct {
	IsExport bool
	Reason   string
}

// DetectExport decides whether a fetched message carries an auction export.
// A spreadsheet attachment always qualifies. Without one, the HTML body must
// contain a table whose header row resolves against the configured columns,
// which keeps donor thank-you notes and platform newsletters out of the
// import queue even when they are built from layout tables.
func DetectExport(attachmentNames []string, htmlBody string, cfg config.Config) DetectResult {
	for _, name := range attachmentNames {
		if IsSpreadsheetName(name) {
			return DetectResult{IsExport: true, Reason: "spreadsheet_attachment"}
		}
	}

	if strings.TrimSpace(htmlBody) != "" {
		sheet, err := readHTMLTable("body.html", []byte(htmlBody))
		if err == nil {
			if _, _, err := FindHeader(sheet, cfg); err == nil {
				return DetectResult{IsExport: true, Reason: "html_item_table"}
			}
		}
	}

	return DetectResult{IsExport: false, Reason: "no_export_content"}
}
