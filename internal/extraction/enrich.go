package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
)

// Extractor is the completion service surface the enricher depends on.
type Extractor interface {
	Extract(ctx context.Context, description string) (internal.Extraction, error)
}

// Cache stores prior extractions by description hash. Entries are written
// once and never evicted.
type Cache interface {
	CacheGet(hash string) (*internal.Extraction, error)
	CachePut(hash string, ex internal.Extraction) error
}

type Enricher struct {
	cache  Cache
	client Extractor
}

func NewEnricher(cache Cache, client Extractor) *Enricher {
	return &Enricher{cache: cache, client: client}
}

// HashDescription keys the extraction cache on the raw description text.
func HashDescription(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}

// Process returns the extraction for a description, consulting the cache
// first. Cache trouble degrades to a service call plus a warning; only the
// service call itself can fail the enrichment.
func (e *Enricher) Process(ctx context.Context, description string) (internal.Extraction, error) {
	hash := HashDescription(description)

	cached, err := e.cache.CacheGet(hash)
	if err != nil {
		slog.Warn("extraction cache read failed", slog.String("hash", hash), slog.Any("error", err))
	} else if cached != nil {
		return *cached, nil
	}

	ex, err := e.client.Extract(ctx, description)
	if err != nil {
		return internal.Extraction{}, err
	}

	if err := e.cache.CachePut(hash, ex); err != nil {
		slog.Warn("extraction cache write failed", slog.String("hash", hash), slog.Any("error", err))
	}
	return ex, nil
}

// Apply merges an extraction into row attributes. A rewritten description
// replaces the raw one, notes accumulate, and a non-empty expiration notice
// wins over any prior value.
func Apply(attrs *internal.LineItemAttrs, ex internal.Extraction) {
	if desc := strings.TrimSpace(ex.Description); desc != "" {
		attrs.Description = desc
	}
	if notes := strings.TrimSpace(ex.Notes); notes != "" {
		if attrs.Notes == "" {
			attrs.Notes = notes
		} else {
			attrs.Notes += "\n\n" + notes
		}
	}
	if exp := strings.TrimSpace(ex.Expiration); exp != "" {
		attrs.Expiration = exp
	}
}
