package pipeline

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/storage"
	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal/util"
)

// RenderService writes one standalone HTML document per line item, named
// <number>-<position>-<slug>.html.
type RenderService struct {
	db        *storage.DB
	outputDir string
	policy    *bluemonday.Policy
}

func NewRenderService(db *storage.DB, outputDir string) *RenderService {
	return &RenderService{db: db, outputDir: outputDir, policy: fragmentPolicy()}
}

// fragmentPolicy allowlists exactly the markup Htmlify produces. Anything
// else in stored text is stripped before it reaches a document.
func fragmentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements("p", "br", "ul", "li", "h4")
	p.AllowAttrs("href").OnElements("a")
	return p
}

var docTemplate = template.Must(template.New("lineitem").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article class="line-item">
<header>
<h1>{{.Title}}</h1>
<p class="item-number">Item #{{.Number}}{{if gt .Value 0}} &middot; Value ${{.Value}}{{end}}</p>
{{if .Categories}}<p class="categories">{{.Categories}}</p>
{{end}}</header>
<section class="description">
{{.Description}}
</section>
{{if .Notes}}<section class="notes">
{{.Notes}}
</section>
{{end}}{{if .Expiration}}<p class="expiration">{{.Expiration}}</p>
{{end}}</article>
</body>
</html>
`))

type docData struct {
	Number      int
	Title       string
	Value       int
	Categories  string
	Description template.HTML
	Notes       template.HTML
	Expiration  string
}

// RenderAll regenerates every document and reports how many were written.
func (s *RenderService) RenderAll() (int, error) {
	rows, err := s.db.ListLineItems()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return 0, err
	}

	for _, row := range rows {
		if err := s.renderOne(row); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func (s *RenderService) renderOne(row internal.LineItemRecord) error {
	data := docData{
		Number:     row.Number,
		Title:      row.Title,
		Value:      row.Value,
		Categories: strings.Join(row.Categories, ", "),
		// descriptions are stored as formatted markup; notes are plain text
		Description: s.fragment(row.Description),
		Notes:       s.fragment(Htmlify(row.Notes)),
		Expiration:  row.Expiration,
	}

	var buf bytes.Buffer
	if err := docTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %d-%d: %w", row.Number, row.Position, err)
	}

	name := fmt.Sprintf("%d-%d-%s.html", row.Number, row.Position, util.Slugify(row.Title))
	path := filepath.Join(s.outputDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *RenderService) fragment(markup string) template.HTML {
	return template.HTML(s.policy.Sanitize(markup))
}
