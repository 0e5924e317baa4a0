package pipeline

import (
	"html"
	"regexp"
	"strings"
)

var (
	reBlockSplit = regexp.MustCompile(`(\r?\n){2,}`)
	reURL        = regexp.MustCompile(`https?://\S+`)
)

// Htmlify renders normalized item text as an HTML fragment. Blank lines
// separate blocks. A block containing "- " bullets becomes a list, with a
// colon-ended lead-in promoted to a heading; anything else becomes a
// paragraph with single newlines kept as <br>. Text is escaped before bare
// URLs are turned into anchors.
func Htmlify(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	var blocks []string
	for _, raw := range reBlockSplit.Split(trimmed, -1) {
		lines := blockLines(raw)
		if len(lines) == 0 {
			continue
		}
		if isListBlock(lines) {
			blocks = append(blocks, renderList(lines)...)
		} else {
			blocks = append(blocks, renderParagraph(lines))
		}
	}
	return strings.Join(blocks, "\n")
}

func blockLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func isListBlock(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, "- ") {
			return true
		}
	}
	return false
}

func renderList(lines []string) []string {
	first := 0
	for first < len(lines) && !strings.HasPrefix(lines[first], "- ") {
		first++
	}

	var out []string
	if preamble := lines[:first]; len(preamble) > 0 {
		last := preamble[len(preamble)-1]
		if strings.HasSuffix(last, ":") {
			if len(preamble) > 1 {
				out = append(out, renderParagraph(preamble[:len(preamble)-1]))
			}
			out = append(out, "<h4>"+inline(last)+"</h4>")
		} else {
			out = append(out, renderParagraph(preamble))
		}
	}

	var items []string
	for _, line := range lines[first:] {
		if strings.HasPrefix(line, "- ") {
			items = append(items, inline(strings.TrimSpace(line[2:])))
		} else if len(items) > 0 {
			// wrapped bullet text continues the previous item
			items[len(items)-1] += " " + inline(line)
		}
	}

	var b strings.Builder
	b.WriteString("<ul>\n")
	for _, item := range items {
		b.WriteString("  <li>")
		b.WriteString(item)
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>")
	return append(out, b.String())
}

func renderParagraph(lines []string) string {
	escaped := make([]string, 0, len(lines))
	for _, line := range lines {
		escaped = append(escaped, inline(line))
	}
	return "<p>" + strings.Join(escaped, "<br>") + "</p>"
}

func inline(line string) string {
	escaped := html.EscapeString(line)
	return reURL.ReplaceAllString(escaped, `<a href="$0">$0</a>`)
}
