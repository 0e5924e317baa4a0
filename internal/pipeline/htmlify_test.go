package pipeline

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseFragment(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	return doc
}

func TestHtmlifyParagraphs(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty",
			input: "   \n  ",
			want:  "",
		},
		{
			name:  "single paragraph",
			input: "A relaxing spa day.",
			want:  "<p>A relaxing spa day.</p>",
		},
		{
			name:  "single newline becomes br",
			input: "First line\nSecond line",
			want:  "<p>First line<br>Second line</p>",
		},
		{
			name:  "markup is escaped",
			input: "Dinner & drinks <for two>",
			want:  "<p>Dinner &amp; drinks &lt;for two&gt;</p>",
		},
		{
			name:  "bare url becomes anchor",
			input: "Book at https://example.com/book",
			want:  `<p>Book at <a href="https://example.com/book">https://example.com/book</a></p>`,
		},
		{
			name:  "paragraphs split on blank lines",
			input: "First paragraph.\n\nSecond paragraph.\r\n\r\nThird.",
			want:  "<p>First paragraph.</p>\n<p>Second paragraph.</p>\n<p>Third.</p>",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Htmlify(tc.input)
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestHtmlifyLists(t *testing.T) {
	t.Run("colon lead-in becomes heading", func(t *testing.T) {
		got := Htmlify("Package includes:\n- Two night stay\n- Daily breakfast")
		doc := parseFragment(t, got)

		if h := doc.Find("h4"); h.Length() != 1 || h.Text() != "Package includes:" {
			t.Fatalf("heading: %q in %q", h.Text(), got)
		}
		items := doc.Find("ul li")
		if items.Length() != 2 {
			t.Fatalf("want 2 items, got %d in %q", items.Length(), got)
		}
		if first := items.First().Text(); first != "Two night stay" {
			t.Fatalf("first item: %q", first)
		}
	})

	t.Run("plain lead-in stays a paragraph", func(t *testing.T) {
		got := Htmlify("A getaway for two\n- Two night stay\n- Daily breakfast")
		doc := parseFragment(t, got)

		if doc.Find("h4").Length() != 0 {
			t.Fatalf("unexpected heading in %q", got)
		}
		if p := doc.Find("p"); p.Length() != 1 || p.Text() != "A getaway for two" {
			t.Fatalf("paragraph: %q in %q", p.Text(), got)
		}
		if doc.Find("ul li").Length() != 2 {
			t.Fatalf("want 2 items in %q", got)
		}
	})

	t.Run("wrapped line continues previous item", func(t *testing.T) {
		got := Htmlify("- Two night stay\nat the lodge\n- Daily breakfast")
		doc := parseFragment(t, got)

		items := doc.Find("ul li")
		if items.Length() != 2 {
			t.Fatalf("want 2 items, got %d in %q", items.Length(), got)
		}
		if first := items.First().Text(); first != "Two night stay at the lodge" {
			t.Fatalf("first item: %q", first)
		}
	})

	t.Run("multi line lead-in splits paragraph and heading", func(t *testing.T) {
		got := Htmlify("Donated by the Hillside Inn.\nYour package includes:\n- Two night stay")
		doc := parseFragment(t, got)

		if p := doc.Find("p"); p.Length() != 1 || p.Text() != "Donated by the Hillside Inn." {
			t.Fatalf("paragraph: %q in %q", p.Text(), got)
		}
		if h := doc.Find("h4"); h.Length() != 1 || h.Text() != "Your package includes:" {
			t.Fatalf("heading: %q in %q", h.Text(), got)
		}
	})

	t.Run("list block followed by paragraph block", func(t *testing.T) {
		got := Htmlify("- One\n- Two\n\nRestrictions apply.")
		doc := parseFragment(t, got)

		if doc.Find("ul li").Length() != 2 {
			t.Fatalf("want 2 items in %q", got)
		}
		if p := doc.Find("p"); p.Length() != 1 || p.Text() != "Restrictions apply." {
			t.Fatalf("paragraph: %q in %q", p.Text(), got)
		}
	})
}
