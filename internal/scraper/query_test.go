package scraper

import (
	"testing"

	"github.com/marcote/comphawk/internal/browser"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "strips grading company and grade",
			query: "2017 Example Card PSA 10",
			want:  "2017 Example Card",
		},
		{
			name:  "strips attached grade",
			query: "2017 Example Card BGS9.5",
			want:  "2017 Example Card",
		},
		{
			name:  "strips bare grading company",
			query: "Example Card CGC holo",
			want:  "Example Card holo",
		},
		{
			name:  "strips serial fraction",
			query: "Example Card #12/99 refractor",
			want:  "Example Card refractor",
		},
		{
			name:  "strips fraction without hash",
			query: "Example Card 045/150",
			want:  "Example Card",
		},
		{
			name:  "strips both kinds of token",
			query: "2017 Example Card #12/99 SGC 8",
			want:  "2017 Example Card",
		},
		{
			name:  "no tokens returns input unchanged",
			query: "2017 Example Card #1",
			want:  "2017 Example Card #1",
		},
		{
			name:  "query of only tokens falls back to input",
			query: "PSA 10",
			want:  "PSA 10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuery(tt.query); got != tt.want {
				t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestFilterTiles(t *testing.T) {
	input := []browser.Tile{
		{Title: "Real listing", Href: "https://example.com/1"},
		{Title: "Shop on eBay", Href: "https://example.com/ad"},
		{Title: "", Href: "https://example.com/2"},
		{Title: "No link", Href: ""},
		{Title: "Another real listing", Href: "https://example.com/3"},
	}

	got := filterTiles(input, soldPlaceholderTitles)
	if len(got) != 2 {
		t.Fatalf("kept %d tiles, want 2", len(got))
	}
	if got[0].Title != "Real listing" || got[1].Title != "Another real listing" {
		t.Errorf("kept wrong tiles: %+v", got)
	}
}
