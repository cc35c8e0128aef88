package research

import "context"

// Document is one search hit. Text may be empty when the backend returned no
// contents for the page.
type Document struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Researcher runs a single search query.
type Researcher interface {
	Search(ctx context.Context, query string) ([]Document, error)
}
