package research

import (
	"context"

	"go.uber.org/zap"
)

// Enricher fills in the text of documents the search backend returned without
// contents.
type Enricher struct {
	fetcher Fetcher
}

func NewEnricher(fetcher Fetcher) *Enricher {
	return &Enricher{fetcher: fetcher}
}

// Enrich fetches every document with empty text. Fetch failures leave the document
// unchanged.
func (e *Enricher) Enrich(ctx context.Context, docs []Document) []Document {
	for i := range docs {
		if docs[i].Text != "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		text, err := e.pageText(ctx, docs[i].URL)
		if err != nil {
			zap.L().Warn("research: enrich document failed", zap.String("url", docs[i].URL), zap.Error(err))
			continue
		}
		docs[i].Text = text
	}
	return docs
}

func (e *Enricher) pageText(ctx context.Context, url string) (string, error) {
	page, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if isPDF(page.ContentType, page.URL, page.Body) {
		return PDFText(page.Body)
	}
	return HTMLToText(string(page.Body)), nil
}
