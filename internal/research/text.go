package research

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	rpdf "rsc.io/pdf"
)

var strictPolicy = bluemonday.StrictPolicy()

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLToText renders a page as plain text, dropping scripts and styles.
func HTMLToText(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return StripMarkup(page)
	}
	doc.Find("script, style, noscript").Remove()
	return normalizeSpace(doc.Text())
}

// StripMarkup removes any HTML from model or search output before it is stored.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// PDFText extracts the text layer of a PDF. Malformed files are reported as
// errors rather than panics.
func PDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("research: pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			b.WriteString(fragment.S)
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}
	return normalizeSpace(b.String()), nil
}

func isPDF(contentType, url string, body []byte) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf") ||
		strings.HasSuffix(strings.ToLower(url), ".pdf") ||
		bytes.HasPrefix(body, []byte("%PDF"))
}
