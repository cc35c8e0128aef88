package research

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestLoadRegistryEmbedded(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Len(t, reg.Procedures, 5)
	assert.Len(t, reg.Funding, 5)
	assert.Equal(t, "pozwolenie na budowę obiekt sportowy Polska procedura", reg.Procedures[2])
}

func TestFundingQueries(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)

	queries, err := reg.FundingQueries(CaseQuery{Title: "Budowa hali sportowej"})
	require.NoError(t, err)
	require.Len(t, queries, 5)
	assert.Equal(t, "MSiT dofinansowanie sport Budowa hali sportowej", queries[0])
	assert.Equal(t, "fundusze sportowe MSiT dotacje", queries[4])

	queries, err = reg.FundingQueries(CaseQuery{Title: "Hala", Category: "funding"})
	require.NoError(t, err)
	assert.Equal(t, "MSiT dofinansowanie funding Hala", queries[0])
}

func TestExaClientSearch(t *testing.T) {
	var got exaSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://msit.gov.pl/a","title":"Program A","text":"Dotacje do 1 000 000 zł"},
			{"url":"","title":"no url"},
			{"url":"https://msit.gov.pl/b","title":"Program B"}
		]}`))
	}))
	defer srv.Close()

	client := NewExaClient(srv.URL, "secret", 0)
	docs, err := client.Search(context.Background(), "dotacje MSiT")
	require.NoError(t, err)

	assert.Equal(t, "dotacje MSiT", got.Query)
	assert.Equal(t, "neural", got.Type)
	assert.Equal(t, DefaultNumResults, got.NumResults)
	assert.True(t, got.Contents.Text)

	require.Len(t, docs, 2)
	assert.Equal(t, "Program A", docs[0].Title)
	assert.Equal(t, "", docs[1].Text)
}

func TestExaClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewExaClient(srv.URL, "secret", 5).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, err = NewExaClient(srv.URL, "", 5).Search(context.Background(), "q")
	require.Error(t, err)
}

type fakeResearcher struct {
	mu      sync.Mutex
	results map[string][]Document
	fail    map[string]bool
	queries []string
}

func (f *fakeResearcher) Search(_ context.Context, query string) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.fail[query] {
		return nil, errors.New("backend down")
	}
	return f.results[query], nil
}

func fastConfig() Config {
	return Config{RateLimitRPS: 1000}
}

func TestServiceFundingDedupsAndCaps(t *testing.T) {
	reg := &Registry{Funding: []string{"q1 {{.Title}}", "q2", "q3"}}
	researcher := &fakeResearcher{
		results: map[string][]Document{
			"q1 Hala": {{URL: "u1", Text: "a"}, {URL: "u2", Text: "b"}},
			"q2":      {{URL: "u2", Text: "dup"}, {URL: "u3", Text: "c"}},
			"q3":      {{URL: "u4", Text: "d"}},
		},
		fail: map[string]bool{},
	}

	svc := NewService(researcher, reg, nil, Config{RateLimitRPS: 1000, MaxResults: 3})
	docs, err := svc.Funding(context.Background(), CaseQuery{Title: "Hala"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"u1", "u2", "u3"}, []string{docs[0].URL, docs[1].URL, docs[2].URL})
	assert.Equal(t, "b", docs[1].Text)
	assert.Equal(t, []string{"q1 Hala", "q2", "q3"}, researcher.queries)
}

func TestServiceIsolatesQueryFailures(t *testing.T) {
	reg := &Registry{Procedures: []string{"p1", "p2"}}
	researcher := &fakeResearcher{
		results: map[string][]Document{"p2": {{URL: "u", Text: "t"}}},
		fail:    map[string]bool{"p1": true},
	}
	docs, err := NewService(researcher, reg, nil, fastConfig()).Procedures(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	researcher.fail["p2"] = true
	_, err = NewService(researcher, reg, nil, fastConfig()).Procedures(context.Background())
	assert.Error(t, err)
}

type fakeFetcher struct {
	pages map[string]*Page
}

func (f fakeFetcher) Fetch(_ context.Context, url string) (*Page, error) {
	if p, ok := f.pages[url]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

func TestEnricherFillsEmptyText(t *testing.T) {
	fetcher := fakeFetcher{pages: map[string]*Page{
		"https://a.pl": {
			URL:         "https://a.pl",
			ContentType: "text/html; charset=utf-8",
			Body:        []byte(`<html><head><style>p{}</style></head><body>
<h1>Program</h1>
<script>x()</script>
<p>Nabór   do 30.06.2025</p>
</body></html>`),
		},
		"https://b.pl/doc.pdf": {
			URL:         "https://b.pl/doc.pdf",
			ContentType: "application/pdf",
			Body:        []byte("not really a pdf"),
		},
	}}

	docs := NewEnricher(fetcher).Enrich(context.Background(), []Document{
		{URL: "https://a.pl"},
		{URL: "https://b.pl/doc.pdf"},
		{URL: "https://c.pl"},
		{URL: "https://d.pl", Text: "kept"},
	})

	assert.Equal(t, "Program Nabór do 30.06.2025", docs[0].Text)
	assert.Empty(t, docs[1].Text)
	assert.Empty(t, docs[2].Text)
	assert.Equal(t, "kept", docs[3].Text)
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "Dotacja do 100 000 zł", StripMarkup("  Dotacja do 100 000 zł "))
	assert.Equal(t, "Dotacja & wsparcie", StripMarkup("<b>Dotacja</b> &amp; wsparcie"))
	assert.NotContains(t, StripMarkup(`<script>alert(1)</script>tekst`), "<script>")
}

func TestPDFTextRejectsGarbage(t *testing.T) {
	_, err := PDFText([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
	assert.True(t, isPDF("", "https://x.pl/a.PDF", nil))
	assert.True(t, isPDF("", "https://x.pl/a", []byte("%PDF-1.7")))
	assert.False(t, isPDF("text/html", "https://x.pl/a", []byte("<html>")))
}

func TestHTMLToTextPlainInput(t *testing.T) {
	assert.Equal(t, "zwykły tekst", HTMLToText("  zwykły \n tekst "))
	assert.True(t, strings.HasPrefix(HTMLToText("<p>a</p><p>b</p>"), "a"))
}
