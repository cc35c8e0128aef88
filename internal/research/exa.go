package research

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	DefaultExaURL     = "https://api.exa.ai"
	DefaultNumResults = 5
)

// ExaClient searches the web through the Exa neural search API and asks for page
// text in the same call.
type ExaClient struct {
	BaseURL    string
	APIKey     string
	NumResults int
	HTTPClient *http.Client
}

func NewExaClient(baseURL, apiKey string, numResults int) *ExaClient {
	if baseURL == "" {
		baseURL = DefaultExaURL
	}
	if numResults <= 0 {
		numResults = DefaultNumResults
	}
	return &ExaClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		NumResults: numResults,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type exaContents struct {
	Text bool `json:"text"`
}

type exaSearchRequest struct {
	Query         string      `json:"query"`
	Type          string      `json:"type"`
	UseAutoprompt bool        `json:"useAutoprompt"`
	NumResults    int         `json:"numResults"`
	Contents      exaContents `json:"contents"`
}

type exaSearchResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"results"`
}

func (c *ExaClient) Search(ctx context.Context, query string) ([]Document, error) {
	if c.APIKey == "" {
		return nil, eris.New("research: exa api key not configured")
	}

	body, err := json.Marshal(exaSearchRequest{
		Query:         query,
		Type:          "neural",
		UseAutoprompt: true,
		NumResults:    c.NumResults,
		Contents:      exaContents{Text: true},
	})
	if err != nil {
		return nil, eris.Wrap(err, "research: marshal search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "research: build search request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "research: search request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("research: search returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out exaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "research: decode search response")
	}

	docs := make([]Document, 0, len(out.Results))
	for _, r := range out.Results {
		if r.URL == "" {
			continue
		}
		docs = append(docs, Document{URL: r.URL, Title: r.Title, Text: r.Text})
	}
	return docs, nil
}
