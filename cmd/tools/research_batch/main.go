// Command research_batch asks a running server to research funding for a list
// of cases and prints a per-case report.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
)

type researchResponse struct {
	Success       bool   `json:"success"`
	Count         int    `json:"count"`
	Error         string `json:"error"`
	Opportunities []struct {
		Name           string  `json:"name"`
		RelevanceScore float64 `json:"relevance_score"`
		IsExpired      bool    `json:"is_expired"`
	} `json:"opportunities"`
}

type caseMetric struct {
	CaseID     string
	DryRun     bool
	HTTPStatus int
	Duration   time.Duration
	Count      int
	Expired    int
	TopName    string
	TopScore   float64
	Error      string
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8081", "API base URL")
	token := flag.String("token", "", "Bearer token (or use CASEMATCH_TOKEN env)")
	casesCSV := flag.String("cases", "", "Comma-separated list of case IDs")
	casesFile := flag.String("cases-file", "", "Path to file with one case ID per line")
	rateLimitMs := flag.Int("rate-limit-ms", 2000, "Delay between case calls in milliseconds")
	timeoutSec := flag.Int("timeout-sec", 300, "HTTP timeout in seconds")
	dryRun := flag.Bool("dry-run", false, "Print planned calls only; do not execute")
	flag.Parse()

	bearer := strings.TrimSpace(*token)
	if bearer == "" {
		bearer = strings.TrimSpace(os.Getenv("CASEMATCH_TOKEN"))
	}

	ids, err := loadCaseIDs(*casesCSV, *casesFile)
	if err != nil {
		exitErr(err)
	}
	if len(ids) == 0 {
		exitErr(errors.New("no cases provided: use -cases or -cases-file"))
	}
	if *timeoutSec <= 0 {
		exitErr(errors.New("timeout-sec must be > 0"))
	}

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}
	metrics := make([]caseMetric, 0, len(ids))

	for idx, id := range ids {
		metric := caseMetric{CaseID: id, DryRun: *dryRun}
		start := time.Now()

		reqURL := buildURL(*baseURL, id)
		if *dryRun {
			fmt.Printf("[DRY-RUN] POST %s\n", reqURL)
		} else {
			response, statusCode, callErr := callResearch(client, reqURL, bearer)
			metric.HTTPStatus = statusCode
			if callErr != nil {
				metric.Error = callErr.Error()
			} else {
				summarize(&metric, response)
			}
		}
		metric.Duration = time.Since(start)
		metrics = append(metrics, metric)

		if !*dryRun && idx < len(ids)-1 && *rateLimitMs > 0 {
			time.Sleep(time.Duration(*rateLimitMs) * time.Millisecond)
		}
	}

	printReport(os.Stdout, metrics)
}

// loadCaseIDs merges both sources, rejecting anything that is not a UUID.
func loadCaseIDs(csv, filePath string) ([]string, error) {
	set := map[string]struct{}{}
	add := func(raw string) error {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			return nil
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid case id %q: %w", raw, err)
		}
		set[id.String()] = struct{}{}
		return nil
	}

	for _, part := range strings.Split(csv, ",") {
		if err := add(part); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(filePath) != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read cases-file: %w", err)
		}
		for _, line := range strings.Split(string(content), "\n") {
			if err := add(line); err != nil {
				return nil, err
			}
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func buildURL(baseURL, caseID string) string {
	return strings.TrimRight(baseURL, "/") + "/api/research/funding/" + url.PathEscape(caseID)
}

func callResearch(client *http.Client, reqURL, bearer string) (*researchResponse, int, error) {
	req, err := http.NewRequest(http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var payload researchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if payload.Error == "" {
			return &payload, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
		}
		return &payload, resp.StatusCode, fmt.Errorf("http %d: %s", resp.StatusCode, payload.Error)
	}
	return &payload, resp.StatusCode, nil
}

func summarize(m *caseMetric, resp *researchResponse) {
	m.Count = resp.Count
	for i, opp := range resp.Opportunities {
		if opp.IsExpired {
			m.Expired++
		}
		if i == 0 {
			m.TopName = opp.Name
			m.TopScore = opp.RelevanceScore
		}
	}
}

func printReport(out io.Writer, metrics []caseMetric) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("Funding Research Report")
	t.AppendHeader(table.Row{"Case", "Dry", "HTTP", "Found", "Expired", "Top", "Top Score", "Sec", "Error"})

	totalFound, totalExpired, errs := 0, 0, 0
	for _, m := range metrics {
		if m.Error != "" {
			errs++
		}
		totalFound += m.Count
		totalExpired += m.Expired

		t.AppendRow(table.Row{
			m.CaseID,
			m.DryRun,
			m.HTTPStatus,
			m.Count,
			m.Expired,
			m.TopName,
			fmt.Sprintf("%.2f", m.TopScore),
			fmt.Sprintf("%.2f", m.Duration.Seconds()),
			m.Error,
		})
	}
	t.AppendFooter(table.Row{"Totals", "", "", totalFound, totalExpired, "", "", "", fmt.Sprintf("errors=%d", errs)})
	t.Render()
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
