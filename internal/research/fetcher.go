package research

import (
	"context"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Page is a fetched document body.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (*Page, error)
}

// CollyFetcher fetches single pages with a per-domain delay and retries on
// transport and server errors.
type CollyFetcher struct {
	UserAgent       string
	MaxRetries      int
	RequestTimeout  time.Duration
	DomainDelay     time.Duration
	MaxBodySize     int
	IgnoreRobotsTxt bool
}

func NewCollyFetcher() *CollyFetcher {
	return &CollyFetcher{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxRetries:     2,
		RequestTimeout: 30 * time.Second,
		DomainDelay:    time.Second,
		MaxBodySize:    10 * 1024 * 1024,
	}
}

func (f *CollyFetcher) collector(ctx context.Context, host string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.AllowedDomains(host),
		colly.StdlibContext(ctx),
	}
	if f.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}

	c := colly.NewCollector(opts...)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       f.DomainDelay,
	})
	c.SetRequestTimeout(f.RequestTimeout)
	return c
}

func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return nil, eris.Errorf("research: invalid url %q", targetURL)
	}

	c := f.collector(ctx, parsed.Hostname())

	var (
		page     *Page
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		retries, _ := r.Request.Ctx.GetAny("retries").(int)
		retryable := r.StatusCode == 0 || r.StatusCode >= 500
		if retryable && retries < f.MaxRetries && ctx.Err() == nil {
			r.Request.Ctx.Put("retries", retries+1)
			zap.L().Debug("research: retrying fetch",
				zap.String("url", r.Request.URL.String()),
				zap.Int("attempt", retries+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(retries+1) * 500 * time.Millisecond)
			if retryErr := r.Request.Retry(); retryErr == nil {
				return
			}
		}
		if fetchErr == nil {
			fetchErr = err
		}
	})

	// The collector is synchronous, so callbacks have run when Visit returns.
	visitErr := c.Visit(targetURL)
	if page != nil {
		return page, nil
	}
	if fetchErr != nil {
		return nil, eris.Wrapf(fetchErr, "research: fetch %s", targetURL)
	}
	if visitErr != nil {
		return nil, eris.Wrapf(visitErr, "research: visit %s", targetURL)
	}
	return nil, eris.Errorf("research: no response for %s", targetURL)
}
