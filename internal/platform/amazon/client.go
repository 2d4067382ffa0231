// Package amazon reads the ISBN-13 of a book from its public product page.
package amazon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"highlightsync/internal/errs"
	"highlightsync/internal/metric"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://www.amazon.com"
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes     = 5 * 1024 * 1024
)

var isbn13Pattern = regexp.MustCompile(`ISBN-13\s*:\s*([0-9-]+)`)

// Product pages pad the detail labels with directional marks.
var bidiMarks = strings.NewReplacer("\u200e", "", "\u200f", "")

// detailSelectors are the product-detail blocks that list the ISBN, in the
// order they are tried.
var detailSelectors = []string{
	"#detailBullets_feature_div li",
	"#productDetails_feature_div tr",
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *metric.Metrics
}

func NewClient(rps int, timeout time.Duration) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
	}
}

func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// WithMetrics records request latency under the amazon service label.
func (c *Client) WithMetrics(m *metric.Metrics) *Client {
	c.metrics = m
	return c
}

// LookupISBN returns the ISBN-13 (digits only) listed on the product page
// for asin, or "" when the page lists none.
func (c *Client) LookupISBN(ctx context.Context, asin string) (isbn string, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveRequest("amazon", start, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", errs.WrapTransient(err, "amazon wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/dp/%s", c.baseURL, asin), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.WrapTransient(err, "amazon get")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.WrapTransient(fmt.Errorf("%w: %d", errs.ErrUnexpectedState, resp.StatusCode), "amazon get")
	}

	return ParseISBN(io.LimitReader(resp.Body, maxPageBytes))
}

// ParseISBN extracts the ISBN-13 from a product page.
func ParseISBN(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", errs.WrapInvalid(err, "amazon parse")
	}

	for _, sel := range detailSelectors {
		var isbn string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.Join(strings.Fields(bidiMarks.Replace(s.Text())), " ")
			if !strings.Contains(text, "ISBN-13") {
				return true
			}
			if m := isbn13Pattern.FindStringSubmatch(text); m != nil {
				isbn = strings.ReplaceAll(m[1], "-", "")
				return false
			}
			return true
		})
		if isbn != "" {
			return isbn, nil
		}
	}
	return "", nil
}
