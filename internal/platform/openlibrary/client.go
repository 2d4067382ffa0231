package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"highlightsync/internal/entity"
	"highlightsync/internal/errs"
	"highlightsync/internal/metric"

	"golang.org/x/time/rate"
)

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	metrics    *metric.Metrics
}

func NewClient(userAgent string, rps int, timeout time.Duration) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		baseURL:   "https://openlibrary.org",
		limiter:   rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
	}
}

func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// WithMetrics records request latency under the openlibrary service label.
func (c *Client) WithMetrics(m *metric.Metrics) *Client {
	c.metrics = m
	return c
}

type Publisher struct {
	Name string `json:"name"`
}

// BookDetails matches api/books?jscmd=data
type BookDetails struct {
	Title         string      `json:"title"`
	Subtitle      string      `json:"subtitle"`
	Publishers    []Publisher `json:"publishers"`
	PublishDate   string      `json:"publish_date"`
	PublishPlaces []struct {
		Name string `json:"name"`
	} `json:"publish_places"`
	NumberOfPages int `json:"number_of_pages"`
}

func (c *Client) GetBooksByISBN(ctx context.Context, isbns []string) (map[string]BookDetails, error) {
	if len(isbns) == 0 {
		return nil, nil
	}

	bibkeys := make([]string, len(isbns))
	for i, isbn := range isbns {
		bibkeys[i] = "ISBN:" + isbn
	}

	u := fmt.Sprintf("%s/api/books?bibkeys=%s&jscmd=data&format=json",
		c.baseURL, strings.Join(bibkeys, ","))

	var res map[string]BookDetails
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// SearchByISBN returns metadata for one ISBN, or nil when Open Library has
// no edition for it. Open Library does not report a language code on this
// endpoint, so Language stays empty.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (*entity.Metadata, error) {
	res, err := c.GetBooksByISBN(ctx, []string{isbn})
	if err != nil {
		return nil, err
	}
	details, ok := res["ISBN:"+isbn]
	if !ok {
		return nil, nil
	}

	md := &entity.Metadata{
		ISBN:      isbn,
		Publisher: formatPublishers(details.Publishers),
		Date:      details.PublishDate,
		PageCount: details.NumberOfPages,
	}
	if len(details.PublishPlaces) > 0 {
		md.Place = details.PublishPlaces[0].Name
	}
	return md, nil
}

func (c *Client) get(ctx context.Context, url string, target interface{}) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveRequest("openlibrary", start, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return errs.WrapTransient(err, "openlibrary wait")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.WrapTransient(err, "openlibrary get")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.WrapTransient(fmt.Errorf("%w: %d", errs.ErrUnexpectedState, resp.StatusCode), "openlibrary get")
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errs.WrapInvalid(err, "openlibrary decode")
	}
	return nil
}

func formatPublishers(p []Publisher) string {
	if len(p) == 0 {
		return ""
	}
	names := make([]string, len(p))
	for i, pub := range p {
		names[i] = pub.Name
	}
	return strings.Join(names, ", ")
}
