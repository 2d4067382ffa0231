package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"highlightsync/internal/entity"
	"highlightsync/internal/errs"
	"highlightsync/internal/metric"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.googleapis.com/books/v1"

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	metrics    *metric.Metrics
}

func NewClient(userAgent, apiKey string, rps int, timeout time.Duration) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
	}
}

// WithBaseURL points the client at another host, e.g. a test server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// WithMetrics records request latency under the googlebooks service label.
func (c *Client) WithMetrics(m *metric.Metrics) *Client {
	c.metrics = m
	return c
}

// VolumesResponse matches volumes?q=...
type VolumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo VolumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type VolumeInfo struct {
	Title               string `json:"title"`
	Publisher           string `json:"publisher"`
	PublishedDate       string `json:"publishedDate"`
	PageCount           int    `json:"pageCount"`
	Language            string `json:"language"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
}

// SearchByTitleAuthor returns metadata for the first volume matching title
// and author, or nil when nothing matched. The ISBN is whatever identifier
// the volume lists first.
func (c *Client) SearchByTitleAuthor(ctx context.Context, title, author string) (*entity.Metadata, error) {
	q := "intitle:" + title
	if author != "" {
		q += " inauthor:" + author
	}
	info, err := c.firstVolume(ctx, q)
	if err != nil || info == nil {
		return nil, err
	}
	md := toMetadata(info)
	if len(info.IndustryIdentifiers) > 0 {
		md.ISBN = info.IndustryIdentifiers[0].Identifier
	}
	return md, nil
}

// SearchByISBN returns metadata for an exact ISBN match, or nil.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (*entity.Metadata, error) {
	info, err := c.firstVolume(ctx, "isbn:"+isbn)
	if err != nil || info == nil {
		return nil, err
	}
	md := toMetadata(info)
	md.ISBN = isbn
	return md, nil
}

func (c *Client) firstVolume(ctx context.Context, q string) (*VolumeInfo, error) {
	params := url.Values{}
	params.Set("q", q)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	u := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())

	var res VolumesResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	return &res.Items[0].VolumeInfo, nil
}

func toMetadata(info *VolumeInfo) *entity.Metadata {
	return &entity.Metadata{
		Publisher: info.Publisher,
		Date:      info.PublishedDate,
		PageCount: info.PageCount,
		Language:  info.Language,
	}
}

func (c *Client) get(ctx context.Context, u string, target any) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveRequest("googlebooks", start, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return errs.WrapTransient(err, "googlebooks wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.WrapTransient(err, "googlebooks get")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.WrapTransient(fmt.Errorf("%w: %d", errs.ErrUnexpectedState, resp.StatusCode), "googlebooks get")
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errs.WrapInvalid(err, "googlebooks decode")
	}
	return nil
}
