// Package zotero is a catalog.Client for the Zotero Web API v3.
package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"highlightsync/internal/catalog"
	"highlightsync/internal/errs"
	"highlightsync/internal/metric"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.zotero.org"
	apiVersion     = "3"
	pageSize       = 100
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	prefix     string
	apiKey     string
	limiter    *rate.Limiter
	metrics    *metric.Metrics
}

// NewClient builds a client for one library. libraryType is "user" or
// "group".
func NewClient(apiKey, libraryID, libraryType string, rps int, timeout time.Duration) (*Client, error) {
	if apiKey == "" || libraryID == "" {
		return nil, errs.WrapFatal(errs.ErrMissingConfig, "zotero credentials")
	}
	var prefix string
	switch libraryType {
	case "", "user":
		prefix = "/users/" + url.PathEscape(libraryID)
	case "group":
		prefix = "/groups/" + url.PathEscape(libraryID)
	default:
		return nil, errs.Fatalf("zotero library type %q: want user or group", libraryType)
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    DefaultBaseURL,
		prefix:     prefix,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
	}, nil
}

func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) WithMetrics(m *metric.Metrics) *Client {
	c.metrics = m
	return c
}

type collectionEntry struct {
	Key  string `json:"key"`
	Data struct {
		Name string `json:"name"`
	} `json:"data"`
}

func (c *Client) Collections(ctx context.Context) ([]catalog.Collection, error) {
	var out []catalog.Collection
	err := c.paginate(ctx, c.prefix+"/collections", nil, func(body []byte) (int, error) {
		var page []collectionEntry
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, e := range page {
			out = append(out, catalog.Collection{Key: e.Key, Name: e.Data.Name})
		}
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCollection(ctx context.Context, name string) (string, error) {
	keys, err := c.write(ctx, c.prefix+"/collections", []map[string]string{{"name": name}})
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

func (c *Client) CollectionItems(ctx context.Context, collectionKey, itemType string) ([]catalog.Item, error) {
	q := url.Values{}
	if itemType != "" {
		q.Set("itemType", itemType)
	}
	var out []catalog.Item
	path := c.prefix + "/collections/" + url.PathEscape(collectionKey) + "/items"
	err := c.paginate(ctx, path, q, func(body []byte) (int, error) {
		var page []catalog.Item
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		out = append(out, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Item(ctx context.Context, key string) (catalog.Item, error) {
	var it catalog.Item
	body, err := c.do(ctx, http.MethodGet, c.prefix+"/items/"+url.PathEscape(key), nil, nil)
	if err != nil {
		return it, err
	}
	if err := json.Unmarshal(body, &it); err != nil {
		return it, errs.WrapInvalid(err, "zotero decode item")
	}
	return it, nil
}

func (c *Client) CreateItem(ctx context.Context, data catalog.ItemData) (string, error) {
	data.Key = ""
	keys, err := c.write(ctx, c.prefix+"/items", []catalog.ItemData{data})
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

// writeResponse is the multi-object write result. Older servers report
// "success" as index to key; newer ones add "successful" with full objects.
type writeResponse struct {
	Successful map[string]struct {
		Key string `json:"key"`
	} `json:"successful"`
	Success map[string]string `json:"success"`
	Failed  map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

// keys returns the created keys in request order, or the first failure.
func (w writeResponse) keys(n int) ([]string, error) {
	if len(w.Failed) > 0 {
		idx := make([]string, 0, len(w.Failed))
		for i := range w.Failed {
			idx = append(idx, i)
		}
		sort.Strings(idx)
		f := w.Failed[idx[0]]
		return nil, errs.WrapInvalid(fmt.Errorf("zotero rejected object %s: %d %s", idx[0], f.Code, f.Message), "zotero write")
	}

	out := make([]string, n)
	for i := 0; i < n; i++ {
		k := strconv.Itoa(i)
		if s, ok := w.Successful[k]; ok && s.Key != "" {
			out[i] = s.Key
			continue
		}
		if s, ok := w.Success[k]; ok && s != "" {
			out[i] = s
			continue
		}
		return nil, errs.WrapTransient(fmt.Errorf("%w: no key for object %d", errs.ErrUnexpectedState, i), "zotero write")
	}
	return out, nil
}

func (c *Client) write(ctx context.Context, path string, objects any) ([]string, error) {
	payload, err := json.Marshal(objects)
	if err != nil {
		return nil, errs.WrapInvalid(err, "zotero encode")
	}
	n := 1
	if s, ok := objects.([]catalog.ItemData); ok {
		n = len(s)
	}

	body, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, err
	}
	var res writeResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errs.WrapInvalid(err, "zotero decode write")
	}
	return res.keys(n)
}

// paginate walks a listing with limit/start until a short page comes back.
func (c *Client) paginate(ctx context.Context, path string, q url.Values, page func([]byte) (int, error)) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("limit", strconv.Itoa(pageSize))
	for start := 0; ; start += pageSize {
		q.Set("start", strconv.Itoa(start))
		body, err := c.do(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return err
		}
		n, err := page(body)
		if err != nil {
			return errs.WrapInvalid(err, "zotero decode listing")
		}
		if n < pageSize {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, payload []byte) (body []byte, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.WrapTransient(err, "zotero wait")
	}
	start := time.Now()
	defer func() { c.metrics.ObserveRequest("zotero", start, err) }()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Zotero-API-Key", c.apiKey)
	req.Header.Set("Zotero-API-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.WrapTransient(err, "zotero "+method)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, errs.WrapTransient(err, "zotero read")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, errs.WrapFatal(fmt.Errorf("%w: %d %s", errs.ErrUnexpectedState, resp.StatusCode, bytes.TrimSpace(body)), "zotero "+method)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errs.WrapInvalid(fmt.Errorf("%w: %s", errs.ErrNotFound, path), "zotero "+method)
	default:
		return nil, errs.WrapTransient(fmt.Errorf("%w: %d %s", errs.ErrUnexpectedState, resp.StatusCode, bytes.TrimSpace(body)), "zotero "+method)
	}
}

var _ catalog.Client = (*Client)(nil)
