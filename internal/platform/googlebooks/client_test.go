package googlebooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const volumeJSON = `{
  "totalItems": 1,
  "items": [{
    "volumeInfo": {
      "title": "War and Peace",
      "publisher": "Vintage",
      "publishedDate": "2008-12-02",
      "pageCount": 1296,
      "language": "en",
      "industryIdentifiers": [
        {"type": "ISBN_10", "identifier": "1400079985"},
        {"type": "ISBN_13", "identifier": "9781400079988"}
      ]
    }
  }]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("test-agent", "", 100, 5*time.Second).WithBaseURL(srv.URL)
}

func TestClient_SearchByISBN(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(volumeJSON))
	})

	md, err := c.SearchByISBN(context.Background(), "9781400079988")
	require.NoError(t, err)
	require.NotNil(t, md)

	assert.Equal(t, "isbn:9781400079988", gotQuery)
	assert.Equal(t, "9781400079988", md.ISBN)
	assert.Equal(t, "Vintage", md.Publisher)
	assert.Equal(t, "2008-12-02", md.Date)
	assert.Equal(t, 1296, md.PageCount)
	assert.Equal(t, "en", md.Language)
}

func TestClient_SearchByTitleAuthor(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(volumeJSON))
	})

	md, err := c.SearchByTitleAuthor(context.Background(), "War and Peace", "Leo Tolstoy")
	require.NoError(t, err)
	require.NotNil(t, md)

	assert.Equal(t, "intitle:War and Peace inauthor:Leo Tolstoy", gotQuery)
	assert.Equal(t, "1400079985", md.ISBN)
}

func TestClient_NoItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})

	md, err := c.SearchByISBN(context.Background(), "0000000000000")
	assert.NoError(t, err)
	assert.Nil(t, md)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	md, err := c.SearchByISBN(context.Background(), "9781400079988")
	assert.Error(t, err)
	assert.Nil(t, md)
}

func TestClient_BadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	md, err := c.SearchByISBN(context.Background(), "9781400079988")
	assert.Error(t, err)
	assert.Nil(t, md)
}
