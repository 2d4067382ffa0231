package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"highlightsync/internal/entity"

	"github.com/stretchr/testify/assert"
)

type blockingRunner struct {
	release chan struct{}
	calls   int
}

func (b *blockingRunner) Run(ctx context.Context) (Report, error) {
	b.calls++
	<-b.release
	return Report{Run: &entity.Run{Status: entity.RunCompleted}}, nil
}

func TestHTTPHandler_Extract(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	h := NewHTTPHandler(context.Background(), runner, nil)

	w := httptest.NewRecorder()
	h.Extract(w, httptest.NewRequest(http.MethodPost, "/internal/jobs/extract", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "extraction started")

	w = httptest.NewRecorder()
	h.Extract(w, httptest.NewRequest(http.MethodPost, "/internal/jobs/extract", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(runner.release)
	h.Wait()
	assert.Equal(t, 1, runner.calls)

	runner.release = make(chan struct{})
	close(runner.release)
	w = httptest.NewRecorder()
	h.Extract(w, httptest.NewRequest(http.MethodPost, "/internal/jobs/extract", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	h.Wait()
	assert.Equal(t, 2, runner.calls)
}

type instantRunner struct {
	calls atomic.Int32
}

func (r *instantRunner) Run(ctx context.Context) (Report, error) {
	r.calls.Add(1)
	return Report{Run: &entity.Run{Status: entity.RunCompleted}}, nil
}

func TestHTTPHandler_WaitWhileExtracting(t *testing.T) {
	runner := &instantRunner{}
	h := NewHTTPHandler(context.Background(), runner, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Wait()
			}
		}()
	}

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		h.Extract(w, httptest.NewRequest(http.MethodPost, "/internal/jobs/extract", nil))
		assert.Contains(t, []int{http.StatusAccepted, http.StatusConflict}, w.Code)
	}
	wg.Wait()
	h.Wait()
	assert.GreaterOrEqual(t, runner.calls.Load(), int32(1))
}
