package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/user/crawl-tracker/internal/delivery/http/handler"
	"github.com/user/crawl-tracker/internal/delivery/http/router"
	"github.com/user/crawl-tracker/internal/entity"
)

const pageURL = "https://example.com/recipes/pho"

type MockCrawler struct {
	mock.Mock
}

func (m *MockCrawler) CrawlURL(ctx context.Context, rawURL string) (*entity.PageView, error) {
	args := m.Called(ctx, rawURL)
	view, _ := args.Get(0).(*entity.PageView)
	return view, args.Error(1)
}

func (m *MockCrawler) Recrawl(ctx context.Context, rawURL string) (*entity.PageView, error) {
	args := m.Called(ctx, rawURL)
	view, _ := args.Get(0).(*entity.PageView)
	return view, args.Error(1)
}

func (m *MockCrawler) EnqueueRecrawl(ctx context.Context, rawURL string) (string, error) {
	args := m.Called(ctx, rawURL)
	return args.String(0), args.Error(1)
}

func (m *MockCrawler) ProcessURLFromQueue(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCrawler) AddDomain(ctx context.Context, name string) (*entity.Domain, error) {
	args := m.Called(ctx, name)
	domain, _ := args.Get(0).(*entity.Domain)
	return domain, args.Error(1)
}

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) ListDomains(ctx context.Context, page, perPage int) (*entity.DomainList, error) {
	args := m.Called(ctx, page, perPage)
	list, _ := args.Get(0).(*entity.DomainList)
	return list, args.Error(1)
}

func (m *MockReporter) GetStats(ctx context.Context) (*entity.Statistics, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*entity.Statistics)
	return stats, args.Error(1)
}

func (m *MockReporter) GetPageDetails(ctx context.Context, rawURL string) (*entity.Page, error) {
	args := m.Called(ctx, rawURL)
	page, _ := args.Get(0).(*entity.Page)
	return page, args.Error(1)
}

func (m *MockReporter) GetHistory(ctx context.Context, rawURL string) ([]*entity.CrawlHistory, error) {
	args := m.Called(ctx, rawURL)
	history, _ := args.Get(0).([]*entity.CrawlHistory)
	return history, args.Error(1)
}

func (m *MockReporter) PagesByStatus(ctx context.Context, status string) ([]*entity.Page, error) {
	args := m.Called(ctx, status)
	pages, _ := args.Get(0).([]*entity.Page)
	return pages, args.Error(1)
}

func (m *MockReporter) PagesByDomain(ctx context.Context, domain string) ([]*entity.Page, error) {
	args := m.Called(ctx, domain)
	pages, _ := args.Get(0).([]*entity.Page)
	return pages, args.Error(1)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newServer(t *testing.T, checks map[string]handler.Pinger) (*httptest.Server, *MockCrawler, *MockReporter) {
	t.Helper()
	crawler := new(MockCrawler)
	reporter := new(MockReporter)
	srv := httptest.NewServer(router.New(handler.NewHandler(crawler, reporter, checks), 0))
	t.Cleanup(srv.Close)
	return srv, crawler, reporter
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func strPtr(s string) *string { return &s }

func TestHandleCrawl_Success(t *testing.T) {
	srv, crawler, _ := newServer(t, nil)
	view := &entity.PageView{URL: pageURL, Status: entity.StatusCompleted, Content: strPtr("# Pho"), Title: strPtr("Pho")}
	crawler.On("CrawlURL", mock.Anything, pageURL).Return(view, nil).Once()

	resp, body := do(t, http.MethodPost, srv.URL+"/api/crawl", `{"url":"`+pageURL+`"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "# Pho", body["content"])
	crawler.AssertExpectations(t)
}

func TestHandleCrawl_BadBody(t *testing.T) {
	srv, crawler, _ := newServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/crawl", `{"url":`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", body["error"])
	crawler.AssertNotCalled(t, "CrawlURL", mock.Anything, mock.Anything)
}

func TestHandleCrawl_ErrorMapping(t *testing.T) {
	failedView := &entity.PageView{URL: pageURL, Status: entity.StatusFailed}
	cases := []struct {
		name   string
		view   *entity.PageView
		err    error
		status int
	}{
		{"validation", nil, &entity.ValidationError{Field: "url", Value: "x", Reason: "missing scheme"}, http.StatusBadRequest},
		{"crawl", failedView, &entity.CrawlError{URL: pageURL, ResponseCode: 404, Err: errors.New("not found upstream")}, http.StatusBadGateway},
		{"store", nil, &entity.StoreError{Op: "read page", Err: errors.New("connection reset")}, http.StatusInternalServerError},
		{"timeout", nil, context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, crawler, _ := newServer(t, nil)
			crawler.On("CrawlURL", mock.Anything, pageURL).Return(tc.view, tc.err).Once()

			resp, body := do(t, http.MethodPost, srv.URL+"/api/crawl", `{"url":"`+pageURL+`"}`)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			if tc.view != nil {
				page, ok := body["page"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "failed", page["status"])
			} else {
				assert.NotContains(t, body, "page")
			}
		})
	}
}

func TestHandleCrawl_StoreErrorIsNotLeaked(t *testing.T) {
	srv, crawler, _ := newServer(t, nil)
	crawler.On("CrawlURL", mock.Anything, pageURL).
		Return(nil, &entity.StoreError{Op: "read page", Err: errors.New("password authentication failed")}).Once()

	_, body := do(t, http.MethodPost, srv.URL+"/api/crawl", `{"url":"`+pageURL+`"}`)

	assert.Equal(t, "Internal server error", body["error"])
}

func TestHandleRecrawl(t *testing.T) {
	srv, crawler, _ := newServer(t, nil)
	crawler.On("EnqueueRecrawl", mock.Anything, pageURL).Return("abc123", nil).Once()
	crawler.On("EnqueueRecrawl", mock.Anything, "https://example.com/unknown").
		Return("", &entity.NotFoundError{Resource: "page", Key: "https://example.com/unknown"}).Once()

	resp, body := do(t, http.MethodPost, srv.URL+"/api/recrawl", `{"url":"`+pageURL+`"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "abc123", body["crawl_request_id"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/recrawl", `{"url":"https://example.com/unknown"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	crawler.AssertExpectations(t)
}

func TestHandleGetPage(t *testing.T) {
	srv, _, reporter := newServer(t, nil)
	reporter.On("GetPageDetails", mock.Anything, pageURL).
		Return(&entity.Page{ID: 3, URL: pageURL, DomainID: 1, Status: entity.StatusQueued}, nil).Once()

	resp, body := do(t, http.MethodGet, srv.URL+"/api/pages?url="+pageURL, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "queued", body["status"])
	assert.EqualValues(t, 3, body["id"])

	reporter.On("GetPageDetails", mock.Anything, "https://example.com/missing").Return(nil, nil).Once()
	resp, body = do(t, http.MethodGet, srv.URL+"/api/pages?url=https://example.com/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Page not found for the given URL", body["error"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/pages", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "URL query parameter is required", body["error"])
	reporter.AssertExpectations(t)
}

func TestHandleGetHistory(t *testing.T) {
	srv, _, reporter := newServer(t, nil)
	reporter.On("GetHistory", mock.Anything, pageURL).Return([]*entity.CrawlHistory{
		{ID: 2, PageID: 3, Status: entity.OutcomeFailure, ErrorMessage: strPtr("fetch timed out")},
		{ID: 1, PageID: 3, Status: entity.OutcomeSuccess},
	}, nil).Once()

	resp, body := do(t, http.MethodGet, srv.URL+"/api/pages/history?url="+pageURL, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	history, ok := body["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 2)
	assert.Equal(t, "failure", history[0].(map[string]any)["status"])
}

func TestHandlePagesByStatus(t *testing.T) {
	srv, _, reporter := newServer(t, nil)
	reporter.On("PagesByStatus", mock.Anything, "failed").
		Return([]*entity.Page{{ID: 1, URL: pageURL, Status: entity.StatusFailed}}, nil).Once()
	reporter.On("PagesByStatus", mock.Anything, "bogus").
		Return(nil, &entity.ValidationError{Field: "status", Value: "bogus", Reason: "unknown"}).Once()

	resp, body := do(t, http.MethodGet, srv.URL+"/api/pages/status/failed", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/pages/status/bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleListDomains(t *testing.T) {
	srv, _, reporter := newServer(t, nil)
	reporter.On("ListDomains", mock.Anything, 2, 5).Return(&entity.DomainList{
		Page: 2, PerPage: 5, Total: 6, TotalPages: 2,
		Domains: []entity.Domain{{ID: 1, Domain: "example.com"}},
	}, nil).Once()
	reporter.On("ListDomains", mock.Anything, 1, 20).Return(&entity.DomainList{Page: 1, PerPage: 20, Domains: []entity.Domain{}}, nil).Once()

	resp, body := do(t, http.MethodGet, srv.URL+"/api/domains?page=2&per_page=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total_pages"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/domains", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["total"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/domains?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	reporter.AssertExpectations(t)
}

func TestHandleAddDomain(t *testing.T) {
	srv, crawler, _ := newServer(t, nil)
	crawler.On("AddDomain", mock.Anything, "Example.com").
		Return(&entity.Domain{ID: 5, Domain: "example.com"}, nil).Once()
	crawler.On("AddDomain", mock.Anything, "example.com/path").
		Return(nil, &entity.ValidationError{Field: "domain", Value: "example.com/path", Reason: "must be a host with an optional port"}).Once()

	resp, body := do(t, http.MethodPost, srv.URL+"/api/domains", `{"domain":"Example.com"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "example.com", body["domain"])
	assert.EqualValues(t, 5, body["id"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/domains", `{"domain":"example.com/path"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/domains", `{"domain":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", body["error"])
	crawler.AssertExpectations(t)
}

func TestHandleCrawl_ExpiredRequestIsAnsweredOnce(t *testing.T) {
	crawler := new(MockCrawler)
	h := handler.NewHandler(crawler, new(MockReporter), nil)
	srv := httptest.NewServer(router.New(h, 30*time.Millisecond))
	t.Cleanup(srv.Close)

	crawler.On("CrawlURL", mock.Anything, pageURL).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	resp, err := http.Post(srv.URL+"/api/crawl", "application/json", strings.NewReader(`{"url":"`+pageURL+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Empty(t, body)
	crawler.AssertExpectations(t)
}

func TestHandlePagesByDomain(t *testing.T) {
	srv, _, reporter := newServer(t, nil)
	reporter.On("PagesByDomain", mock.Anything, "example.com").Return([]*entity.Page{}, nil).Once()

	resp, body := do(t, http.MethodGet, srv.URL+"/api/domains/example.com/pages", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])
	reporter.AssertExpectations(t)
}

func TestHandleStats(t *testing.T) {
	srv, _, reporter := newServer(t, nil)
	reporter.On("GetStats", mock.Anything).Return(&entity.Statistics{TotalPages: 4, Completed: 3, Failed: 1, TotalDomains: 2}, nil).Once()

	resp, body := do(t, http.MethodGet, srv.URL+"/api/stats", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 4, body["total_pages"])
	assert.EqualValues(t, 2, body["total_domains"])
}

func TestHandleHealthCheck(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	broken := pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	srv, _, _ := newServer(t, map[string]handler.Pinger{"postgres": healthy, "redis": healthy})
	resp, body := do(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	srv, _, _ = newServer(t, map[string]handler.Pinger{"postgres": healthy, "redis": broken})
	resp, body = do(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unhealthy", body["components"].(map[string]any)["redis"])
}
