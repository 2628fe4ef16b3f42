package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openletter/petitiond/internal/config"
	"github.com/openletter/petitiond/internal/petition"
	"github.com/openletter/petitiond/internal/render"
)

type fakeStore struct {
	mu          sync.Mutex
	rows        []petition.Signatory
	insertErr   error
	listErr     error
	quotesErr   error
	insertCalls int
}

func (f *fakeStore) Insert(_ context.Context, s petition.Signatory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, s)
	return nil
}

func (f *fakeStore) ListSignatories(_ context.Context) ([]petition.DisplaySignatory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []petition.DisplaySignatory{}
	for _, s := range f.rows {
		out = append(out, s.Display())
	}
	return out, nil
}

func (f *fakeStore) ListQuotes(_ context.Context) ([]petition.DisplaySignatory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quotesErr != nil {
		return nil, f.quotesErr
	}
	out := []petition.DisplaySignatory{}
	for _, s := range f.rows {
		if s.Comment == "" {
			continue
		}
		out = append(out, s.Display())
		if len(out) == 3 {
			break
		}
	}
	return out, nil
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func testRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html": `<ul>{{range .Signatories}}<li>{{.Name}}</li>{{end}}</ul>` +
			`<div>{{range .Quotes}}<q>{{.Comment}}</q>{{end}}</div>`,
		"success.html": "<p>thank you</p>",
		"privacy.html": "<p>privacy</p>",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	r, err := render.New(dir)
	require.NoError(t, err)
	return r
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 30},
	}
}

func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	return NewServer(store, testRenderer(t), clock, testConfig(), zap.NewNop())
}

func postForm(t *testing.T, srv *Server, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Submit_MinimalFormRedirects(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	srv := newTestServer(t, store)

	rec := postForm(t, srv, url.Values{
		"name":  {"Jane Doe"},
		"email": {"jane@example.com"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/success", rec.Header().Get("Location"))

	require.Len(t, store.rows, 1)
	row := store.rows[0]
	require.Equal(t, "Jane Doe", row.Name)
	require.Equal(t, "jane@example.com", row.Email)
	require.Empty(t, row.Title)
	require.Empty(t, row.Organisation)
	require.Empty(t, row.URL)
	require.Empty(t, row.Comment)
	require.False(t, row.MailingListOptIn)
	require.Equal(t, int64(1700000000), row.CreatedOn)
}

func TestServer_Submit_FullForm(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	srv := newTestServer(t, store)

	rec := postForm(t, srv, url.Values{
		"name":                {" Jane Doe "},
		"title":               {"Dr"},
		"email":               {"jane@example.com"},
		"organisation":        {"Example Org"},
		"url":                 {"example.com"},
		"comments":            {"well said"},
		"mailing_list_opt_in": {"on"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, store.rows, 1)
	row := store.rows[0]
	require.Equal(t, "Jane Doe", row.Name)
	require.Equal(t, "http://example.com", row.URL)
	require.True(t, row.MailingListOptIn)
}

func TestServer_Submit_MissingNameRejectedWithoutInsert(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	srv := newTestServer(t, store)

	rec := postForm(t, srv, url.Values{"email": {"jane@example.com"}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, store.insertCalls)
}

func TestServer_Submit_InvalidURLRejected(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	srv := newTestServer(t, store)

	rec := postForm(t, srv, url.Values{
		"name":  {"Jane Doe"},
		"email": {"jane@example.com"},
		"url":   {"not a url"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, store.insertCalls)
}

func TestServer_Submit_StoreFailureAnswers400(t *testing.T) {
	t.Parallel()

	store := &fakeStore{insertErr: errors.New("constraint violation")}
	srv := newTestServer(t, store)

	rec := postForm(t, srv, url.Values{
		"name":  {"Jane Doe"},
		"email": {"jane@example.com"},
	})

	// Store failures on the write path deliberately flatten to 400.
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Submit_MalformedBodyAnswers400(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("%zz=bad"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Index_RendersSignatoriesAndQuotes(t *testing.T) {
	t.Parallel()

	store := &fakeStore{rows: []petition.Signatory{
		{Name: "Jane Doe", Email: "jane@example.com", Comment: "well said"},
		{Name: "John Roe", Email: "john@example.com"},
	}}
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "<li>Jane Doe</li>")
	require.Contains(t, rec.Body.String(), "<li>John Roe</li>")
	require.Contains(t, rec.Body.String(), "<q>well said</q>")
	require.NotContains(t, rec.Body.String(), "jane@example.com")
}

func TestServer_Index_EmptyTableRendersEmptyLists(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<ul></ul>")
	require.Contains(t, rec.Body.String(), "<div></div>")
}

func TestServer_Index_StoreFailureAnswers500(t *testing.T) {
	t.Parallel()

	store := &fakeStore{listErr: errors.New("connection refused")}
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestServer_Index_QuoteFailureAnswers500(t *testing.T) {
	t.Parallel()

	store := &fakeStore{quotesErr: errors.New("connection refused")}
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_StaticPages(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})

	for path, want := range map[string]string{
		"/success": "thank you",
		"/privacy": "privacy",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		require.Contains(t, rec.Body.String(), want)
	}
}

func TestServer_RequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_ReadyzReportsStoreHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	broken := newTestServer(t, &fakeStore{quotesErr: errors.New("down")})
	rec = httptest.NewRecorder()
	broken.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
