package web

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tei-tools/tei2search/internal/annotation"
	"github.com/tei-tools/tei2search/internal/config"
	"github.com/tei-tools/tei2search/internal/logging"
	"github.com/tei-tools/tei2search/internal/pipeline"
	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/storage"
)

const letter = `<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader><fileDesc><titleStmt><title level="a">Brief an Goethe</title></titleStmt></fileDesc></teiHeader>
  <text xml:id="brief_1" xml:lang="de"><body><div>
    <pb n="1"/><p>Verehrter Herr</p>
    <pb n="2"/><p>Mineralogie</p>
  </div></body></text>
</TEI>`

type fakeSearcher struct {
	lastQuery search.Query
	docs      map[string]search.Document
}

func (f *fakeSearcher) Search(ctx context.Context, q search.Query) (search.SearchResponse, error) {
	f.lastQuery = q
	return search.SearchResponse{
		Total:   1,
		Results: []search.Result{{ID: "brief_1", Doctype: search.DoctypeArticle, Title: "Brief an Goethe"}},
	}, nil
}

func (f *fakeSearcher) Get(ctx context.Context, id string) (search.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return search.Document{}, search.ErrNotFound
	}
	return doc, nil
}

func (f *fakeSearcher) Pages(ctx context.Context, articleID string) ([]search.Document, error) {
	var out []search.Document
	for _, d := range f.docs {
		if d.Doctype == search.DoctypePage && d.String("article_id") == articleID {
			out = append(out, d)
		}
	}
	return out, nil
}

func testServer(t *testing.T) (*Server, *fakeSearcher, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Site:       "https://briefe.example.org/",
		OutputDir:  t.TempDir(),
		Fields:     []string{"title"},
		IndexPages: true,
	}
	article := search.NewDocument("brief_1", search.DoctypeArticle)
	article.Set("title", "Brief an Goethe")
	page := search.NewDocument("brief_1_page1", search.DoctypePage)
	page.Set("article_id", "brief_1")
	fs := &fakeSearcher{docs: map[string]search.Document{
		article.ID: article,
		page.ID:    page,
	}}
	store := storage.NewFSStorage(cfg.OutputDir)
	srv := NewServer(cfg, logging.Discard(), fs, pipeline.NewProcessor(cfg, annotation.NewSequence("n")), store)
	return srv, fs, cfg
}

func serve(srv *Server, req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w.Result()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestHandleRobotsTxt(t *testing.T) {
	srv, _, _ := testServer(t)
	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "Disallow: /api/")
	assert.Contains(t, string(body), "Sitemap: https://briefe.example.org/sitemaps/sitemap-index.xml")
}

func TestHandleSearch(t *testing.T) {
	srv, fs, _ := testServer(t)
	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/api/search?q=goethe&doctype=article&limit=5&offset=x", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body search.SearchResponse
	decode(t, resp, &body)
	assert.EqualValues(t, 1, body.Total)
	assert.Equal(t, search.Query{Text: "goethe", Doctype: "article", Limit: 5, Offset: 0}, fs.lastQuery)
}

func TestHandlersWithoutSearcher(t *testing.T) {
	cfg := &config.Config{OutputDir: t.TempDir()}
	srv := NewServer(cfg, nil, nil, nil, nil)

	for _, path := range []string{"/api/search?q=x", "/api/documents/brief_1", "/api/documents/brief_1/pages/1/edited"} {
		resp := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
	resp := serve(srv, httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(letter)))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleDocument(t *testing.T) {
	srv, _, _ := testServer(t)

	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/api/documents/brief_1", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	decode(t, resp, &doc)
	assert.Equal(t, "Brief an Goethe", doc["title"])

	resp = serve(srv, httptest.NewRequest(http.MethodGet, "/api/documents/brief_99", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlePages(t *testing.T) {
	srv, _, _ := testServer(t)
	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/api/documents/brief_1/pages", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Pages []map[string]any `json:"pages"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Pages, 1)
	assert.Equal(t, "brief_1_page1", body.Pages[0]["id"])
}

func TestHandlePageHTML(t *testing.T) {
	srv, _, cfg := testServer(t)
	store := storage.NewFSStorage(cfg.OutputDir)
	require.NoError(t, store.WritePage(context.Background(), "brief_1", 1, "edited", []byte("<p>Verehrter Herr</p>")))

	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/api/documents/brief_1/pages/1/edited", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "<p>Verehrter Herr</p>", string(body))
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	resp = serve(srv, httptest.NewRequest(http.MethodGet, "/api/documents/brief_1/pages/2/edited", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = serve(srv, httptest.NewRequest(http.MethodGet, "/api/documents/brief_1/pages/1/facsimile", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRender(t *testing.T) {
	srv, _, _ := testServer(t)

	resp := serve(srv, httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(letter)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID        string           `json:"id"`
		Documents []map[string]any `json:"documents"`
		Pages     []renderedPage   `json:"pages"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "brief_1", body.ID)
	require.Len(t, body.Pages, 3)
	assert.Equal(t, 2, body.Pages[2].Number)
	assert.Contains(t, body.Pages[2].Transcription, "Mineralogie")
	assert.Contains(t, body.Pages[2].Edited, "Mineralogie")
	// article plus two pages
	assert.Len(t, body.Documents, 3)

	resp = serve(srv, httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader("<TEI><text>")))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var failure map[string]string
	decode(t, resp, &failure)
	assert.Contains(t, failure["error"], "parse upload")
}

func TestSitemapFiles(t *testing.T) {
	srv, _, cfg := testServer(t)
	dir := filepath.Join(cfg.OutputDir, "sitemaps")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sitemap-index.xml"), []byte("<sitemapindex/>"), 0o644))

	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/sitemaps/sitemap-index.xml", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "<sitemapindex/>", string(body))
}

func TestGzipHandler(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp := serve(srv, req)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	gr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(body, []byte(`"status":"ok"`)))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp = serve(srv, req)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestParseIntQuery(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 7},
		{"limit=3", 3},
		{"limit=-1", 7},
		{"limit=abc", 7},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/search?"+tt.query, nil)
		assert.Equal(t, tt.want, parseIntQuery(req, "limit", 7), tt.query)
	}
}
