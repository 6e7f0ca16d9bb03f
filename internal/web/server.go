package web

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tei-tools/tei2search/internal/config"
	"github.com/tei-tools/tei2search/internal/pipeline"
	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/storage"
)

const maxUploadBytes = 16 << 20

// Searcher is the read side of the search index.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (search.SearchResponse, error)
	Get(ctx context.Context, id string) (search.Document, error)
	Pages(ctx context.Context, articleID string) ([]search.Document, error)
}

type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	search    Searcher
	processor *pipeline.Processor
	store     *storage.FSStorage
	router    chi.Router
}

// NewServer wires the HTTP API. searcher, processor and store may be nil;
// the endpoints depending on them then answer 503.
func NewServer(cfg *config.Config, logger *slog.Logger, searcher Searcher, processor *pipeline.Processor, store *storage.FSStorage) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		search:    searcher,
		processor: processor,
		store:     store,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(gzipHandler)

	r.Get("/healthz", s.handleHealth)
	r.Get("/robots.txt", s.handleRobotsTxt)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/documents/{id}", s.handleDocument)
	r.Get("/api/documents/{id}/pages", s.handlePages)
	r.Get("/api/documents/{id}/pages/{n}/{variant}", s.handlePageHTML)
	r.Post("/api/render", s.handleRender)

	sitemapDir := filepath.Join(s.cfg.OutputDir, "sitemaps")
	r.Handle("/sitemaps/*", http.StripPrefix("/sitemaps/", http.FileServer(http.Dir(sitemapDir))))

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRobotsTxt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /api/\nDisallow: /healthz\n\nSitemap: %s/sitemaps/sitemap-index.xml\n", s.cfg.SiteURL())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		jsonError(w, "search index unavailable", http.StatusServiceUnavailable)
		return
	}

	q := search.Query{
		Text:    r.URL.Query().Get("q"),
		Doctype: r.URL.Query().Get("doctype"),
		Limit:   parseIntQuery(r, "limit", 50),
		Offset:  parseIntQuery(r, "offset", 0),
	}
	results, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("search failed", "query", q.Text, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		jsonError(w, "search index unavailable", http.StatusServiceUnavailable)
		return
	}
	doc, err := s.search.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, search.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		jsonError(w, "search index unavailable", http.StatusServiceUnavailable)
		return
	}
	pages, err := s.search.Pages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (s *Server) handlePageHTML(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "page storage unavailable", http.StatusServiceUnavailable)
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	variant := chi.URLParam(r, "variant")
	if err != nil || n < 0 || (variant != "transcription" && variant != "edited") {
		jsonError(w, "invalid page", http.StatusBadRequest)
		return
	}
	content, err := s.store.ReadPage(chi.URLParam(r, "id"), n, variant)
	if errors.Is(err, os.ErrNotExist) {
		jsonError(w, "page not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
}

type renderedPage struct {
	Number        int    `json:"number"`
	Transcription string `json:"transcription"`
	Edited        string `json:"edited"`
}

type renderResponse struct {
	ID        string            `json:"id"`
	Documents []search.Document `json:"documents"`
	Pages     []renderedPage    `json:"pages"`
}

// handleRender processes an uploaded TEI document without indexing it.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if s.processor == nil {
		jsonError(w, "renderer unavailable", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		jsonError(w, "read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	out, err := s.processor.Process(body, "upload")
	if err != nil {
		var de *pipeline.DocumentError
		if errors.As(err, &de) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := renderResponse{ID: out.ID, Documents: out.Result.All()}
	for _, p := range out.Rendered.Pages {
		resp.Pages = append(resp.Pages, renderedPage{
			Number:        p.Number,
			Transcription: p.Transcription.HTML,
			Edited:        p.Edited.HTML,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher, delegating to the underlying writer.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", filepath.Clean(r.URL.Path),
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

// gzipResponseWriter conditionally compresses responses for compressible content types.
type gzipResponseWriter struct {
	http.ResponseWriter
	gw      *gzip.Writer
	sniffed bool
}

func (grw *gzipResponseWriter) WriteHeader(code int) {
	if code != http.StatusNotModified {
		grw.sniff()
	}
	grw.ResponseWriter.WriteHeader(code)
}

func (grw *gzipResponseWriter) Write(b []byte) (int, error) {
	grw.sniff()
	if grw.gw != nil {
		return grw.gw.Write(b)
	}
	return grw.ResponseWriter.Write(b)
}

func (grw *gzipResponseWriter) sniff() {
	if grw.sniffed {
		return
	}
	grw.sniffed = true

	ct := grw.ResponseWriter.Header().Get("Content-Type")
	if strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/json") ||
		strings.HasPrefix(ct, "application/xml") {
		grw.ResponseWriter.Header().Set("Content-Encoding", "gzip")
		grw.ResponseWriter.Header().Del("Content-Length")
	} else {
		grw.gw = nil
	}
}

func (grw *gzipResponseWriter) Flush() {
	if grw.gw != nil {
		_ = grw.gw.Flush()
	}
	if f, ok := grw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func gzipHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gw := gzip.NewWriter(w)
		grw := &gzipResponseWriter{ResponseWriter: w, gw: gw}
		next.ServeHTTP(grw, r)
		if grw.gw != nil {
			_ = grw.gw.Close()
		}
	})
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
