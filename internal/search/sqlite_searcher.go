package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("document not found")

type Result struct {
	ID        string `json:"id"`
	Doctype   string `json:"doctype"`
	ArticleID string `json:"article_id,omitempty"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

type SearchResponse struct {
	Total   uint64   `json:"total"`
	Results []Result `json:"results"`
}

// Query selects documents. An empty Doctype matches every doctype.
type Query struct {
	Text    string
	Doctype string
	Limit   int
	Offset  int
}

type SQLiteSearcher struct {
	db *sql.DB
}

func NewSQLiteSearcher(path string) (*SQLiteSearcher, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSearcher{db: db}, nil
}

func (s *SQLiteSearcher) Close() error {
	return s.db.Close()
}

func (s *SQLiteSearcher) Search(ctx context.Context, q Query) (SearchResponse, error) {
	match := sanitizeQuery(q.Text)
	if match == "" {
		return SearchResponse{Results: []Result{}}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	// snippet() cannot share a query with a window function, so the
	// total is counted separately.
	from := ` FROM documents_fts f
		 JOIN documents d ON d.rowid = f.rowid
		 WHERE documents_fts MATCH ?`
	args := []any{match}
	if q.Doctype != "" {
		from += ` AND d.doctype = ?`
		args = append(args, q.Doctype)
	}

	var resp SearchResponse
	resp.Results = make([]Result, 0)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&resp.Total); err != nil {
		return SearchResponse{}, fmt.Errorf("count results: %w", err)
	}
	if resp.Total == 0 {
		return resp, nil
	}

	query := `SELECT d.id, d.doctype, d.article_id, d.title,
		 snippet(documents_fts, 1, '<mark>', '</mark>', '…', 12)` + from +
		` ORDER BY f.rank LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, q.Offset)...)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Doctype, &r.ArticleID, &r.Title, &r.Snippet); err != nil {
			return SearchResponse{}, fmt.Errorf("scan result: %w", err)
		}
		resp.Results = append(resp.Results, r)
	}
	if err := rows.Err(); err != nil {
		return SearchResponse{}, fmt.Errorf("iterate results: %w", err)
	}

	return resp, nil
}

// Get returns the stored document with the given id.
func (s *SQLiteSearcher) Get(ctx context.Context, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT fields FROM documents WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

// Pages returns the page documents of an article ordered by page number.
func (s *SQLiteSearcher) Pages(ctx context.Context, articleID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fields FROM documents WHERE article_id = ? AND doctype = ? ORDER BY page_number`,
		articleID, DoctypePage)
	if err != nil {
		return nil, fmt.Errorf("list pages of %s: %w", articleID, err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]Document, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return docs, nil
}

// sanitizeQuery turns free text into an FTS5 prefix query. Operators and
// syntax characters are dropped.
func sanitizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range q {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r),
			r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	q = strings.TrimSpace(b.String())
	if q == "" {
		return ""
	}

	terms := strings.Fields(q)
	for i, t := range terms {
		upper := strings.ToUpper(t)
		if upper == "AND" || upper == "OR" || upper == "NOT" {
			terms[i] = ""
			continue
		}
		terms[i] = `"` + t + `"` + "*"
	}

	var filtered []string
	for _, t := range terms {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return ""
	}
	return strings.Join(filtered, " ")
}
