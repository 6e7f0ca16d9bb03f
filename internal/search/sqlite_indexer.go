package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

const batchSize = 500

type SQLiteIndexer struct {
	mu         sync.Mutex
	db         *sql.DB
	insertStmt *sql.Stmt
	tx         *sql.Tx
	txStmt     *sql.Stmt
	count      int
}

// NewSQLiteIndexer opens the index at path and recreates its schema,
// deleting every previously indexed document.
func NewSQLiteIndexer(path string) (*SQLiteIndexer, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT OR REPLACE INTO documents (id, doctype, article_id, page_number, title, content, fields) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	return &SQLiteIndexer{
		db:         db,
		insertStmt: stmt,
	}, nil
}

// IndexDocuments adds docs to the current batch. Batches are committed
// every batchSize documents and on Close.
func (s *SQLiteIndexer) IndexDocuments(ctx context.Context, docs ...Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if err := s.index(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndexer) index(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("index %s document: missing id", doc.Doctype)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	if s.tx == nil {
		// The batch outlives the caller's context; it is committed by a
		// later call or by Close.
		tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		s.tx = tx
		s.txStmt = tx.Stmt(s.insertStmt)
	}

	_, err = s.txStmt.ExecContext(ctx, doc.ID, doc.Doctype, doc.String("article_id"), pageNumber(doc),
		documentTitle(doc), documentContent(doc), string(raw))
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}

	s.count++
	if s.count >= batchSize {
		if err := s.flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndexer) flush() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	s.txStmt = nil
	s.count = 0
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *SQLiteIndexer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flush(); err != nil {
		return err
	}
	_ = s.insertStmt.Close()
	return s.db.Close()
}
