package search

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schema drops and recreates all tables. The index is rebuilt from scratch
// on each ingest so there is no need for migrations.
const schema = `
DROP TRIGGER IF EXISTS documents_au;
DROP TRIGGER IF EXISTS documents_ad;
DROP TRIGGER IF EXISTS documents_ai;
DROP TABLE IF EXISTS documents_fts;
DROP TABLE IF EXISTS documents;

CREATE TABLE documents (
	id TEXT PRIMARY KEY,
	doctype TEXT NOT NULL,
	article_id TEXT NOT NULL DEFAULT '',
	page_number INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	fields TEXT NOT NULL
);

CREATE INDEX documents_article ON documents(article_id, page_number);

CREATE VIRTUAL TABLE documents_fts USING fts5(
	title, content,
	content='documents',
	content_rowid='rowid'
);

CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, title, content)
	VALUES (new.rowid, new.title, new.content);
END;

CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content)
	VALUES ('delete', old.rowid, old.title, old.content);
END;

CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content)
	VALUES ('delete', old.rowid, old.title, old.content);
	INSERT INTO documents_fts(rowid, title, content)
	VALUES (new.rowid, new.title, new.content);
END;
`

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open search db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}
