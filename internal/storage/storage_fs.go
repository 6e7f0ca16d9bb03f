package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tei-tools/tei2search/internal/search"
)

const (
	pagesDir     = "pages"
	documentsDir = "documents"
	cacheDir     = ".cache"
)

// FSStorage keeps the output of a run below Root:
//
//	pages/<id>/<n>.<variant>.html   rendered pages
//	documents/<stem>.json           search records of one source file
//	.cache/<stem>                   checksum of the source last processed
type FSStorage struct {
	Root string
}

func NewFSStorage(root string) *FSStorage {
	return &FSStorage{Root: root}
}

// Checksum identifies source content for the processing cache.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Stem is the cache and export key of a source file: its base name
// without extension.
func Stem(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".gz") {
		base = base[:len(base)-3]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WritePage stores one rendered view of page n of document id.
func (s *FSStorage) WritePage(ctx context.Context, id string, n int, variant string, content []byte) error {
	name := strconv.Itoa(n) + "." + variant + ".html"
	return s.writeFile(filepath.Join(pagesDir, safeName(id), name), content)
}

// ReadPage returns a page written by WritePage.
func (s *FSStorage) ReadPage(id string, n int, variant string) ([]byte, error) {
	name := strconv.Itoa(n) + "." + variant + ".html"
	return os.ReadFile(filepath.Join(s.Root, pagesDir, safeName(id), name))
}

// WriteDocuments replaces the export of stem with docs.
func (s *FSStorage) WriteDocuments(ctx context.Context, stem string, docs []search.Document) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode documents %s: %w", stem, err)
	}
	return s.writeFile(s.documentsPath(stem), data)
}

// ReadDocuments returns the export of stem.
func (s *FSStorage) ReadDocuments(stem string) ([]search.Document, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, s.documentsPath(stem)))
	if err != nil {
		return nil, err
	}
	var docs []search.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode documents %s: %w", stem, err)
	}
	return docs, nil
}

// DocumentsModTime returns when the export of stem was last written.
func (s *FSStorage) DocumentsModTime(stem string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(s.Root, s.documentsPath(stem)))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Stems lists the exported stems in name order.
func (s *FSStorage) Stems() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, documentsDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read documents dir: %w", err)
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(stems)
	return stems, nil
}

// CheckCache reports whether stem was last processed from content with
// the given checksum and its export is still present.
func (s *FSStorage) CheckCache(stem string, sum string) bool {
	data, err := os.ReadFile(s.cachePath(stem))
	if err != nil || string(data) != sum {
		return false
	}
	_, err = os.Stat(filepath.Join(s.Root, s.documentsPath(stem)))
	return err == nil
}

func (s *FSStorage) WriteCache(ctx context.Context, stem string, sum string) error {
	if stem == "" {
		return fmt.Errorf("cache stem required")
	}
	return s.writeFileAbsolute(s.cachePath(stem), []byte(sum))
}

func (s *FSStorage) documentsPath(stem string) string {
	return filepath.Join(documentsDir, safeName(stem)+".json")
}

func (s *FSStorage) cachePath(stem string) string {
	return filepath.Join(s.Root, cacheDir, safeName(stem))
}

// WriteFile stores content at destPath below Root.
func (s *FSStorage) WriteFile(ctx context.Context, destPath string, content []byte) error {
	return s.writeFile(destPath, content)
}

func (s *FSStorage) writeFile(destPath string, content []byte) error {
	fullPath := filepath.Join(s.Root, filepath.FromSlash(destPath))
	return s.writeFileAbsolute(fullPath, content)
}

func (s *FSStorage) writeFileAbsolute(fullPath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// Remove any existing file or symlink so os.WriteFile does not
	// follow a stale symlink.
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// safeName keeps ids from escaping their directory.
func safeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	if name == "." || name == ".." || name == "" {
		return "_"
	}
	return name
}
