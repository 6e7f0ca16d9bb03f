package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const perPage = 100

// Entry is one item of a repository tree listing.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// Fetcher downloads source files from a GitLab repository API, e.g.
// "https://gitlab.example.org/api/v4/projects/42/repository".
type Fetcher struct {
	API     string
	Branch  string
	WorkDir string
	Client  *Client
	Logger  *slog.Logger
}

func New(api, token, branch, workDir string, rps float64) *Fetcher {
	c := NewClient(rps)
	if token != "" {
		c.Header.Set("PRIVATE-TOKEN", token)
	}
	return &Fetcher{
		API:     strings.TrimSuffix(api, "/"),
		Branch:  branch,
		WorkDir: workDir,
		Client:  c,
	}
}

// ListFiles returns the files directly under dir, following the pages of
// the tree listing until an empty page.
func (f *Fetcher) ListFiles(ctx context.Context, dir string) ([]Entry, error) {
	var files []Entry
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("path", dir)
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))
		if f.Branch != "" {
			q.Set("ref", f.Branch)
		}

		var entries []Entry
		if err := f.Client.GetJSON(ctx, f.API+"/tree?"+q.Encode(), &entries); err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", dir, page, err)
		}
		if len(entries) == 0 {
			return files, nil
		}
		for _, e := range entries {
			if e.Type == "blob" {
				files = append(files, e)
			}
		}
		if len(entries) < perPage {
			return files, nil
		}
	}
}

type fileResponse struct {
	FileName string `json:"file_name"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// FetchFile downloads the repository file at path into destDir and
// returns the written path. The file is replaced atomically.
func (f *Fetcher) FetchFile(ctx context.Context, path, destDir string) (string, error) {
	q := url.Values{}
	if f.Branch != "" {
		q.Set("ref", f.Branch)
	}
	src := f.API + "/files/" + url.PathEscape(path)
	if len(q) > 0 {
		src += "?" + q.Encode()
	}

	if f.Logger != nil {
		f.Logger.Debug("downloading file", "path", path)
	}

	var resp fileResponse
	if err := f.Client.GetJSON(ctx, src, &resp); err != nil {
		return "", err
	}
	content := []byte(resp.Content)
	if resp.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(resp.Content)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", path, err)
		}
		content = decoded
	}

	if destDir == "" {
		destDir = f.WorkDir
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	destPath := filepath.Join(destDir, filepath.Base(path))

	tmp, err := os.CreateTemp(destDir, ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	_ = tmp.Close()
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return destPath, nil
}

// FetchAll downloads every file under dir into destDir, skipping
// placeholders and the names in skip. Files that fail are logged and
// left out; the first failure is returned once all files were tried.
func (f *Fetcher) FetchAll(ctx context.Context, dir, destDir string, skip []string) ([]string, error) {
	entries, err := f.ListFiles(ctx, dir)
	if err != nil {
		return nil, err
	}
	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[strings.TrimSpace(name)] = true
	}

	var paths []string
	var firstErr error
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == ".gitkeep" || skipped[name] {
			continue
		}
		if ctx.Err() != nil {
			return paths, ctx.Err()
		}
		path, err := f.FetchFile(ctx, e.Path, destDir)
		if err != nil {
			if f.Logger != nil {
				f.Logger.Error("file could not be fetched", "path", e.Path, "error", err)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		paths = append(paths, path)
	}
	if f.Logger != nil {
		f.Logger.Info("fetched files", "dir", dir, "count", len(paths))
	}
	return paths, firstErr
}

// LoadSkipList reads a JSON array of file names from a URL or a local
// path. A missing list is empty.
func (f *Fetcher) LoadSkipList(ctx context.Context, src string) ([]string, error) {
	if src == "" {
		return nil, nil
	}
	var names []string
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		err := f.Client.GetJSON(ctx, src, &names)
		if IsNotFound(err) {
			return nil, nil
		}
		return names, err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read skip list: %w", err)
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode skip list: %w", err)
	}
	return names, nil
}
