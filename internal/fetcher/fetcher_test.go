package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(server *httptest.Server) *Client {
	c := NewClient(0)
	c.HTTP = server.Client()
	c.Backoff = 10 * time.Millisecond
	return c
}

func resetConnection(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("server doesn't support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatal(err)
	}
	_ = conn.(*net.TCPConn).SetLinger(0)
	_ = conn.Close()
}

func TestGet_RetriesOnConnectionReset(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			resetConnection(t, w)
			return
		}
		_, _ = w.Write([]byte("content"))
	}))
	defer server.Close()

	body, err := testClient(server).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != "content" {
		t.Fatalf("body = %q", body)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestGet_FailsAfterAllRetries(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := testClient(server).Get(context.Background(), server.URL); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testClient(server).Get(context.Background(), server.URL)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestGet_RetriesTooManyRequests(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	if _, err := testClient(server).Get(context.Background(), server.URL); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

// repository serves a GitLab-style tree and files API for n files under
// "Texte" plus a placeholder.
func repository(t *testing.T, n int) *httptest.Server {
	t.Helper()
	var entries []Entry
	entries = append(entries, Entry{Name: ".gitkeep", Type: "blob", Path: "Texte/.gitkeep"})
	entries = append(entries, Entry{Name: "sub", Type: "tree", Path: "Texte/sub"})
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("brief_%03d.xml", i)
		entries = append(entries, Entry{Name: name, Type: "blob", Path: "Texte/" + name})
	}

	const prefix = "/api/v4/projects/1/repository"
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == prefix+"/tree":
			q := r.URL.Query()
			if q.Get("path") != "Texte" || q.Get("ref") != "main" {
				http.NotFound(w, r)
				return
			}
			per, _ := strconv.Atoi(q.Get("per_page"))
			page, _ := strconv.Atoi(q.Get("page"))
			start := min((page-1)*per, len(entries))
			end := min(start+per, len(entries))
			_ = json.NewEncoder(w).Encode(entries[start:end])
		case strings.HasPrefix(r.URL.Path, prefix+"/files/"):
			path := strings.TrimPrefix(r.URL.Path, prefix+"/files/")
			_ = json.NewEncoder(w).Encode(fileResponse{
				FileName: filepath.Base(path),
				Encoding: "base64",
				Content:  base64.StdEncoding.EncodeToString([]byte("<TEI>" + path + "</TEI>")),
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestFetcher(server *httptest.Server, dir string) *Fetcher {
	f := New(server.URL+"/api/v4/projects/1/repository/", "secret", "main", dir, 0)
	f.Client.HTTP = server.Client()
	f.Client.Backoff = 10 * time.Millisecond
	return f
}

func TestListFilesPages(t *testing.T) {
	server := repository(t, 150)
	defer server.Close()

	files, err := newTestFetcher(server, t.TempDir()).ListFiles(context.Background(), "Texte")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	// 150 letters plus the placeholder; the sub tree is not a file.
	if len(files) != 151 {
		t.Fatalf("files = %d, want 151", len(files))
	}
	if files[150].Name != "brief_149.xml" {
		t.Fatalf("last file = %q", files[150].Name)
	}
}

func TestFetchAll(t *testing.T) {
	server := repository(t, 3)
	defer server.Close()

	dir := t.TempDir()
	paths, err := newTestFetcher(server, dir).FetchAll(context.Background(), "Texte", "", []string{"brief_001.xml "})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	data, err := os.ReadFile(filepath.Join(dir, "brief_002.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<TEI>Texte/brief_002.xml</TEI>" {
		t.Fatalf("content = %q", data)
	}
	for _, name := range []string{".gitkeep", "brief_001.xml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should not be fetched", name)
		}
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".fetch-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadSkipList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/invalid.json" {
			_, _ = w.Write([]byte(`["a.xml","b.xml"]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := &Fetcher{Client: testClient(server)}
	ctx := context.Background()

	names, err := f.LoadSkipList(ctx, server.URL+"/invalid.json")
	if err != nil || len(names) != 2 {
		t.Fatalf("names = %v, err = %v", names, err)
	}
	names, err = f.LoadSkipList(ctx, server.URL+"/missing.json")
	if err != nil || names != nil {
		t.Fatalf("missing list = %v, err = %v", names, err)
	}

	local := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(local, []byte(`["c.xml"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err = f.LoadSkipList(ctx, local)
	if err != nil || len(names) != 1 || names[0] != "c.xml" {
		t.Fatalf("local list = %v, err = %v", names, err)
	}
}
