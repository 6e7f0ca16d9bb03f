// Package enrich adds authority file data to entity records.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/tei-tools/tei2search/internal/fetcher"
	"github.com/tei-tools/tei2search/internal/search"
)

// Fields added to entity records.
const (
	MostlyUsedName    = "mostly_used_name"
	AlternativelyName = "alternatively_name"
)

var validID = regexp.MustCompile(`^[0-9A-Za-z-]+$`)

// Record is the part of an authority record that is indexed.
type Record struct {
	PreferredName string   `json:"preferredName"`
	VariantName   []string `json:"variantName"`
}

// GNDClient looks up authority records as "<api>/<id>.json". Responses
// are kept in CacheDir and are not requested again.
type GNDClient struct {
	API      string
	CacheDir string
	HTTP     *fetcher.Client
	Logger   *slog.Logger

	mu  sync.Mutex
	mem map[string]*Record
}

func NewGNDClient(api, cacheDir string, rps float64) *GNDClient {
	return &GNDClient{
		API:      strings.TrimSuffix(api, "/"),
		CacheDir: cacheDir,
		HTTP:     fetcher.NewClient(rps),
		mem:      make(map[string]*Record),
	}
}

// Lookup returns the record for id, from the cache when possible.
func (c *GNDClient) Lookup(ctx context.Context, id string) (*Record, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("invalid authority id %q", id)
	}

	c.mu.Lock()
	if r, ok := c.mem[id]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	raw, err := c.readCache(id)
	if err != nil {
		raw, err = c.HTTP.Get(ctx, c.API+"/"+id+".json")
		if err != nil {
			return nil, err
		}
		if werr := c.writeCache(id, raw); werr != nil && c.Logger != nil {
			c.Logger.Warn("authority cache write failed", "id", id, "error", werr)
		}
	}

	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode authority record %s: %w", id, err)
	}

	c.mu.Lock()
	if c.mem == nil {
		c.mem = make(map[string]*Record)
	}
	c.mem[id] = &r
	c.mu.Unlock()
	return &r, nil
}

func (c *GNDClient) cachePath(id string) string {
	return filepath.Join(c.CacheDir, id+".json")
}

func (c *GNDClient) readCache(id string) ([]byte, error) {
	if c.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(c.cachePath(id))
}

func (c *GNDClient) writeCache(id string, raw []byte) error {
	if c.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.CacheDir, ".gnd-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	_ = tmp.Close()
	if err := os.Rename(tmp.Name(), c.cachePath(id)); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Apply adds the preferred and variant names to the entity records of
// docs. A failed lookup is logged and leaves the record as it is.
func (c *GNDClient) Apply(ctx context.Context, docs []search.Document) error {
	for i := range docs {
		if docs[i].Doctype != search.DoctypeEntity {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := c.Lookup(ctx, docs[i].ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if c.Logger != nil {
				c.Logger.Warn("authority lookup failed", "id", docs[i].ID, "error", err)
			}
			continue
		}
		docs[i].Set(MostlyUsedName, strings.TrimSpace(r.PreferredName))
		docs[i].SetList(AlternativelyName, r.VariantName)
	}
	return nil
}
