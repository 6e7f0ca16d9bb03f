package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tei-tools/tei2search/internal/search"
	"github.com/tei-tools/tei2search/internal/storage"
)

const maxSitemapURLs = 50000

type sitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	XMLNS    string            `xml:"xmlns,attr"`
	Sitemaps []sitemapIndexRef `xml:"sitemap"`
}

type sitemapIndexRef struct {
	XMLName xml.Name `xml:"sitemap"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

// SitemapGenerator creates sitemap XML files for the article records of
// the export.
type SitemapGenerator struct {
	Store   *storage.FSStorage
	SiteURL string // e.g. "https://edition.example.org"
	// DetailURL returns the public page of an article id.
	DetailURL func(id string) string
	Logger    *slog.Logger
}

// Generate writes sitemap-static.xml, chunked sitemap-articles files and
// a sitemap index to {Store.Root}/sitemaps/.
func (g *SitemapGenerator) Generate(ctx context.Context) error {
	sitemapDir := filepath.Join(g.Store.Root, "sitemaps")
	if err := os.MkdirAll(sitemapDir, 0o755); err != nil {
		return fmt.Errorf("create sitemaps dir: %w", err)
	}

	now := time.Now().UTC().Format("2006-01-02")
	var indexRefs []sitemapIndexRef

	staticURLs := []sitemapURL{
		{Loc: g.SiteURL + "/", LastMod: now},
		{Loc: g.SiteURL + "/search", LastMod: now},
	}
	staticFile := "sitemap-static.xml"
	if err := g.writeSitemap(filepath.Join(sitemapDir, staticFile), staticURLs); err != nil {
		return fmt.Errorf("write static sitemap: %w", err)
	}
	indexRefs = append(indexRefs, sitemapIndexRef{
		Loc:     g.SiteURL + "/sitemaps/" + staticFile,
		LastMod: now,
	})

	urls, err := g.articleURLs(ctx)
	if err != nil {
		return err
	}
	chunks := splitURLs(urls, maxSitemapURLs)
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		filename := "sitemap-articles"
		if len(chunks) > 1 {
			filename = fmt.Sprintf("%s-%d", filename, i+1)
		}
		filename += ".xml"
		if err := g.writeSitemap(filepath.Join(sitemapDir, filename), chunk); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
		indexRefs = append(indexRefs, sitemapIndexRef{
			Loc:     g.SiteURL + "/sitemaps/" + filename,
			LastMod: now,
		})
	}

	idx := sitemapIndex{
		XMLNS:    "http://www.sitemaps.org/schemas/sitemap/0.9",
		Sitemaps: indexRefs,
	}
	indexPath := filepath.Join(sitemapDir, "sitemap-index.xml")
	return writeXML(indexPath, idx)
}

func (g *SitemapGenerator) articleURLs(ctx context.Context) ([]sitemapURL, error) {
	if g.DetailURL == nil {
		return nil, nil
	}
	stems, err := g.Store.Stems()
	if err != nil {
		return nil, err
	}

	var urls []sitemapURL
	for _, stem := range stems {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		docs, err := g.Store.ReadDocuments(stem)
		if err != nil {
			if g.Logger != nil {
				g.Logger.Warn("sitemap export error", "stem", stem, "error", err)
			}
			continue
		}
		var lastmod string
		if t, err := g.Store.DocumentsModTime(stem); err == nil {
			lastmod = t.UTC().Format("2006-01-02")
		}
		for _, d := range docs {
			if d.Doctype != search.DoctypeArticle {
				continue
			}
			if loc := g.DetailURL(d.ID); loc != "" {
				urls = append(urls, sitemapURL{Loc: loc, LastMod: lastmod})
			}
		}
	}
	return urls, nil
}

func (g *SitemapGenerator) writeSitemap(path string, urls []sitemapURL) error {
	urlset := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	return writeXML(path, urlset)
}

func writeXML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func splitURLs(urls []sitemapURL, maxPerFile int) [][]sitemapURL {
	if len(urls) <= maxPerFile {
		return [][]sitemapURL{urls}
	}
	var chunks [][]sitemapURL
	for i := 0; i < len(urls); i += maxPerFile {
		end := min(i+maxPerFile, len(urls))
		chunks = append(chunks, urls[i:end])
	}
	return chunks
}
