package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "/etc/tei2search/config.yaml"

// DefaultFields is the article whitelist used when none is configured.
var DefaultFields = []string{
	"title", "short_title", "author", "editor", "publisher", "publication_place",
	"publication_date", "origin_date", "origin_place", "destination_place", "recipient",
	"institution", "repository", "settlement", "country", "shelfmark", "script_source",
	"source_description", "writer", "language", "license", "license_link", "reference",
	"response", "related_items", "free_keyword", "gnd_keyword", "image_ids", "image_urls",
	"number_of_pages", "page_from", "page_to", "existence_period", "article_own_gnds",
	"fulltext", "transcripted_text", "edited_text", "gnds",
}

type Renditions struct {
	Transcription map[string]string `json:"transcription" yaml:"transcription"`
	Edited        map[string]string `json:"edited" yaml:"edited"`
}

// GND configures the authority lookups of entity records.
type GND struct {
	API      string  `json:"api" yaml:"api"`
	CacheDir string  `json:"cache_dir" yaml:"cache_dir"`
	Rate     float64 `json:"rate" yaml:"rate"`
}

// Repository configures the GitLab source of the TEI and bibliography
// files.
type Repository struct {
	API            string  `json:"api" yaml:"api"`
	Token          string  `json:"token" yaml:"token"`
	Branch         string  `json:"branch" yaml:"branch"`
	Path           string  `json:"path" yaml:"path"`
	LiteraturePath string  `json:"literature_path" yaml:"literature_path"`
	InvalidList    string  `json:"invalid_list" yaml:"invalid_list"`
	Rate           float64 `json:"rate" yaml:"rate"`
}

type Config struct {
	Site string `json:"site" yaml:"site"`
	// DetailURL is the public page of one article; "{id}" is replaced by
	// the article id.
	DetailURL     string `json:"detail_url" yaml:"detail_url"`
	Listen        string `json:"listen" yaml:"listen"`
	TEIDir        string `json:"tei_dir" yaml:"tei_dir"`
	LiteratureDir string `json:"literature_dir" yaml:"literature_dir"`
	OutputDir     string `json:"output_dir" yaml:"output_dir"`
	IndexPath     string `json:"index_path" yaml:"index_path"`
	FailuresLog   string `json:"failures_log" yaml:"failures_log"`

	Fields        []string `json:"fields" yaml:"fields"`
	IndexPages    bool     `json:"index_pages" yaml:"index_pages"`
	IndexEntities bool     `json:"index_entities" yaml:"index_entities"`
	IndexNotes    bool     `json:"index_notes" yaml:"index_notes"`
	JoinHyphens   bool     `json:"join_hyphens" yaml:"join_hyphens"`

	Workers  int    `json:"workers" yaml:"workers"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	DocumentLanguages  map[string]string `json:"document_languages" yaml:"document_languages"`
	HandleAuthorName   bool              `json:"handle_author_name" yaml:"handle_author_name"`
	EntityPrefix       string            `json:"entity_prefix" yaml:"entity_prefix"`
	Renditions         Renditions        `json:"renditions" yaml:"renditions"`
	LiteratureElements map[string]string `json:"literature_elements" yaml:"literature_elements"`

	GND        GND        `json:"gnd" yaml:"gnd"`
	Repository Repository `json:"repository" yaml:"repository"`
}

func DefaultPath() string {
	if path := os.Getenv("TEI2SEARCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// Load reads a JSON or, for .yaml and .yml files, a YAML config, fills
// in defaults and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	mergeWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func mergeWithEnv(c *Config) {
	if token := os.Getenv("GITLAB_TOKEN"); token != "" && c.Repository.Token == "" {
		c.Repository.Token = token
	}
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(c.OutputDir, "search.db")
	}
	if c.FailuresLog == "" {
		c.FailuresLog = filepath.Join(c.OutputDir, "failures.log")
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if len(c.Fields) == 0 {
		c.Fields = append([]string(nil), DefaultFields...)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.EntityPrefix == "" {
		c.EntityPrefix = "gnd:"
	}
	if c.GND.API == "" {
		c.GND.API = "https://lobid.org/gnd"
	}
	if c.GND.CacheDir == "" {
		c.GND.CacheDir = filepath.Join(c.OutputDir, "gnd")
	}
	if c.GND.Rate == 0 {
		c.GND.Rate = 5
	}
	if c.Repository.Branch == "" {
		c.Repository.Branch = "main"
	}
	if c.Repository.Rate == 0 {
		c.Repository.Rate = 5
	}
}

func (c *Config) Validate() error {
	if c.TEIDir == "" {
		return errors.New("config tei_dir is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.DetailURL != "" && !strings.Contains(c.DetailURL, "{id}") {
		return errors.New("config detail_url must contain {id}")
	}
	for _, f := range c.Fields {
		if strings.TrimSpace(f) == "" {
			return errors.New("config fields must not contain empty names")
		}
	}
	if c.GND.Rate < 0 || c.Repository.Rate < 0 {
		return errors.New("config rate must not be negative")
	}
	if c.Repository.API != "" {
		u, err := url.Parse(c.Repository.API)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config repository.api %q is not an http(s) URL", c.Repository.API)
		}
		if c.Repository.Path == "" {
			return errors.New("config repository.path is required with repository.api")
		}
	}
	return nil
}

func (c *Config) SiteURL() string {
	return strings.TrimRight(c.Site, "/")
}

// ArticleURL returns the public page of article id, or "" without a
// detail_url template.
func (c *Config) ArticleURL(id string) string {
	if c.DetailURL == "" || id == "" {
		return ""
	}
	return strings.ReplaceAll(c.DetailURL, "{id}", id)
}
