package pipeline

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// readSource reads a TEI source, decompressing it when the path ends
// with ".gz".
func readSource(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return io.ReadAll(file)
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()
	return io.ReadAll(gz)
}

// isSource reports whether name is a TEI file, plain or gzipped.
func isSource(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz")
}
