package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const letter = `<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader><fileDesc><titleStmt><title level="a">Brief an Goethe</title></titleStmt></fileDesc></teiHeader>
  <text xml:id="brief_1" xml:lang="de"><body><div>
    <pb n="1"/><p>Verehrter Herr</p>
  </div></body></text>
</TEI>`

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("tei_dir: "+dir+"\nfields: [title]\nindex_pages: true\nlog_level: error\n"), 0o644))
	src := filepath.Join(dir, "brief_1.xml")
	require.NoError(t, os.WriteFile(src, []byte(letter), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"render", "--config", cfgPath, "--pages", src})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())

	var result renderOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "brief_1", result.ID)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, "Brief an Goethe", result.Documents[0].String("title"))
	require.Len(t, result.Pages, 2)
	assert.Contains(t, result.Pages[1].Edited, "Verehrter Herr")
}

func TestRenderCommandMissingConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"render", "--config", filepath.Join(t.TempDir(), "none.yaml"), "x.xml"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.ErrorContains(t, rootCmd.Execute(), "load config")
}
