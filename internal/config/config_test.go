package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finscrape/finscrape/internal/fetch"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvSite, EnvTicker, EnvAddr, EnvTimeout, EnvSitesFile, EnvLogLevel, EnvUserAgent} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSite, cfg.Site)
	assert.Equal(t, "TSLA", cfg.Ticker)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, fetch.Timeout, cfg.Timeout)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Empty(t, cfg.SitesFile)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSite, "zacks")
	t.Setenv(EnvTicker, "AAPL")
	t.Setenv(EnvTimeout, "5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "zacks", cfg.Site)
	assert.Equal(t, "AAPL", cfg.Ticker)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, including
	// empty ones, so unset the ones the file provides.
	os.Unsetenv(EnvTicker)
	os.Unsetenv(EnvAddr)
	t.Cleanup(func() {
		os.Unsetenv(EnvTicker)
		os.Unsetenv(EnvAddr)
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINSCRAPE_TICKER=MSFT\nFINSCRAPE_ADDR=127.0.0.1:8080\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MSFT", cfg.Ticker)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
}

func TestLoad_BadTimeout(t *testing.T) {
	tests := []string{"soon", "-1s", "0s"}

	for _, v := range tests {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvTimeout, v)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestCatalogue_NoSitesFile(t *testing.T) {
	cat, err := (&Config{}).Catalogue()
	require.NoError(t, err)
	assert.Equal(t, []string{"marketwatch", "names", "yahoo", "zacks"}, cat.Names())
}

func TestCatalogue_SitesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	content := `sites:
  yahoo:
    selector:
      version: "2024-02-01"
      container:
        tag: section
        class: "fin-table"
      row:
        tag: div
        class: "row"
  macrotrends:
    url: "https://example.com/{ticker}/balance-sheet"
    ticker_case: lower
    rule: positional
    key_index: 0
    value_index: 2
    selector:
      row:
        tag: tr
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cat, err := (&Config{SitesFile: path}).Catalogue()
	require.NoError(t, err)

	yahoo, err := cat.Lookup("yahoo")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", yahoo.Selector.Version)
	assert.Equal(t, "section", yahoo.Selector.Container.Tag)
	assert.Equal(t, "fin-table", yahoo.Selector.Container.Class)
	assert.Equal(t, "row", yahoo.Selector.Row.Class)

	mt, err := cat.Lookup("macrotrends")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ibm/balance-sheet", mt.URL("IBM"))
	assert.Equal(t, 2, mt.ValueIndex)
	assert.Equal(t, 3, mt.MinSegments())
}

func TestCatalogue_BadSitesFile(t *testing.T) {
	dir := t.TempDir()

	missing := &Config{SitesFile: filepath.Join(dir, "nope.yaml")}
	_, err := missing.Catalogue()
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sites: [not, a, map"), 0o600))
	_, err = (&Config{SitesFile: bad}).Catalogue()
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("sites:\n  yahoo:\n    rule: regex\n"), 0o600))
	_, err = (&Config{SitesFile: invalid}).Catalogue()
	assert.Error(t, err)
}
