package config

import (
	"os"
	"path/filepath"
	"testing"

	"ta-fetcher/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippedConfigIsValid(t *testing.T) {
	cfg, err := NewConfig(filepath.Join("..", "..", "config", "default.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "masterlink_ta", cfg.Name)
	assert.Equal(t, "ml_ohlc_D", cfg.Storage.Schemas.OHLCD)
	assert.Equal(t, "/ta", cfg.Endpoint.Prefix)
	assert.Equal(t, 7, cfg.OHLC.StartDateOffsetDays)
	assert.Equal(t, "Asia/Taipei", cfg.Location().String())
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte("catalog:\n  symbols: [\"2330\"]\nport: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"2330"}, cfg.Catalog.Symbols)
	assert.Equal(t, 4, cfg.Bridge.Workers)
	assert.Equal(t, "K_1m", cfg.OHLC.BarInterval)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"empty static catalog": "port: 9000\n",
		"bad indicator":        "catalog: {symbols: [\"2330\"]}\nohlc: {indicator_type: FOO}\n",
		"bad bar":              "catalog: {symbols: [\"2330\"]}\nohlc: {bar_interval: K_2m}\n",
		"bad vendor":           "catalog: {symbols: [\"2330\"]}\nvendor: {type: ftp}\n",
		"gateway without urls": "catalog: {symbols: [\"2330\"]}\nvendor: {type: gateway}\n",
		"bad hour":             "catalog: {symbols: [\"2330\"]}\nmarket: {open_hour: \"9am\"}\n",
		"bad timezone":         "catalog: {symbols: [\"2330\"]}\ntimezone: Mars/Base\n",
		"low port":             "catalog: {symbols: [\"2330\"]}\nport: 80\n",
		"bad prefix":           "catalog: {symbols: [\"2330\"]}\nendpoints: {prefix: ta}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			var cfgErr *helpers.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte("catalog:\n  symbols: [\"2330\", \"2317\"]\n"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Catalog.Symbols, loaded.Catalog.Symbols)
	assert.Equal(t, cfg.Endpoint, loaded.Endpoint)
}

func TestLoadSecretsFromEnvFile(t *testing.T) {
	t.Setenv(EnvAPIUsername, "")
	t.Setenv(EnvAPIPassword, "")
	t.Setenv(EnvSQLURI, "")
	os.Unsetenv(EnvAPIUsername)
	os.Unsetenv(EnvAPIPassword)
	os.Unsetenv(EnvSQLURI)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"API_USERNAME=alice\nAPI_PASSWORD=secret\nSQL_URI=postgres://u:p@db:5432/\n"), 0o600))

	cfg, err := Parse([]byte("catalog: {symbols: [\"2330\"]}\nstorage: {db_type: postgres, db_name: ed_fetcher}\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.LoadSecrets(envFile))

	assert.Equal(t, "alice", cfg.Secrets.APIUsername)
	assert.Equal(t, "secret", cfg.Secrets.APIPassword)
	assert.Equal(t, "postgres://u:p@db:5432/ed_fetcher", cfg.Storage.DBConnectionString)
}

func TestLoadSecretsMissingFileIsFine(t *testing.T) {
	cfg, err := Parse([]byte("catalog: {symbols: [\"2330\"]}\n"))
	require.NoError(t, err)
	assert.NoError(t, cfg.LoadSecrets(filepath.Join(t.TempDir(), "absent.env")))
}
