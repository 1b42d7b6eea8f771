package catalog

import (
	"context"
	"errors"
	"testing"

	"ta-fetcher/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	columns    map[string][]string
	registered []models.MSymbolMetadata
}

func (f *fakeStore) ListColumn(_ context.Context, schema, table, field string) ([]string, error) {
	v, ok := f.columns[schema+"."+table+"."+field]
	if !ok {
		return nil, errors.New("no such table")
	}
	return v, nil
}

func (f *fakeStore) RegisterSymbols(_ context.Context, symbols []models.MSymbolMetadata) error {
	f.registered = append(f.registered, symbols...)
	return nil
}

type fakeNetwork struct {
	body []byte
	err  error
}

func (f *fakeNetwork) Get(context.Context, string, map[string]string) ([]byte, error) {
	return f.body, f.err
}

func (f *fakeNetwork) PostJSON(context.Context, string, interface{}) ([]byte, error) {
	return nil, errors.New("unused")
}

// -----------------------------------------------------------------------------

func TestStaticCatalogKeepsOrder(t *testing.T) {
	c := &StaticCatalog{Symbols: []string{"2330", "2317", "2330", "0050"}}
	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2330", "2317", "0050"}, got)
}

func TestStaticCatalogExpandsTableRefs(t *testing.T) {
	store := &fakeStore{columns: map[string][]string{"ref.stocks.code": {"1101", "1102"}}}
	c := &StaticCatalog{Symbols: []string{"2330", "ref.stocks.code"}, Store: store}

	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2330", "1101", "1102"}, got)
	assert.Len(t, store.registered, 4)
}

func TestTableCatalogSorts(t *testing.T) {
	store := &fakeStore{columns: map[string][]string{"public.stocks.code": {"2330", "1101", "2317", ""}}}
	c := &TableCatalog{Store: store, Schema: "public", Table: "stocks", Field: "code"}

	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1101", "2317", "2330"}, got)
}

func TestHTTPCatalogFormats(t *testing.T) {
	cases := map[string]string{
		"array":  `["2330", "2317"]`,
		"object": `{"symbols": ["2317", "2330", "2330"]}`,
		"lines":  "# twse\n2330\n\n2317\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := &HTTPCatalog{URL: "http://example/list", Network: &fakeNetwork{body: []byte(body)}}
			got, err := c.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"2317", "2330"}, got)
		})
	}
}

func TestHTTPCatalogErrors(t *testing.T) {
	c := &HTTPCatalog{Network: &fakeNetwork{err: errors.New("boom")}}
	_, err := c.List(context.Background())
	assert.Error(t, err)

	_, err = ParseSymbolList([]byte(`[1, 2`))
	assert.Error(t, err)
}
