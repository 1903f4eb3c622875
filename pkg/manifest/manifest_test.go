package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	seederrors "github.com/mouradhm/mongo-seed/pkg/errors"
	"github.com/mouradhm/mongo-seed/pkg/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "products"}, m.CollectionNames())
	assert.Equal(t, 2, m.TotalDocuments())

	users := m.Collections[0]
	assert.Equal(t, []models.Document{
		{"name": "Nicholas Hellmers", "location": "Boulder, CO", "title": "Software Engineer"},
		{"name": "Abby Barnes", "location": "Asuncion, PY", "title": "Roku Developer"},
	}, users.Documents)
	assert.Empty(t, m.Collections[1].Documents)
	assert.Empty(t, users.Indexes)
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	m, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Len(t, m.Collections, 2)
}

func TestLoad_YAMLWithIndexes(t *testing.T) {
	path := writeFile(t, "seed.yml", `
collections:
  - name: products
    indexes:
      - name: origin_code
        unique: true
        keys:
          - field: origin
            order: 1
          - field: code
            order: -1
    documents:
      - origin: nissei
        code: A1
        price: 1500
`)
	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Collections, 1)

	products := m.Collections[0]
	require.Len(t, products.Indexes, 1)
	assert.Equal(t, "origin_code", products.Indexes[0].Name)
	assert.True(t, products.Indexes[0].Unique)
	assert.Equal(t, []IndexKey{{Field: "origin", Order: 1}, {Field: "code", Order: -1}}, products.Indexes[0].Keys)
	assert.Equal(t, 1500, products.Documents[0]["price"])
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "seed.toml", `
[[collections]]
name = "users"

[[collections.documents]]
name = "Nicholas Hellmers"
location = "Boulder, CO"

[[collections]]
name = "products"
`)
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "products"}, m.CollectionNames())
	assert.Equal(t, "Boulder, CO", m.Collections[0].Documents[0]["location"])
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "seed.json", `{"collections":[{"name":"users","documents":[{"name":"Abby Barnes"}]}]}`)
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Abby Barnes", m.Collections[0].Documents[0]["name"])
}

func TestLoad_JSONNumbersKeepBSONType(t *testing.T) {
	path := writeFile(t, "seed.json",
		`{"collections":[{"name":"products","documents":[{"sku":"a","qty":3,"price":12.5,"stock":{"shelf":7}}]}]}`)
	m, err := Load(path)
	require.NoError(t, err)

	b, err := bson.Marshal(m.Collections[0].Documents[0])
	require.NoError(t, err)
	raw := bson.Raw(b)

	assert.Equal(t, bsontype.Int64, raw.Lookup("qty").Type)
	assert.Equal(t, int64(3), raw.Lookup("qty").Int64())
	assert.Equal(t, bsontype.Double, raw.Lookup("price").Type)
	assert.Equal(t, bsontype.Int64, raw.Lookup("stock", "shelf").Type)
	assert.Equal(t, bsontype.String, raw.Lookup("sku").Type)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, seederrors.ExitConfiguration, seederrors.ExitCode(err))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "seed.xml", "<collections/>"))
		assert.ErrorIs(t, err, seederrors.ErrUnsupportedFormat)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "seed.yaml", "collections: [\n"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		m    Manifest
	}{
		{"no collections", Manifest{}},
		{"empty name", Manifest{Collections: []Collection{{Name: ""}}}},
		{"dollar", Manifest{Collections: []Collection{{Name: "us$ers"}}}},
		{"system prefix", Manifest{Collections: []Collection{{Name: "system.users"}}}},
		{"duplicate", Manifest{Collections: []Collection{{Name: "users"}, {Name: "users"}}}},
		{"index without keys", Manifest{Collections: []Collection{{Name: "users", Indexes: []Index{{Name: "x"}}}}}},
		{"bad order", Manifest{Collections: []Collection{{Name: "users", Indexes: []Index{{Keys: []IndexKey{{Field: "a", Order: 2}}}}}}}},
		{"empty field", Manifest{Collections: []Collection{{Name: "users", Indexes: []Index{{Keys: []IndexKey{{Order: 1}}}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			require.Error(t, err)
			_, ok := seederrors.TypeOf(err)
			assert.True(t, ok)
		})
	}
}

func TestFilter(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	same, err := m.Filter(nil)
	require.NoError(t, err)
	assert.Same(t, m, same)

	onlyProducts, err := m.Filter([]string{"products"})
	require.NoError(t, err)
	assert.Equal(t, []string{"products"}, onlyProducts.CollectionNames())
	assert.Len(t, m.Collections, 2)

	_, err = m.Filter([]string{"orders"})
	assert.Error(t, err)
}
