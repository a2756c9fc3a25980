package resource

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(n int) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = map[string]interface{}{"id": i + 1}
	}
	return out
}

func TestPaginate(t *testing.T) {
	p := Pagination{PageSize: 10, MaxPageSize: 50}

	t.Run("first page", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items", nil)
		page := p.Paginate(r, results(25))

		assert.Equal(t, 25, page.Count)
		assert.Len(t, page.Results, 10)
		require.NotNil(t, page.Next)
		assert.Equal(t, "http://api.test/items?limit=10&offset=10", *page.Next)
		assert.Nil(t, page.Previous)
	})

	t.Run("middle page", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items?limit=10&offset=10", nil)
		page := p.Paginate(r, results(25))

		assert.Len(t, page.Results, 10)
		require.NotNil(t, page.Next)
		require.NotNil(t, page.Previous)
		assert.Equal(t, "http://api.test/items?limit=10&offset=20", *page.Next)
		assert.Equal(t, "http://api.test/items?limit=10", *page.Previous)
	})

	t.Run("last page", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items?offset=20", nil)
		page := p.Paginate(r, results(25))

		assert.Len(t, page.Results, 5)
		assert.Nil(t, page.Next)
		require.NotNil(t, page.Previous)
	})

	t.Run("client limit honored below the ceiling", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items?limit=3", nil)
		page := p.Paginate(r, results(25))
		assert.Len(t, page.Results, 3)
	})

	t.Run("limit above the ceiling is clamped", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items?limit=9999", nil)
		page := p.Paginate(r, results(200))
		assert.Len(t, page.Results, 50)
	})

	t.Run("garbage parameters fall back to defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items?limit=abc&offset=-3", nil)
		page := p.Paginate(r, results(25))
		assert.Len(t, page.Results, 10)
	})

	t.Run("offset past the end", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items?offset=100", nil)
		page := p.Paginate(r, results(25))
		assert.Len(t, page.Results, 0)
		assert.Equal(t, 25, page.Count)
	})

	t.Run("empty result set", func(t *testing.T) {
		r := httptest.NewRequest("GET", "http://api.test/items", nil)
		page := p.Paginate(r, results(0))
		assert.Equal(t, 0, page.Count)
		assert.Nil(t, page.Next)
		assert.Nil(t, page.Previous)
	})
}

func TestDefaultPagination(t *testing.T) {
	p := DefaultPagination()
	assert.Equal(t, 25, p.PageSize)
	assert.Equal(t, 100, p.MaxPageSize)
}
