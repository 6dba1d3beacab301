package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantPer    int
		wantOffset int
		wantSearch string
	}{
		{"defaults", "", 1, 20, 0, ""},
		{"custom", "?page=3&per_page=10", 3, 10, 20, ""},
		{"negative page", "?page=-1", 1, 20, 0, ""},
		{"zero page", "?page=0", 1, 20, 0, ""},
		{"non numeric", "?page=abc&per_page=xyz", 1, 20, 0, ""},
		{"per_page above cap", "?per_page=101", 1, 20, 0, ""},
		{"per_page at cap", "?per_page=100", 1, 100, 0, ""},
		{"search trimmed", "?search=%20coffee%20&page=2", 2, 20, 20, "coffee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest(http.MethodGet, "/business"+tt.query, nil))
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPer, p.PerPage)
			assert.Equal(t, tt.wantPer, p.Limit())
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.Equal(t, tt.wantSearch, p.Search)
		})
	}
}

func TestParams_Normalized(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"zero value", Params{}, Params{Page: 1, PerPage: DefaultPerPage}},
		{"negative page", Params{Page: -3, PerPage: 10}, Params{Page: 1, PerPage: 10}},
		{"too large", Params{Page: 2, PerPage: 500}, Params{Page: 2, PerPage: MaxPerPage}},
		{"search kept", Params{Page: 1, PerPage: 5, Search: "cafe"}, Params{Page: 1, PerPage: 5, Search: "cafe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalized())
		})
	}
}
