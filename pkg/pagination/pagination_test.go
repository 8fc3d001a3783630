package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext(t *testing.T) {
	cases := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=50&offset=10", 50, 10},
		{"?limit=500", MaxLimit, 0},
		{"?limit=0", DefaultLimit, 0},
		{"?limit=-3&offset=-5", DefaultLimit, 0},
		{"?limit=ten&offset=x", DefaultLimit, 0},
		{"?limit=100&offset=200", 100, 200},
	}
	for _, tc := range cases {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), httptest.NewRecorder())
		got := FromContext(c)
		if got.Limit != tc.limit || got.Offset != tc.offset {
			t.Errorf("%q: got %+v, want limit=%d offset=%d", tc.query, got, tc.limit, tc.offset)
		}
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	cases := []struct {
		total, limit, offset int
		more                 bool
	}{
		{10, 3, 0, true},
		{3, 3, 0, false},
		{25, 10, 15, false},
		{25, 10, 20, false},
		{0, 10, 0, false},
	}
	for _, tc := range cases {
		r := NewResponse([]string{}, tc.total, tc.limit, tc.offset)
		if r.HasMore != tc.more {
			t.Errorf("total=%d limit=%d offset=%d: hasMore=%v", tc.total, tc.limit, tc.offset, r.HasMore)
		}
	}
}

func TestLinks(t *testing.T) {
	cases := []struct {
		name    string
		params  Params
		filters string
		total   int
		want    Links
	}{
		{
			name:   "first of several",
			params: Params{Limit: 10},
			total:  25,
			want:   Links{Self: "/api/visits?limit=10&offset=0", Next: "/api/visits?limit=10&offset=10"},
		},
		{
			name:   "last page",
			params: Params{Limit: 10, Offset: 20},
			total:  25,
			want:   Links{Self: "/api/visits?limit=10&offset=20", Previous: "/api/visits?limit=10&offset=10"},
		},
		{
			name:   "previous clamps at zero",
			params: Params{Limit: 10, Offset: 5},
			total:  8,
			want:   Links{Self: "/api/visits?limit=10&offset=5", Previous: "/api/visits?limit=10&offset=0"},
		},
		{
			name:    "filters are kept and stale paging replaced",
			params:  Params{Limit: 2},
			filters: "stage=front_desk&limit=99",
			total:   3,
			want: Links{
				Self: "/api/visits?limit=2&offset=0&stage=front_desk",
				Next: "/api/visits?limit=2&offset=2&stage=front_desk",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.params.Links("/api/visits", tc.filters, tc.total)
			if *got != tc.want {
				t.Errorf("got %+v\nwant %+v", *got, tc.want)
			}
		})
	}
}

func TestResponse_JSONShape(t *testing.T) {
	r := NewResponse([]int{1, 2}, 2, 20, 0)
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	const want = `{"data":[1,2],"total":2,"limit":20,"offset":0,"hasMore":false}`
	if string(b) != want {
		t.Errorf("got %s", b)
	}
}
