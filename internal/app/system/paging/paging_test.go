package paging

import (
	"net/http/httptest"
	"reflect"
	"testing"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestTrimPage(t *testing.T) {
	small := ConfigureKeyset("", "")
	small.Limit = 3

	tests := []struct {
		name       string
		before     string
		after      string
		rows       []int
		wantRows   []int
		wantResult Result
	}{
		{"first page, no extra", "", "", []int{1, 2}, []int{1, 2}, Result{}},
		{"first page, has next", "", "", seq(4), []int{1, 2, 3}, Result{HasNext: true}},
		{"forward page, has next", "", "c", seq(4), []int{1, 2, 3}, Result{HasPrev: true, HasNext: true}},
		{"forward page, last", "", "c", []int{1}, []int{1}, Result{HasPrev: true}},
		// backward fetches come newest-first; the extra row is the last one.
		{"backward page, has prev", "c", "", []int{9, 8, 7, 6}, []int{7, 8, 9}, Result{HasPrev: true, HasNext: true}},
		{"backward page, first", "c", "", []int{2, 1}, []int{1, 2}, Result{HasNext: true}},
		{"empty", "", "", []int{}, []int{}, Result{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ConfigureKeyset(tt.before, tt.after)
			cfg.Limit = small.Limit
			rows := append([]int(nil), tt.rows...)
			if rows == nil {
				rows = []int{}
			}
			got := TrimPage(cfg, &rows)
			if !reflect.DeepEqual(rows, tt.wantRows) {
				t.Errorf("rows = %v, want %v", rows, tt.wantRows)
			}
			if got != tt.wantResult {
				t.Errorf("result = %+v, want %+v", got, tt.wantResult)
			}
		})
	}
}

func TestConfigureKeyset(t *testing.T) {
	id := primitive.NewObjectID()
	cur := wafflemongo.EncodeCursor("go basics", id)

	cfg := ConfigureKeyset("", "")
	if cfg.Direction != Forward || cfg.SortOrder != 1 || cfg.Cursor != nil {
		t.Errorf("first page config = %+v", cfg)
	}
	if cfg.KeysetWindow("title_ci") != nil {
		t.Error("expected no window without cursor")
	}

	cfg = ConfigureKeyset(cur, "")
	if cfg.Direction != Backward || cfg.SortOrder != -1 {
		t.Errorf("backward config = %+v", cfg)
	}
	if cfg.Cursor == nil || cfg.Cursor.ID != id {
		t.Fatalf("cursor not decoded: %+v", cfg.Cursor)
	}
	if cfg.KeysetWindow("title_ci") == nil {
		t.Error("expected a window with cursor")
	}
}

func TestFromRequest_Limit(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/courses", PageSize},
		{"/courses?limit=5", 5},
		{"/courses?limit=-1", PageSize},
		{"/courses?limit=100000", MaxPageSize},
	}
	for _, tt := range tests {
		cfg := FromRequest(httptest.NewRequest("GET", tt.target, nil))
		if cfg.Limit != tt.want {
			t.Errorf("%s: limit = %d, want %d", tt.target, cfg.Limit, tt.want)
		}
	}
}

func TestApplyToFind(t *testing.T) {
	cfg := ConfigureKeyset("", "")
	cfg.Limit = 10
	find := options.Find()
	cfg.ApplyToFind(find, "title_ci")
	if find.Limit == nil || *find.Limit != 11 {
		t.Errorf("limit = %v, want 11", find.Limit)
	}
}

func TestBuildCursors(t *testing.T) {
	type row struct {
		key string
		id  primitive.ObjectID
	}
	rows := []row{{"a", primitive.NewObjectID()}, {"b", primitive.NewObjectID()}}
	prev, next := BuildCursors(rows, func(r row) string { return r.key }, func(r row) primitive.ObjectID { return r.id })
	if prev == "" || next == "" || prev == next {
		t.Errorf("unexpected cursors %q %q", prev, next)
	}
	if p, n := BuildCursors([]row{}, nil, nil); p != "" || n != "" {
		t.Error("expected empty cursors for empty rows")
	}
}
