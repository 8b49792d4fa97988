package paging

import (
	"net/http/httptest"
	"testing"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count, size, want int
	}{
		{0, 6, 0},
		{1, 6, 1},
		{6, 6, 1},
		{7, 6, 2},
		{13, 6, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.count, tt.size, got, tt.want)
		}
	}
}

func TestWindow_ThirteenRecordsPageSizeSix(t *testing.T) {
	rows := seq(13)

	tests := []struct {
		page    int
		wantLen int
		first   int
	}{
		{1, 6, 1},
		{2, 6, 7},
		{3, 1, 13},
		{4, 0, 0},
	}
	for _, tt := range tests {
		got := Window(rows, 6, tt.page)
		if len(got) != tt.wantLen {
			t.Errorf("page %d: len = %d, want %d", tt.page, len(got), tt.wantLen)
			continue
		}
		if tt.wantLen > 0 && got[0] != tt.first {
			t.Errorf("page %d: first = %d, want %d", tt.page, got[0], tt.first)
		}
	}
}

func TestWindow_OutOfRange(t *testing.T) {
	rows := seq(3)

	for _, page := range []int{0, -1, 2, 100} {
		if got := Window(rows, 3, page); len(got) != 0 {
			t.Errorf("page %d: expected empty, got %v", page, got)
		}
	}
	if got := Window([]int{}, 6, 1); len(got) != 0 {
		t.Errorf("empty rows: expected empty, got %v", got)
	}
	if got := Window(rows, 0, 1); len(got) != 0 {
		t.Errorf("zero page size: expected empty, got %v", got)
	}
}

func TestWindow_AppendDoesNotClobberSource(t *testing.T) {
	rows := seq(6)
	page := Window(rows, 3, 1)
	_ = append(page, 99)

	if rows[3] != 4 {
		t.Errorf("append through window overwrote source: %v", rows)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		page, total, want int
	}{
		{1, 0, 1},
		{3, 0, 1},
		{0, 3, 1},
		{2, 3, 2},
		{4, 3, 3},
	}
	for _, tt := range tests {
		if got := Clamp(tt.page, tt.total); got != tt.want {
			t.Errorf("Clamp(%d, %d) = %d, want %d", tt.page, tt.total, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name              string
		count, size, page int
		want              Range
	}{
		{
			name:  "first page",
			count: 13, size: 6, page: 1,
			want: Range{Start: 1, End: 6, Total: 13, Page: 1, Pages: 3, NextPage: 2},
		},
		{
			name:  "last partial page",
			count: 13, size: 6, page: 3,
			want: Range{Start: 13, End: 13, Total: 13, Page: 3, Pages: 3, PrevPage: 2},
		},
		{
			name:  "past the end",
			count: 13, size: 6, page: 4,
			want: Range{Total: 13, Page: 4, Pages: 3, PrevPage: 3},
		},
		{
			name:  "empty",
			count: 0, size: 6, page: 1,
			want: Range{Page: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.count, tt.size, tt.page); got != tt.want {
				t.Errorf("Describe = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/assign/p1", 1},
		{"/assign/p1?page=3", 3},
		{"/assign/p1?page=0", 1},
		{"/assign/p1?page=abc", 1},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.url, nil)
		if got := ParsePage(r); got != tt.want {
			t.Errorf("ParsePage(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	r := httptest.NewRequest("GET", "/assign/p1?size=12", nil)
	if got := ParseSize(r, PageSize); got != 12 {
		t.Errorf("ParseSize = %d, want 12", got)
	}
	r = httptest.NewRequest("GET", "/assign/p1", nil)
	if got := ParseSize(r, PageSize); got != PageSize {
		t.Errorf("ParseSize default = %d, want %d", got, PageSize)
	}
}

func TestParseLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/users?limit=25", nil)
	if got := ParseLimit(r, DirectoryLimit); got != 25 {
		t.Errorf("ParseLimit = %d, want 25", got)
	}
	r = httptest.NewRequest("GET", "/api/v1/users?limit=-3", nil)
	if got := ParseLimit(r, DirectoryLimit); got != DirectoryLimit {
		t.Errorf("ParseLimit negative = %d, want %d", got, DirectoryLimit)
	}
}
