package pagination

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		page, size string
		want       Params
	}{
		{"defaults", "", "", Params{1, 20}},
		{"non numeric", "abc", "x", Params{1, 20}},
		{"negative", "-2", "0", Params{1, 20}},
		{"explicit", "3", "5", Params{3, 5}},
		{"capped", "1", "1000", Params{1, MaxSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.page, tt.size))
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 20))
	assert.Equal(t, 1, TotalPages(1, 20))
	assert.Equal(t, 1, TotalPages(20, 20))
	assert.Equal(t, 2, TotalPages(21, 20))
	assert.Equal(t, 3, TotalPages(41, 20))
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, New(1, 20).Offset())
	assert.Equal(t, 40, New(3, 20).Offset())
}

func TestOffsetHugePage(t *testing.T) {
	for _, size := range []int{1, 7, 20, MaxSize} {
		p := Parse(strconv.Itoa(math.MaxInt), strconv.Itoa(size))
		assert.GreaterOrEqual(t, p.Offset(), 0, "size %d", size)
		assert.Greater(t, p.Page, 1)
	}
	assert.GreaterOrEqual(t, New(math.MaxInt, 0).Offset(), 0)
}

func TestNewPageNeverNull(t *testing.T) {
	page := NewPage[string](nil, 5, New(9, 2))
	assert.NotNil(t, page.Items)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 9, page.CurrentPage)

	b, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"totalPages":3,"currentPage":9}`, string(b))
}
