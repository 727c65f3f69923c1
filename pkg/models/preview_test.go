package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{95, 10, 10},
		{5, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.size), "total=%d size=%d", tt.total, tt.size)
	}
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 1, ClampPage(0, 5))
	assert.Equal(t, 1, ClampPage(-3, 5))
	assert.Equal(t, 3, ClampPage(3, 5))
	assert.Equal(t, 5, ClampPage(9, 5))
	assert.Equal(t, 1, ClampPage(4, 0), "empty result set still has page 1")
}

func TestPreviewPage_TotalPages(t *testing.T) {
	p := &PreviewPage{PageNumber: 2, PageSize: DefaultPageSize, TotalRecords: 21}
	assert.Equal(t, 3, p.TotalPages())
}
