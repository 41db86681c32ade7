package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func nums(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestWindowMiddlePage(t *testing.T) {
	// 12 items, size 5: pages are 1-5, 6-10, 11-12.
	w, hasPrev, hasNext := Window(nums(12), 1, 5)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, w)
	assert.True(t, hasPrev)
	assert.True(t, hasNext)
}

func TestWindowFirstAndLastPage(t *testing.T) {
	w, hasPrev, hasNext := Window(nums(12), 0, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, w)
	assert.False(t, hasPrev)
	assert.True(t, hasNext)

	w, hasPrev, hasNext = Window(nums(12), 2, 5)
	assert.Equal(t, []int{11, 12}, w)
	assert.True(t, hasPrev)
	assert.False(t, hasNext)
}

func TestWindowClampsOutOfRangePage(t *testing.T) {
	w, hasPrev, hasNext := Window(nums(12), 99, 5)
	assert.Equal(t, []int{11, 12}, w)
	assert.True(t, hasPrev)
	assert.False(t, hasNext)

	w, hasPrev, _ = Window(nums(12), -3, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, w)
	assert.False(t, hasPrev)
}

func TestWindowEmptyList(t *testing.T) {
	w, hasPrev, hasNext := Window([]int{}, 0, 5)
	assert.Empty(t, w)
	assert.False(t, hasPrev)
	assert.False(t, hasNext)
}

func TestWindowExactMultiple(t *testing.T) {
	w, _, hasNext := Window(nums(10), 1, 5)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, w)
	assert.False(t, hasNext)
}

func TestPages(t *testing.T) {
	assert.Equal(t, 1, Pages(0, 5))
	assert.Equal(t, 1, Pages(5, 5))
	assert.Equal(t, 2, Pages(6, 5))
	assert.Equal(t, 3, Pages(12, 5))
}

func TestClampAfterListShrank(t *testing.T) {
	// User was on page 2 of 12 items; the list now holds 4.
	assert.Equal(t, 0, Clamp(2, 4, 5))
}
