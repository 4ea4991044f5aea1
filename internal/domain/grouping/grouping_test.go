package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noShuffle(int, func(i, j int)) {}

func reverse(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func sizes[T any](groups [][]T) []int {
	out := make([]int, len(groups))
	for i, g := range groups {
		out[i] = len(g)
	}
	return out
}

func TestGroupCount(t *testing.T) {
	tests := []struct {
		n, min, max int
		want        int
	}{
		{n: 0, min: 2, max: 3, want: 0},
		{n: 10, min: 2, max: 3, want: 4},
		{n: 12, min: 3, max: 4, want: 4},
		{n: 7, min: 3, max: 3, want: 2},
		{n: 1, min: 2, max: 4, want: 1},
		{n: 20, min: 4, max: 5, want: 5},
		{n: 5, min: 3, max: 2, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GroupCount(tt.n, tt.min, tt.max), "n=%d min=%d max=%d", tt.n, tt.min, tt.max)
	}
}

func TestAssignRandomSizes(t *testing.T) {
	tests := []struct {
		name          string
		n, min, max   int
		wantSizes     []int
		wantLeftovers int
	}{
		{name: "even split", n: 12, min: 3, max: 4, wantSizes: []int{3, 3, 3, 3}},
		{name: "uneven split", n: 10, min: 2, max: 3, wantSizes: []int{3, 3, 2, 2}},
		{name: "fewer students than minimum", n: 1, min: 2, max: 4, wantSizes: []int{1}},
		{name: "bounds leave one out", n: 7, min: 3, max: 3, wantSizes: []int{3, 3}, wantLeftovers: 1},
		{name: "no students", n: 0, min: 1, max: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, leftovers := AssignRandom(seq(tt.n), tt.min, tt.max, noShuffle)
			if len(tt.wantSizes) == 0 {
				assert.Empty(t, groups)
			} else {
				assert.Equal(t, tt.wantSizes, sizes(groups))
			}
			assert.Len(t, leftovers, tt.wantLeftovers)
		})
	}
}

func TestAssignRandomCoversEveryStudentOnce(t *testing.T) {
	ids := seq(23)
	groups, leftovers := AssignRandom(ids, 2, 5, nil)

	seen := map[int]int{}
	for _, g := range groups {
		assert.LessOrEqual(t, len(g), 5)
		for _, id := range g {
			seen[id]++
		}
	}
	for _, id := range leftovers {
		seen[id]++
	}
	require.Len(t, seen, len(ids))
	for id, count := range seen {
		assert.Equal(t, 1, count, "student %d", id)
	}
	assert.Equal(t, seq(23), ids, "input must not be reordered")
}

func TestAssignRandomUsesShuffler(t *testing.T) {
	groups, _ := AssignRandom(seq(4), 2, 2, reverse)
	assert.Equal(t, [][]int{{4, 3}, {2, 1}}, groups)
}

func TestAssignRoundRobin(t *testing.T) {
	groups := AssignRoundRobin(seq(7), 3, noShuffle)
	assert.Equal(t, [][]int{{1, 4, 7}, {2, 5}, {3, 6}}, groups)

	assert.Nil(t, AssignRoundRobin(seq(3), 0, noShuffle))
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "Group 1", GroupName(1))
	assert.Equal(t, "Group 12", GroupName(12))
}
