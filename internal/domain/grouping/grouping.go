// Package grouping splits a promotion's students into project groups.
package grouping

import (
	"fmt"
	"math/rand/v2"
)

// Shuffler reorders n elements in place through swap.
type Shuffler func(n int, swap func(i, j int))

// DefaultShuffler uses the process-wide random source.
var DefaultShuffler Shuffler = rand.Shuffle

// GroupName returns the display name of the k-th group, 1-based.
func GroupName(k int) string {
	return fmt.Sprintf("Group %d", k)
}

// GroupCount returns how many groups n students need when each group holds
// between minSize and maxSize students. At least one group is returned
// whenever there are students.
func GroupCount(n, minSize, maxSize int) int {
	if n <= 0 || minSize < 1 || maxSize < minSize {
		return 0
	}
	total := min(n/maxSize+1, n/minSize)
	if total < 1 {
		total = 1
	}
	return total
}

// AssignRandom shuffles ids and splits them into groups whose sizes stay
// as close as possible to an even share while respecting the bounds.
// Students the bounds cannot place are returned as leftovers and stay
// unassigned.
func AssignRandom[T any](ids []T, minSize, maxSize int, shuffle Shuffler) (groups [][]T, leftovers []T) {
	n := len(ids)
	total := GroupCount(n, minSize, maxSize)
	if total == 0 {
		return nil, ids
	}
	if shuffle == nil {
		shuffle = DefaultShuffler
	}

	pool := make([]T, n)
	copy(pool, ids)
	shuffle(n, func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	groups = make([][]T, 0, total)
	next := 0
	for i := 0; i < total; i++ {
		remaining := n - next
		share := (remaining + (total - i) - 1) / (total - i)
		size := min(maxSize, max(minSize, share), remaining)
		groups = append(groups, pool[next:next+size])
		next += size
	}
	return groups, pool[next:]
}

// AssignRoundRobin shuffles ids and deals them one by one across count
// groups.
func AssignRoundRobin[T any](ids []T, count int, shuffle Shuffler) [][]T {
	if count <= 0 {
		return nil
	}
	if shuffle == nil {
		shuffle = DefaultShuffler
	}
	pool := make([]T, len(ids))
	copy(pool, ids)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	groups := make([][]T, count)
	for i, id := range pool {
		groups[i%count] = append(groups[i%count], id)
	}
	return groups
}
