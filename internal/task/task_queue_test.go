package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue(t *testing.T) {
	t.Run("enqueue and consume", func(t *testing.T) {
		q := NewTaskQueue(2, discardLogger())
		task := newMockTask(nil)

		require.NoError(t, q.Enqueue(task))
		assert.Equal(t, 1, q.Len())
		assert.Equal(t, task, <-q.GetChannel())
	})

	t.Run("full queue", func(t *testing.T) {
		q := NewTaskQueue(1, discardLogger())
		require.NoError(t, q.Enqueue(newMockTask(nil)))

		err := q.Enqueue(newMockTask(nil))
		assert.ErrorIs(t, err, ErrQueueFull)
		assert.Contains(t, err.Error(), "queue capacity 1 reached")
	})

	t.Run("closed queue", func(t *testing.T) {
		q := NewTaskQueue(1, discardLogger())
		q.Close()
		q.Close()

		assert.ErrorIs(t, q.Enqueue(newMockTask(nil)), ErrQueueClosed)
		_, ok := <-q.GetChannel()
		assert.False(t, ok)
	})

	t.Run("non-positive size is bumped to one", func(t *testing.T) {
		q := NewTaskQueue(0, discardLogger())
		assert.NoError(t, q.Enqueue(newMockTask(nil)))
	})
}
