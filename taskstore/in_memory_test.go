package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_CRUD(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, Task{ID: "t-1", ConversationID: "c-1", Subject: "first"}))
	require.NoError(t, s.Create(ctx, Task{ID: "t-2", ConversationID: "c-1", Subject: "second"}))

	task, err := s.Get(ctx, "c-1", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "first", task.Subject)
	assert.Equal(t, StatusPending, task.Status)
	assert.False(t, task.Created.IsZero())

	require.NoError(t, s.UpdateStatus(ctx, "c-1", "t-1", StatusCompleted))
	task, err = s.Get(ctx, "c-1", "t-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.False(t, task.Updated.Before(task.Created))

	require.NoError(t, s.Delete(ctx, "c-1", "t-1"))
	_, err = s.Get(ctx, "c-1", "t-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_ListOrderedByCreation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, s.Create(ctx, Task{ID: "new", ConversationID: "c-1", Subject: "newer", Created: base.Add(time.Hour)}))
	require.NoError(t, s.Create(ctx, Task{ID: "old", ConversationID: "c-1", Subject: "older", Created: base}))

	tasks, err := s.List(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "old", tasks[0].ID)
	assert.Equal(t, "new", tasks[1].ID)
}

func TestInMemoryStore_NotFound(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "c-x", "t-x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, "c-x", "t-x", StatusCompleted), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "c-x", "t-x"), ErrNotFound)
}
