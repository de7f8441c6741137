package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	internal_storage "github.com/avivheldman/WorkFlow/internal/storage"
	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflow(name string, createdAt time.Time) models.Workflow {
	ok := true
	return models.Workflow{
		ID:     uuid.NewString(),
		Name:   name,
		Status: models.SucceededStatus,
		Steps: []models.Step{{
			ExecutionType: models.ParallelExecution,
			Status:        models.SucceededStatus,
			Tasks: []models.TaskState{
				{Name: "task_a", Status: models.SucceededStatus, Params: map[string]any{"retry_count": float64(3)}, Result: &ok},
				{Name: "task_b", Status: models.SucceededStatus, Params: map[string]any{}, Result: &ok},
			},
		}},
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) (*internal_storage.RedisStore, *miniredis.Miniredis) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		store := internal_storage.NewRedisStore(client, "workflow:")
		t.Cleanup(func() { _ = store.Close() })
		return store, mr
	}

	t.Run("SaveAndGetWorkflow", func(t *testing.T) {
		store, mr := newStore(t)
		wf := newWorkflow("s1", time.Now())

		require.NoError(t, store.SaveWorkflow(ctx, wf))

		got, err := store.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, wf, got)
		assert.True(t, mr.Exists("workflow:"+wf.ID))
		members, err := mr.Members("workflow:ids")
		require.NoError(t, err)
		assert.Equal(t, []string{wf.ID}, members)
	})

	t.Run("GetNonExistingWorkflow", func(t *testing.T) {
		store, _ := newStore(t)
		_, err := store.GetWorkflow(ctx, uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		store, _ := newStore(t)
		wf := newWorkflow("overwrite", time.Now())
		wf.Status = models.RunningStatus
		require.NoError(t, store.SaveWorkflow(ctx, wf))
		wf.Status = models.FailedStatus
		require.NoError(t, store.SaveWorkflow(ctx, wf))

		got, err := store.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, models.FailedStatus, got.Status)

		workflows, err := store.ListWorkflows(ctx)
		require.NoError(t, err)
		assert.Len(t, workflows, 1)
	})

	t.Run("SaveRequiresID", func(t *testing.T) {
		store, _ := newStore(t)
		err := store.SaveWorkflow(ctx, models.Workflow{Name: "no-id"})
		assert.ErrorContains(t, err, "workflow ID is required")
	})

	t.Run("ListWorkflows returns workflows in descending order", func(t *testing.T) {
		store, _ := newStore(t)
		workflows, err := store.ListWorkflows(ctx)
		require.NoError(t, err)
		assert.Empty(t, workflows)

		now := time.Now()
		wf1 := newWorkflow("Workflow 1", now.Add(-2*time.Hour))
		wf2 := newWorkflow("Workflow 2", now.Add(-1*time.Hour))
		wf3 := newWorkflow("Workflow 3", now)
		for _, wf := range []models.Workflow{wf2, wf1, wf3} {
			require.NoError(t, store.SaveWorkflow(ctx, wf))
		}

		workflows, err = store.ListWorkflows(ctx)
		require.NoError(t, err)
		require.Len(t, workflows, 3)
		assert.Equal(t, wf3.ID, workflows[0].ID)
		assert.Equal(t, wf2.ID, workflows[1].ID)
		assert.Equal(t, wf1.ID, workflows[2].ID)
	})

	t.Run("ListSkipsDanglingIDs", func(t *testing.T) {
		store, mr := newStore(t)
		wf := newWorkflow("kept", time.Now())
		require.NoError(t, store.SaveWorkflow(ctx, wf))
		_, err := mr.SAdd("workflow:ids", "gone")
		require.NoError(t, err)

		workflows, err := store.ListWorkflows(ctx)
		require.NoError(t, err)
		require.Len(t, workflows, 1)
		assert.Equal(t, wf.ID, workflows[0].ID)
	})

	t.Run("DeleteWorkflow", func(t *testing.T) {
		store, mr := newStore(t)
		wf := newWorkflow("delete", time.Now())
		require.NoError(t, store.SaveWorkflow(ctx, wf))

		require.NoError(t, store.DeleteWorkflow(ctx, wf.ID))
		_, err := store.GetWorkflow(ctx, wf.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.False(t, mr.Exists("workflow:"+wf.ID))

		assert.ErrorIs(t, store.DeleteWorkflow(ctx, wf.ID), storage.ErrNotFound)
	})

	t.Run("KeyPrefixIsolatesStores", func(t *testing.T) {
		mr := miniredis.RunT(t)
		a := internal_storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "a:")
		b := internal_storage.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "b:")
		defer a.Close()
		defer b.Close()

		wf := newWorkflow("isolated", time.Now())
		require.NoError(t, a.SaveWorkflow(ctx, wf))

		_, err := b.GetWorkflow(ctx, wf.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		workflows, err := b.ListWorkflows(ctx)
		require.NoError(t, err)
		assert.Empty(t, workflows)
	})

	t.Run("PingFailsWhenServerIsDown", func(t *testing.T) {
		store, mr := newStore(t)
		require.NoError(t, store.Ping(ctx))
		mr.Close()
		assert.Error(t, store.Ping(ctx))
	})

	t.Run("NewRedisClientFromURL", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := internal_storage.NewRedisClient("redis://"+mr.Addr()+"/0", "", "", 0)
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Ping(ctx).Err())

		_, err = internal_storage.NewRedisClient("http://bad", "", "", 0)
		assert.Error(t, err)
	})
}
