package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_InitialState(t *testing.T) {
	h := newHarness(t)

	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		id := h.enqueue(t, "ORDER", "ORDER_CREATE")
		require.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true

		a := h.get(t, id)
		assert.Equal(t, models.StatusOffline, a.Status)
		assert.Zero(t, a.Tries)
		assert.Nil(t, a.LastSyncAttemptAt)
		assert.Nil(t, a.SyncedAt)
		assert.Nil(t, a.Response)
		assert.True(t, base.Equal(a.TriggeredAt))
	}

	assert.Len(t, h.reg.names, 5)
	assert.Equal(t, DefaultSyncTaskName, h.reg.names[0])
}

func TestEnqueue_DefaultEffect(t *testing.T) {
	h := newHarness(t)

	id := h.enqueue(t, "ORDER", "ORDER_CREATE")
	a := h.get(t, id)
	want := []models.Effect{{Name: "ORDER_CREATE", EffectedObjectAlias: "ORDER"}}
	if diff := cmp.Diff(want, a.Effects); diff != "" {
		t.Fatalf("effects mismatch (-want +got):\n%s", diff)
	}

	custom := models.Effect{Name: "recalc", EffectedObjectAlias: "INVOICE", KeyColumn: "id", KeyValues: []string{"7"}}
	id = h.enqueue(t, "ORDER", "ORDER_CLOSE", custom)
	a = h.get(t, id)
	if diff := cmp.Diff([]models.Effect{custom}, a.Effects); diff != "" {
		t.Fatalf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.queue.Get(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func claim(t *testing.T, h *harness, id string) {
	t.Helper()
	ok, err := actions.NewSQLiteRepository(h.db).Claim(context.Background(), id, h.clock.Now())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSelfHeal_StaleProcessingReadsOffline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := h.enqueue(t, "ORDER", "ORDER_CREATE")
	claim(t, h, id)

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, models.StatusProcessing, h.get(t, id).Status, "fresh attempt is not stale")

	h.clock.Advance(1500 * time.Millisecond)
	first := h.get(t, id)
	second := h.get(t, id)
	assert.Equal(t, models.StatusOffline, first.Status)
	assert.Equal(t, 1, first.Tries)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-read differs (-first +second):\n%s", diff)
	}

	stored, err := actions.NewSQLiteRepository(h.db).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, stored.Status, "heal is persisted")
}

func TestList_HealsBeforeFiltering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stale := h.enqueue(t, "ORDER", "A")
	claim(t, h, stale)
	h.clock.Advance(5 * time.Second)

	live := h.enqueue(t, "ORDER", "B")
	claim(t, h, live)
	other := h.enqueue(t, "CUSTOMER", "C")

	offline, err := h.queue.List(ctx, ListFilter{Status: models.StatusOffline})
	require.NoError(t, err)
	assert.Equal(t, []string{stale, other}, idsOf(offline))

	processing, err := h.queue.List(ctx, ListFilter{Status: models.StatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, []string{live}, idsOf(processing))

	byAlias, err := h.queue.List(ctx, ListFilter{ObjectAlias: "ORDER"})
	require.NoError(t, err)
	assert.Equal(t, []string{stale, live}, idsOf(byAlias))

	onlyB, err := h.queue.List(ctx, ListFilter{RowPredicate: func(a *models.QueuedAction) bool { return a.ActionName == "B" }})
	require.NoError(t, err)
	assert.Equal(t, []string{live}, idsOf(onlyB))
}

func TestGetActionQueueData_Redacted(t *testing.T) {
	h := newHarness(t)

	id := h.enqueue(t, "ORDER", "ORDER_CREATE")
	views, err := h.queue.GetActionQueueData(context.Background(), models.StatusOffline)
	require.NoError(t, err)
	require.Len(t, views, 1)

	want := models.ActionQueueView{
		ID:          id,
		ActionAlias: "ORDER_CREATE",
		ObjectAlias: "ORDER",
		TriggeredAt: base,
		Status:      models.StatusOffline,
	}
	if diff := cmp.Diff(want, views[0]); diff != "" {
		t.Fatalf("view mismatch (-want +got):\n%s", diff)
	}

	views, err = h.queue.GetActionQueueData(context.Background(), models.StatusSynced)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestDeleteAndDeleteAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.enqueue(t, "ORDER", "A")
	b := h.enqueue(t, "ORDER", "B")
	c := h.enqueue(t, "ORDER", "C")

	require.NoError(t, h.queue.Delete(ctx, a))
	require.NoError(t, h.queue.DeleteAll(ctx, []string{b, c, b}))

	rows, err := h.queue.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRequeue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	repo := actions.NewSQLiteRepository(h.db)

	id := h.enqueue(t, "ORDER", "A")

	err := h.queue.Requeue(ctx, id)
	require.ErrorIs(t, err, common.ErrorInvalidTransition)

	err = h.queue.Requeue(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)

	claim(t, h, id)
	require.NoError(t, repo.Finish(ctx, id, models.StatusError, &models.Response{StatusCode: 200, Body: []byte(`{"error":"no"}`)}, nil))

	require.NoError(t, h.queue.Requeue(ctx, id))
	a := h.get(t, id)
	assert.Equal(t, models.StatusOffline, a.Status)
	assert.Equal(t, 1, a.Tries)
	assert.Nil(t, a.Response)
}

func idsOf(rows []*models.QueuedAction) []string {
	ids := make([]string, 0, len(rows))
	for _, a := range rows {
		ids = append(ids, a.ID)
	}
	return ids
}
