package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCount(repo *mockRepository) int {
	n := 0
	for _, w := range repo.warehouses {
		if w.IsDefault {
			n++
		}
	}
	return n
}

func TestEnsureDefaultWarehouse_ReturnsFlagged(t *testing.T) {
	repo := newMockRepository()
	repo.seedWarehouse("EAST", false)
	wh := repo.seedWarehouse("MAIN", true)
	svc, _, _ := newTestService(repo)

	got, err := svc.EnsureDefaultWarehouse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wh.ID, got.ID)
}

func TestEnsureDefaultWarehouse_DesignatesFirstWhenNoneFlagged(t *testing.T) {
	repo := newMockRepository()
	first := repo.seedWarehouse("EAST", false)
	repo.seedWarehouse("WEST", false)
	svc, _, _ := newTestService(repo)

	got, err := svc.EnsureDefaultWarehouse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.IsDefault)
	assert.Equal(t, 1, defaultCount(repo))
}

func TestEnsureDefaultWarehouse_CreatesWhenEmpty(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	got, err := svc.EnsureDefaultWarehouse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MAIN", got.Code)
	assert.True(t, got.IsDefault)
	require.Len(t, repo.warehouses, 1)

	// idempotent: a second call returns the same warehouse
	again, err := svc.EnsureDefaultWarehouse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
	require.Len(t, repo.warehouses, 1)
}

func TestCreateWarehouse_FirstBecomesDefault(t *testing.T) {
	repo := newMockRepository()
	svc, audit, _ := newTestService(repo)
	ctx := context.Background()

	first, err := svc.CreateWarehouse(ctx, Warehouse{Code: "MAIN", Name: "Main"}, 1)
	require.NoError(t, err)
	assert.True(t, first.IsDefault, "first warehouse becomes default regardless of the flag")

	second, err := svc.CreateWarehouse(ctx, Warehouse{Code: "EAST", Name: "East"}, 1)
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, 1, defaultCount(repo))

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "warehouse:create", audit.entries[0].Action)
}

func TestCreateWarehouse_DefaultFlagClearsOthers(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateWarehouse(ctx, Warehouse{Code: "MAIN", Name: "Main"}, 1)
	require.NoError(t, err)
	wh, err := svc.CreateWarehouse(ctx, Warehouse{Code: "EAST", Name: "East", IsDefault: true}, 1)
	require.NoError(t, err)

	assert.True(t, wh.IsDefault)
	assert.Equal(t, 1, defaultCount(repo))
}

func TestCreateWarehouse_RequiresCodeAndName(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	_, err := svc.CreateWarehouse(context.Background(), Warehouse{Code: "MAIN"}, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateWarehouse_SingleDefaultInvariant(t *testing.T) {
	repo := newMockRepository()
	a := repo.seedWarehouse("A", true)
	b := repo.seedWarehouse("B", false)
	c := repo.seedWarehouse("C", false)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	yes := true
	for _, id := range []int64{b.ID, c.ID, a.ID, b.ID} {
		updated, err := svc.UpdateWarehouse(ctx, id, WarehouseUpdate{Default: &yes}, 1)
		require.NoError(t, err)
		assert.True(t, updated.IsDefault)
		assert.Equal(t, 1, defaultCount(repo), "exactly one default after every update")
	}
	assert.True(t, repo.warehouses[b.ID].IsDefault)
}

func TestUpdateWarehouse_CannotUnsetDefault(t *testing.T) {
	repo := newMockRepository()
	wh := repo.seedWarehouse("MAIN", true)
	svc, _, _ := newTestService(repo)

	no := false
	_, err := svc.UpdateWarehouse(context.Background(), wh.ID, WarehouseUpdate{Default: &no}, 1)
	require.ErrorIs(t, err, ErrCannotUnsetDefault)
	assert.True(t, repo.warehouses[wh.ID].IsDefault)
}

func TestUpdateWarehouse_PartialFields(t *testing.T) {
	repo := newMockRepository()
	wh := repo.seedWarehouse("MAIN", true)
	svc, _, _ := newTestService(repo)

	name := "Central Hub"
	addr := "12 Dock Road"
	updated, err := svc.UpdateWarehouse(context.Background(), wh.ID, WarehouseUpdate{Name: &name, Address: &addr}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Central Hub", updated.Name)
	assert.Equal(t, "12 Dock Road", updated.Address)
	assert.True(t, updated.IsDefault, "default flag untouched when not submitted")

	empty := ""
	_, err = svc.UpdateWarehouse(context.Background(), wh.ID, WarehouseUpdate{Name: &empty}, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateWarehouse_NotFound(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	name := "X"
	_, err := svc.UpdateWarehouse(context.Background(), 42, WarehouseUpdate{Name: &name}, 1)
	require.ErrorIs(t, err, ErrWarehouseNotFound)
}

func TestUpdateReorderLevels(t *testing.T) {
	repo := newMockRepository()
	wh := repo.seedWarehouse("MAIN", true)
	item := repo.seedItem(10, wh.ID, 100, 0)
	svc, audit, tasks := newTestService(repo)
	ctx := context.Background()

	err := svc.UpdateReorderLevels(ctx, []ReorderLevelInput{
		{InventoryItemID: item.ID, ReorderPointQty: 15, ReorderQty: 50},
	}, 1)
	require.NoError(t, err)

	got := repo.item(10, wh.ID)
	assert.Equal(t, 15.0, got.ReorderPointQty)
	assert.Equal(t, 50.0, got.ReorderQty)
	assert.Equal(t, 1, tasks.scans, "reorder updates schedule a low-stock scan")
	require.Len(t, audit.entries, 1)
}

func TestUpdateReorderLevels_Validation(t *testing.T) {
	repo := newMockRepository()
	svc, _, tasks := newTestService(repo)
	ctx := context.Background()

	require.ErrorIs(t, svc.UpdateReorderLevels(ctx, nil, 1), ErrInvalidInput)
	require.ErrorIs(t, svc.UpdateReorderLevels(ctx, []ReorderLevelInput{{InventoryItemID: 1, ReorderPointQty: -1}}, 1), ErrInvalidInput)
	assert.Zero(t, tasks.scans)
}

func TestUpdateReorderLevels_BatchIsAtomic(t *testing.T) {
	repo := newMockRepository()
	wh := repo.seedWarehouse("MAIN", true)
	item := repo.seedItem(10, wh.ID, 100, 0)
	svc, _, _ := newTestService(repo)

	err := svc.UpdateReorderLevels(context.Background(), []ReorderLevelInput{
		{InventoryItemID: item.ID, ReorderPointQty: 15, ReorderQty: 50},
		{InventoryItemID: 999, ReorderPointQty: 5, ReorderQty: 10},
	}, 1)
	require.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, 0.0, repo.item(10, wh.ID).ReorderPointQty, "failed batch leaves no partial updates")
}

func TestOverview(t *testing.T) {
	repo := newMockRepository()
	wh := repo.seedWarehouse("MAIN", true)
	repo.seedItem(10, wh.ID, 100, 30)
	low := repo.seedItem(11, wh.ID, 5, 0)
	require.NoError(t, repo.SetReorderLevels(context.Background(), low.ID, 10, 20))
	repo.seedItem(12, wh.ID, 0, 0) // out of stock
	svc, _, _ := newTestService(repo)

	ov, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 105.0, ov.Totals.OnHand)
	assert.Equal(t, 30.0, ov.Totals.Reserved)
	assert.Equal(t, 75.0, ov.Totals.Available)
	assert.Equal(t, 1, ov.LowStock)
	assert.Equal(t, 1, ov.OutOfStock)
	assert.Equal(t, 0, ov.MovementsToday)
}

func TestListItems_LowOnlyFilter(t *testing.T) {
	repo := newMockRepository()
	wh := repo.seedWarehouse("MAIN", true)
	repo.seedItem(10, wh.ID, 100, 0)
	low := repo.seedItem(11, wh.ID, 5, 0)
	require.NoError(t, repo.SetReorderLevels(context.Background(), low.ID, 10, 20))
	svc, _, _ := newTestService(repo)

	items, total, err := svc.ListItems(context.Background(), ItemFilter{LowOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, int64(11), items[0].ProductID)
}
