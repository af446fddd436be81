package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-tracking/internal/carriers"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCarrierStore_CreateGetList(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Carriers

	rule := carriers.NewCustomRule("Paketda", "", `\bPD\d{8}\b`)
	rule.StatusStrings = []string{"unterwegs", "zugestellt"}
	rule.APIKey = "never-stored"
	require.NoError(t, store.Create(ctx, rule))

	got, err := store.Get(ctx, "paketda")
	require.NoError(t, err)
	assert.Equal(t, "PAKETDA", got.Key)
	assert.Equal(t, "paketda", got.Name)
	assert.Equal(t, `(FROM "Paketda")`, got.SearchCriteria)
	assert.Equal(t, []string{"unterwegs", "zugestellt"}, got.StatusStrings)
	assert.Empty(t, got.APIKey)

	require.NoError(t, store.Create(ctx, carriers.NewCustomRule("Alpha", `(FROM "alpha.de")`, `A\d{6}`)))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ALPHA", list[0].Key)
	assert.Equal(t, "PAKETDA", list[1].Key)
}

func TestCarrierStore_CreateErrors(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Carriers

	require.NoError(t, store.Create(ctx, carriers.NewCustomRule("Paketda", "", `\d{8}`)))
	assert.ErrorIs(t, store.Create(ctx, carriers.NewCustomRule("paketda", "", `\d{8}`)), ErrCarrierExists)
	assert.ErrorIs(t, store.Create(ctx, carriers.Rule{Key: "BAD", TrackingPattern: `(`}), carriers.ErrInvalidRule)
	assert.ErrorIs(t, store.Create(ctx, carriers.Rule{TrackingPattern: `\d`}), carriers.ErrInvalidRule)
}

func TestCarrierStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Carriers

	require.NoError(t, store.Create(ctx, carriers.NewCustomRule("Paketda", "", `\d{8}`)))
	require.NoError(t, store.Delete(ctx, "PAKETDA"))

	_, err := store.Get(ctx, "PAKETDA")
	assert.ErrorIs(t, err, ErrCarrierNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "PAKETDA"), ErrCarrierNotFound)
}

func TestCarrierStore_LoadInto(t *testing.T) {
	ctx := context.Background()
	store := openTestDB(t).Carriers

	require.NoError(t, store.Create(ctx, carriers.NewCustomRule("Paketda", "", `\d{8}`)))
	require.NoError(t, store.Create(ctx, carriers.Rule{Key: "GLS", Name: "gls", SearchCriteria: `(FROM "gls-pakete.de")`, TrackingPattern: `\b\d{12}\b`}))

	registry := carriers.NewRegistry()
	n, err := store.LoadInto(ctx, registry)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := registry.Get("PAKETDA")
	assert.True(t, ok)

	gls, _ := registry.Get("GLS")
	assert.Equal(t, `\b\d{12}\b`, gls.TrackingPattern)
	assert.NotEmpty(t, gls.StatusStrings)
}

func TestOpen_FileDatabase(t *testing.T) {
	path := t.TempDir() + "/nested/parcels.db"
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.IsHealthy())
}
