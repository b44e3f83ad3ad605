package snapshot_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oikotie-tools/apartment-radar/internal/models"
	"github.com/oikotie-tools/apartment-radar/internal/snapshot"
)

func TestSaveAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apartments.json")
	store := snapshot.NewStore(path)

	price := 250000.0
	listings := []models.Listing{
		{ID: "1", City: "Helsinki", Price: &price},
		{ID: "2", City: "Helsinki"},
	}

	saved, err := store.Save(listings)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.Equal(t, 2, saved.Count)
	require.False(t, saved.CreatedAt.IsZero())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, saved.ID, loaded.ID)
	require.Equal(t, 2, loaded.Count)
	require.Len(t, loaded.Listings, 2)
	require.Equal(t, "1", loaded.Listings[0].ID)
	require.NotNil(t, loaded.Listings[0].Price)
	require.Equal(t, 250000.0, *loaded.Listings[0].Price)
}

func TestSaveOverwritesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apartments.json")
	store := snapshot.NewStore(path)

	_, err := store.Save([]models.Listing{{ID: "old"}})
	require.NoError(t, err)

	second, err := store.Save([]models.Listing{{ID: "new-1"}, {ID: "new-2"}})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, second.ID, loaded.ID)
	require.Equal(t, 2, loaded.Count)
}

func TestLoadMissingFile(t *testing.T) {
	store := snapshot.NewStore(filepath.Join(t.TempDir(), "missing.json"))
	_, err := store.Load()
	require.Error(t, err)
}
