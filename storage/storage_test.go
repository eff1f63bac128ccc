package storage_test

import (
	"context"
	"database/sql"
	"testing"

	"piplock/storage"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *storage.Storage {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := &storage.Storage{DB: db}
	require.NoError(t, store.InitSchema(context.Background()))
	return store
}

func TestUpsertAndGetRelease(t *testing.T) {
	store := setupTestDB(t)

	rel := storage.Release{
		Name:      "celery",
		Version:   "5.2.7",
		Requires:  []string{"billiard (>=3.6.4.0,<4.0)", "kombu (>=5.2.3,<6.0)"},
		SourceURL: "https://files.example.com/celery-5.2.7.tar.gz",
		SHA256:    "bbb",
	}

	err := store.UpsertRelease(context.Background(), rel)
	assert.NoError(t, err)

	got, err := store.GetRelease(context.Background(), "celery", "5.2.7")
	assert.NoError(t, err)
	assert.Equal(t, rel, got)
}

func TestUpsertReleaseOverwrites(t *testing.T) {
	store := setupTestDB(t)

	first := storage.Release{Name: "amqp", Version: "5.1.1"}
	assert.NoError(t, store.UpsertRelease(context.Background(), first))

	second := first
	second.Requires = []string{"vine (>=5.0.0)"}
	second.Yanked = true
	assert.NoError(t, store.UpsertRelease(context.Background(), second))

	got, err := store.GetRelease(context.Background(), "amqp", "5.1.1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"vine (>=5.0.0)"}, got.Requires)
	assert.True(t, got.Yanked)
}

func TestListReleasesFiltered(t *testing.T) {
	store := setupTestDB(t)

	releases := []storage.Release{
		{Name: "django", Version: "3.2.21"},
		{Name: "django", Version: "4.0.0", Yanked: true},
		{Name: "celery", Version: "5.2.7"},
	}
	assert.NoError(t, store.UpsertReleases(context.Background(), releases))

	t.Run("list all non-yanked", func(t *testing.T) {
		list, err := store.ListReleasesFiltered(context.Background(), "", false)
		assert.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("include yanked", func(t *testing.T) {
		list, err := store.ListReleasesFiltered(context.Background(), "", true)
		assert.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("filter by name", func(t *testing.T) {
		list, err := store.ListReleasesFiltered(context.Background(), "django", false)
		assert.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "3.2.21", list[0].Version)
	})

	t.Run("no match", func(t *testing.T) {
		list, err := store.ListReleasesFiltered(context.Background(), "nonexistent", false)
		assert.NoError(t, err)
		assert.Len(t, list, 0)
	})
}

func TestListVersions(t *testing.T) {
	store := setupTestDB(t)

	assert.NoError(t, store.UpsertReleases(context.Background(), []storage.Release{
		{Name: "kombu", Version: "5.2.3"},
		{Name: "kombu", Version: "5.2.4"},
		{Name: "amqp", Version: "5.1.1"},
	}))

	versions, err := store.ListVersions(context.Background(), "kombu")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"5.2.3", "5.2.4"}, versions)
}

func TestListPackageNames(t *testing.T) {
	store := setupTestDB(t)

	assert.NoError(t, store.UpsertReleases(context.Background(), []storage.Release{
		{Name: "kombu", Version: "5.2.3"},
		{Name: "kombu", Version: "5.2.4"},
		{Name: "amqp", Version: "5.1.1"},
	}))

	names, err := store.ListPackageNames(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"amqp", "kombu"}, names)
}

func TestDeleteRelease(t *testing.T) {
	store := setupTestDB(t)

	rel := storage.Release{Name: "vine", Version: "5.0.0"}
	assert.NoError(t, store.UpsertRelease(context.Background(), rel))

	assert.NoError(t, store.DeleteRelease(context.Background(), "vine", "5.0.0"))

	_, err := store.GetRelease(context.Background(), "vine", "5.0.0")
	assert.Error(t, err)
}

func TestGetReleasesMap(t *testing.T) {
	store := setupTestDB(t)

	cached := storage.Release{
		Name:     "django",
		Version:  "3.2.21",
		Requires: []string{"pytz", "sqlparse (>=0.2.2)"},
	}
	assert.NoError(t, store.UpsertRelease(context.Background(), cached))

	input := []storage.Release{
		{Name: "django", Version: "3.2.21"},
		{Name: "nonexistent", Version: "1.0.0"},
	}

	m, err := store.GetReleasesMap(context.Background(), input)
	assert.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, cached.Requires, m["django|3.2.21"].Requires)
}
