package data_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"piplock/data"
	"piplock/pypi"
	"piplock/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockIndex struct {
	GetProjectFn func(ctx context.Context, name string) (*pypi.Project, error)
	GetReleaseFn func(ctx context.Context, name, version string) (*pypi.Release, error)
}

func (m *mockIndex) GetProject(ctx context.Context, name string) (*pypi.Project, error) {
	return m.GetProjectFn(ctx, name)
}
func (m *mockIndex) GetRelease(ctx context.Context, name, version string) (*pypi.Release, error) {
	return m.GetReleaseFn(ctx, name, version)
}

type mockStorage struct {
	GetFn          func(ctx context.Context, name, version string) (storage.Release, error)
	ListVersionsFn func(ctx context.Context, name string) ([]string, error)
	ListNamesFn    func(ctx context.Context) ([]string, error)
	GetMapFn       func(ctx context.Context, releases []storage.Release) (map[string]storage.Release, error)

	Upserted      []storage.Release
	UpsertedBatch []storage.Release
}

func (m *mockStorage) GetRelease(ctx context.Context, name, version string) (storage.Release, error) {
	return m.GetFn(ctx, name, version)
}
func (m *mockStorage) ListVersions(ctx context.Context, name string) ([]string, error) {
	return m.ListVersionsFn(ctx, name)
}
func (m *mockStorage) ListPackageNames(ctx context.Context) ([]string, error) {
	return m.ListNamesFn(ctx)
}
func (m *mockStorage) UpsertRelease(ctx context.Context, rel storage.Release) error {
	m.Upserted = append(m.Upserted, rel)
	return nil
}
func (m *mockStorage) UpsertReleases(ctx context.Context, releases []storage.Release) error {
	m.UpsertedBatch = append(m.UpsertedBatch, releases...)
	return nil
}
func (m *mockStorage) GetReleasesMap(ctx context.Context, releases []storage.Release) (map[string]storage.Release, error) {
	return m.GetMapFn(ctx, releases)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestVersionsCacheHit(t *testing.T) {
	store := &mockStorage{
		ListVersionsFn: func(ctx context.Context, name string) ([]string, error) {
			assert.Equal(t, "django", name)
			return []string{"4.0.0", "3.2.21", "3.2.9"}, nil
		},
	}
	index := &mockIndex{
		GetProjectFn: func(ctx context.Context, name string) (*pypi.Project, error) {
			t.Fatal("index should not be hit on cache hit")
			return nil, nil
		},
	}

	m := &data.Manager{Store: store, API: index, Log: quietLogger()}
	versions, err := m.Versions(context.Background(), "Django")
	require.NoError(t, err)
	assert.Equal(t, []string{"3.2.9", "3.2.21", "4.0.0"}, versions, "sorted by version semantics")
}

func TestVersionsCacheMiss(t *testing.T) {
	store := &mockStorage{
		ListVersionsFn: func(ctx context.Context, name string) ([]string, error) {
			return nil, nil
		},
	}
	index := &mockIndex{
		GetProjectFn: func(ctx context.Context, name string) (*pypi.Project, error) {
			return &pypi.Project{Name: "kombu", Versions: []string{"5.2.3", "5.2.4"}}, nil
		},
	}

	m := &data.Manager{Store: store, API: index, Log: quietLogger()}
	versions, err := m.Versions(context.Background(), "kombu")
	require.NoError(t, err)
	assert.Equal(t, []string{"5.2.3", "5.2.4"}, versions)
	assert.Len(t, store.UpsertedBatch, 2, "bare rows recorded for the inventory")
}

func TestReleaseHydratesCache(t *testing.T) {
	store := &mockStorage{
		GetFn: func(ctx context.Context, name, version string) (storage.Release, error) {
			return storage.Release{}, sql.ErrNoRows
		},
	}
	index := &mockIndex{
		GetReleaseFn: func(ctx context.Context, name, version string) (*pypi.Release, error) {
			return &pypi.Release{
				Name:         "celery",
				Version:      version,
				RequiresDist: []string{"kombu (>=5.2.3,<6.0)"},
				SourceURL:    "https://files.example.com/celery-5.2.7.tar.gz",
				SHA256:       "bbb",
			}, nil
		},
	}

	m := &data.Manager{Store: store, API: index, Log: quietLogger()}
	rel, err := m.Release(context.Background(), "celery", "5.2.7")
	require.NoError(t, err)
	assert.Equal(t, []string{"kombu (>=5.2.3,<6.0)"}, rel.Requires)
	require.Len(t, store.Upserted, 1)
	assert.Equal(t, "celery", store.Upserted[0].Name)
}

func TestReleaseCacheHitSkipsIndex(t *testing.T) {
	cached := storage.Release{
		Name:      "celery",
		Version:   "5.2.7",
		Requires:  []string{"kombu (>=5.2.3,<6.0)"},
		SourceURL: "https://files.example.com/celery-5.2.7.tar.gz",
	}
	store := &mockStorage{
		GetFn: func(ctx context.Context, name, version string) (storage.Release, error) {
			return cached, nil
		},
	}
	index := &mockIndex{
		GetReleaseFn: func(ctx context.Context, name, version string) (*pypi.Release, error) {
			t.Fatal("index should not be hit for a hydrated row")
			return nil, nil
		},
	}

	m := &data.Manager{Store: store, API: index, Log: quietLogger()}
	rel, err := m.Release(context.Background(), "celery", "5.2.7")
	require.NoError(t, err)
	assert.Equal(t, cached, rel)
}

func TestRefreshMergesExisting(t *testing.T) {
	store := &mockStorage{
		ListNamesFn: func(ctx context.Context) ([]string, error) {
			return []string{"amqp"}, nil
		},
		ListVersionsFn: func(ctx context.Context, name string) ([]string, error) {
			assert.Equal(t, "amqp", name)
			return []string{"5.1.1"}, nil
		},
		GetMapFn: func(ctx context.Context, releases []storage.Release) (map[string]storage.Release, error) {
			return map[string]storage.Release{
				"amqp|5.1.1": {Name: "amqp", Version: "5.1.1", SHA256: "old", SourceURL: "https://old.example.com/amqp.tar.gz"},
			}, nil
		},
	}
	index := &mockIndex{
		GetReleaseFn: func(ctx context.Context, name, version string) (*pypi.Release, error) {
			return &pypi.Release{
				Name:         "amqp",
				Version:      "5.1.1",
				RequiresDist: []string{"vine (>=5.0.0)"},
			}, nil
		},
	}

	m := &data.Manager{Store: store, API: index, Log: quietLogger(), MaxConcurrent: 2}
	require.NoError(t, m.Refresh(context.Background()))

	require.Len(t, store.UpsertedBatch, 1)
	merged := store.UpsertedBatch[0]
	assert.Equal(t, []string{"vine (>=5.0.0)"}, merged.Requires, "incoming non-empty field wins")
	assert.Equal(t, "old", merged.SHA256, "existing field kept when incoming empty")
	assert.Equal(t, "https://old.example.com/amqp.tar.gz", merged.SourceURL)
}

func TestRefreshSkipsFailedFetches(t *testing.T) {
	store := &mockStorage{
		ListNamesFn: func(ctx context.Context) ([]string, error) {
			return []string{"amqp", "gone"}, nil
		},
		ListVersionsFn: func(ctx context.Context, name string) ([]string, error) {
			if name == "gone" {
				return []string{"0.0.1"}, nil
			}
			return []string{"5.1.1"}, nil
		},
		GetMapFn: func(ctx context.Context, releases []storage.Release) (map[string]storage.Release, error) {
			return map[string]storage.Release{}, nil
		},
	}
	index := &mockIndex{
		GetReleaseFn: func(ctx context.Context, name, version string) (*pypi.Release, error) {
			if name == "gone" {
				return nil, errors.New("410 gone")
			}
			return &pypi.Release{Name: name, Version: version}, nil
		},
	}

	m := &data.Manager{Store: store, API: index, Log: quietLogger()}
	require.NoError(t, m.Refresh(context.Background()))

	require.Len(t, store.UpsertedBatch, 1)
	assert.Equal(t, "amqp", store.UpsertedBatch[0].Name)
}

func TestRefreshScopedToNames(t *testing.T) {
	store := &mockStorage{
		ListNamesFn: func(ctx context.Context) ([]string, error) {
			t.Fatal("named refresh should not list the whole cache")
			return nil, nil
		},
		ListVersionsFn: func(ctx context.Context, name string) ([]string, error) {
			assert.Equal(t, "django", name, "name normalized before lookup")
			return []string{"4.2.1"}, nil
		},
		GetMapFn: func(ctx context.Context, releases []storage.Release) (map[string]storage.Release, error) {
			return map[string]storage.Release{}, nil
		},
	}
	index := &mockIndex{
		GetReleaseFn: func(ctx context.Context, name, version string) (*pypi.Release, error) {
			return &pypi.Release{Name: name, Version: version}, nil
		},
	}

	m := &data.Manager{Store: store, API: index, Log: quietLogger()}
	require.NoError(t, m.Refresh(context.Background(), "Django"))

	require.Len(t, store.UpsertedBatch, 1)
	assert.Equal(t, "django", store.UpsertedBatch[0].Name)
	assert.Equal(t, "4.2.1", store.UpsertedBatch[0].Version)
}
