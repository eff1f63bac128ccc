// Package data manages the package index cache: lookups fall through
// to the live index and land in storage, and a refresh re-fetches
// what the cache already holds.
package data

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"piplock/pep440"
	"piplock/pypi"
	"piplock/storage"

	"github.com/sirupsen/logrus"
)

type Storage interface {
	GetRelease(ctx context.Context, name, version string) (storage.Release, error)
	ListVersions(ctx context.Context, name string) ([]string, error)
	ListPackageNames(ctx context.Context) ([]string, error)
	UpsertRelease(ctx context.Context, rel storage.Release) error
	UpsertReleases(ctx context.Context, releases []storage.Release) error
	GetReleasesMap(ctx context.Context, releases []storage.Release) (map[string]storage.Release, error)
}

type Index interface {
	GetProject(ctx context.Context, name string) (*pypi.Project, error)
	GetRelease(ctx context.Context, name, version string) (*pypi.Release, error)
}

type Manager struct {
	Store         Storage
	API           Index
	Log           *logrus.Logger
	MaxConcurrent int
}

// Versions returns the known versions of a package, ascending. A cold
// cache is populated from the index with bare rows; Release hydrates
// them on demand.
func (m *Manager) Versions(ctx context.Context, name string) ([]string, error) {
	canonical := pep440.NormalizeName(name)

	cached, err := m.Store.ListVersions(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		sortVersions(cached)
		return cached, nil
	}

	project, err := m.API.GetProject(ctx, name)
	if err != nil {
		return nil, err
	}

	rows := make([]storage.Release, 0, len(project.Versions))
	for _, v := range project.Versions {
		rows = append(rows, storage.Release{Name: canonical, Version: v})
	}
	if err := m.Store.UpsertReleases(ctx, rows); err != nil {
		return nil, err
	}

	versions := append([]string(nil), project.Versions...)
	sortVersions(versions)
	return versions, nil
}

// Release returns the metadata of one version, fetching and caching
// it when the cached row is missing or not yet hydrated. Hydrated
// rows always carry a source artifact URL.
func (m *Manager) Release(ctx context.Context, name, version string) (storage.Release, error) {
	canonical := pep440.NormalizeName(name)

	rel, err := m.Store.GetRelease(ctx, canonical, version)
	if err == nil && rel.SourceURL != "" {
		return rel, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storage.Release{}, err
	}

	fetched, err := m.API.GetRelease(ctx, name, version)
	if err != nil {
		return storage.Release{}, err
	}

	rel = storage.Release{
		Name:      canonical,
		Version:   version,
		Requires:  fetched.RequiresDist,
		SourceURL: fetched.SourceURL,
		SHA256:    fetched.SHA256,
		Yanked:    fetched.Yanked,
	}
	if err := m.Store.UpsertRelease(ctx, rel); err != nil {
		return storage.Release{}, err
	}
	return rel, nil
}

// Refresh re-fetches metadata for the named packages and merges
// non-empty incoming fields over the existing rows. With no names it
// refreshes every package the cache holds.
func (m *Manager) Refresh(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		all, err := m.Store.ListPackageNames(ctx)
		if err != nil {
			m.Log.WithError(err).Error("failed to list cached packages")
			return err
		}
		names = all
	}
	m.Log.Infof("Refreshing %d packages", len(names))

	var cached []storage.Release
	for _, name := range names {
		canonical := pep440.NormalizeName(name)
		versions, err := m.Store.ListVersions(ctx, canonical)
		if err != nil {
			m.Log.WithError(err).Error("failed to list cached releases")
			return err
		}
		for _, v := range versions {
			cached = append(cached, storage.Release{Name: canonical, Version: v})
		}
	}

	fetched := m.fetchReleases(ctx, cached)

	existingMap, err := m.Store.GetReleasesMap(ctx, fetched)
	if err != nil {
		m.Log.WithError(err).Error("failed to get existing releases")
		return err
	}

	var merged []storage.Release
	for _, incoming := range fetched {
		existing, found := existingMap[incoming.Name+"|"+incoming.Version]
		if !found {
			merged = append(merged, incoming)
			continue
		}

		out := existing
		if len(incoming.Requires) > 0 {
			out.Requires = incoming.Requires
		}
		if incoming.SourceURL != "" {
			out.SourceURL = incoming.SourceURL
		}
		if incoming.SHA256 != "" {
			out.SHA256 = incoming.SHA256
		}
		out.Yanked = incoming.Yanked
		merged = append(merged, out)
	}

	if err := m.Store.UpsertReleases(ctx, merged); err != nil {
		m.Log.WithError(err).Error("failed to upsert refreshed releases")
		return err
	}

	m.Log.Infof("Refreshed %d releases", len(merged))
	return nil
}

func (m *Manager) fetchReleases(ctx context.Context, targets []storage.Release) []storage.Release {
	limit := m.MaxConcurrent
	if limit <= 0 {
		limit = 10
	}

	var (
		results []storage.Release
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, limit)
	)

	for _, target := range targets {
		wg.Add(1)
		go func(target storage.Release) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			fetched, err := m.API.GetRelease(ctx, target.Name, target.Version)
			if err != nil {
				m.Log.WithError(err).Warnf("skipping %s==%s", target.Name, target.Version)
				return
			}

			mu.Lock()
			results = append(results, storage.Release{
				Name:      target.Name,
				Version:   target.Version,
				Requires:  fetched.RequiresDist,
				SourceURL: fetched.SourceURL,
				SHA256:    fetched.SHA256,
				Yanked:    fetched.Yanked,
			})
			mu.Unlock()
		}(target)
	}

	wg.Wait()
	return results
}

func sortVersions(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, erri := pep440.ParseVersion(versions[i])
		vj, errj := pep440.ParseVersion(versions[j])
		if erri != nil || errj != nil {
			return versions[i] < versions[j]
		}
		return vi.Compare(vj) < 0
	})
}
