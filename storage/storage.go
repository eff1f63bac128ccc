// Package storage is the sqlite-backed cache of package index
// metadata that compiles and verifications run against.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

type Storage struct {
	DB *sql.DB
}

func (s *Storage) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS releases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		requires TEXT,
		source_url TEXT,
		sha256 TEXT,
		yanked INTEGER NOT NULL DEFAULT 0,
		UNIQUE(name, version)
	);`
	_, err := s.DB.ExecContext(ctx, query)
	return err
}

const upsertReleaseQuery = `
  INSERT INTO releases (name, version, requires, source_url, sha256, yanked)
  VALUES (?, ?, ?, ?, ?, ?)
  ON CONFLICT(name, version)
  DO UPDATE SET
    requires = excluded.requires,
    source_url = excluded.source_url,
    sha256 = excluded.sha256,
    yanked = excluded.yanked;
`

func encodeRequires(requires []string) (string, error) {
	if len(requires) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(requires)
	if err != nil {
		return "", fmt.Errorf("encoding requires: %w", err)
	}
	return string(data), nil
}

func decodeRequires(text string) ([]string, error) {
	if text == "" || text == "[]" {
		return nil, nil
	}
	var requires []string
	if err := json.Unmarshal([]byte(text), &requires); err != nil {
		return nil, fmt.Errorf("decoding requires: %w", err)
	}
	return requires, nil
}

func (s *Storage) UpsertReleases(ctx context.Context, releases []Release) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertReleaseQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rel := range releases {
		requires, err := encodeRequires(rel.Requires)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			rel.Name,
			rel.Version,
			requires,
			rel.SourceURL,
			rel.SHA256,
			rel.Yanked,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Storage) UpsertRelease(ctx context.Context, rel Release) error {
	requires, err := encodeRequires(rel.Requires)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, upsertReleaseQuery,
		rel.Name,
		rel.Version,
		requires,
		rel.SourceURL,
		rel.SHA256,
		rel.Yanked,
	)
	return err
}

func scanRelease(scan func(dest ...any) error) (Release, error) {
	var rel Release
	var requires string
	if err := scan(&rel.Name, &rel.Version, &requires, &rel.SourceURL, &rel.SHA256, &rel.Yanked); err != nil {
		return Release{}, err
	}
	decoded, err := decodeRequires(requires)
	if err != nil {
		return Release{}, err
	}
	rel.Requires = decoded
	return rel, nil
}

func (s *Storage) GetRelease(ctx context.Context, name, version string) (Release, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT name, version, requires, source_url, sha256, yanked
	 FROM releases WHERE name=? AND version=?`,
		name, version,
	)
	return scanRelease(row.Scan)
}

// ListVersions returns every cached version of a package; callers
// sort by version semantics where it matters.
func (s *Storage) ListVersions(ctx context.Context, name string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT version FROM releases WHERE name=?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Storage) ListReleasesFiltered(ctx context.Context, name string, includeYanked bool) ([]Release, error) {
	query := `
		SELECT name, version, requires, source_url, sha256, yanked
		FROM releases
		WHERE 1=1
	`
	var args []any

	if name != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+name+"%")
	}
	if !includeYanked {
		query += " AND yanked = 0"
	}

	query += " ORDER BY name, version"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Release
	for rows.Next() {
		rel, err := scanRelease(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, rel)
	}
	return list, rows.Err()
}

func (s *Storage) DeleteRelease(ctx context.Context, name, version string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM releases WHERE name=? AND version=?`,
		name, version)
	return err
}

// ListPackageNames returns the distinct package names in the cache,
// the working set a scheduled refresh re-fetches.
func (s *Storage) ListPackageNames(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT name FROM releases ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// GetReleasesMap bulk-fetches the given releases, keyed "name|version".
func (s *Storage) GetReleasesMap(ctx context.Context, releases []Release) (map[string]Release, error) {
	if len(releases) == 0 {
		return map[string]Release{}, nil
	}

	var (
		args       []any
		conditions []string
	)
	for _, rel := range releases {
		conditions = append(conditions, "(name = ? AND version = ?)")
		args = append(args, rel.Name, rel.Version)
	}

	query := fmt.Sprintf(`
		SELECT name, version, requires, source_url, sha256, yanked
		FROM releases
		WHERE %s;
	`, strings.Join(conditions, " OR "))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]Release)
	for rows.Next() {
		rel, err := scanRelease(rows.Scan)
		if err != nil {
			return nil, err
		}
		result[rel.Name+"|"+rel.Version] = rel
	}

	return result, rows.Err()
}
