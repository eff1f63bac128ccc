// Package pypi is a client for the PyPI JSON API, the package index
// lockfile pins are resolved and verified against.
package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"piplock/pep440"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// ErrNotFound is returned for packages or versions the index does not know.
var ErrNotFound = fmt.Errorf("not found on index")

// GetProject fetches the released versions of a package, sorted
// ascending by version.
func (c *Client) GetProject(ctx context.Context, name string) (*Project, error) {
	u := fmt.Sprintf("%s/pypi/%s/json", c.BaseURL, url.PathEscape(pep440.NormalizeName(name)))

	var resp projectResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fetching project %s: %w", name, err)
	}

	versions := make([]string, 0, len(resp.Releases))
	for v := range resp.Releases {
		if _, err := pep440.ParseVersion(v); err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return pep440.MustParseVersion(versions[i]).Compare(pep440.MustParseVersion(versions[j])) < 0
	})

	return &Project{Name: resp.Info.Name, Versions: versions}, nil
}

// GetRelease fetches the metadata of a single version: its declared
// dependencies, yanked flag and source artifact.
func (c *Client) GetRelease(ctx context.Context, name, version string) (*Release, error) {
	u := fmt.Sprintf("%s/pypi/%s/%s/json",
		c.BaseURL, url.PathEscape(pep440.NormalizeName(name)), url.PathEscape(version))

	var resp releaseResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fetching release %s==%s: %w", name, version, err)
	}

	rel := &Release{
		Name:         resp.Info.Name,
		Version:      resp.Info.Version,
		RequiresDist: resp.Info.RequiresDist,
		Yanked:       resp.Info.Yanked,
	}

	// Prefer the sdist artifact; fall back to the first file.
	for _, f := range resp.URLs {
		if rel.SourceURL == "" || f.PackageType == "sdist" {
			rel.SourceURL = f.URL
			rel.SHA256 = f.Digests.SHA256
		}
		if f.PackageType == "sdist" {
			break
		}
	}

	return rel, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
