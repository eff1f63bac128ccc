package pypi

// Project is the version inventory of one package on the index.
type Project struct {
	Name     string
	Versions []string
}

// Release is the metadata of one published version.
type Release struct {
	Name         string
	Version      string
	RequiresDist []string
	Yanked       bool
	SourceURL    string
	SHA256       string
}

type releaseFile struct {
	URL     string `json:"url"`
	Digests struct {
		SHA256 string `json:"sha256"`
	} `json:"digests"`
	PackageType string `json:"packagetype"`
	Yanked      bool   `json:"yanked"`
}

type projectResponse struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type releaseResponse struct {
	Info struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		RequiresDist []string `json:"requires_dist"`
		Yanked       bool     `json:"yanked"`
	} `json:"info"`
	URLs []releaseFile `json:"urls"`
}
