package storage

// Release is one cached package release from the index. Name is
// stored in canonical (PEP 503) form; Requires holds the dependency
// requirement strings the release declares.
type Release struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Requires  []string `json:"requires,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	SHA256    string   `json:"sha256,omitempty"`
	Yanked    bool     `json:"yanked,omitempty"`
}
