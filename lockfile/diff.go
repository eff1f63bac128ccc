package lockfile

import "sort"

// Change is a package whose pin differs between two lockfiles.
type Change struct {
	Name string `json:"name"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

// Diff summarizes how two lockfiles differ.
type Diff struct {
	Added   []Entry  `json:"added,omitempty"`
	Removed []Entry  `json:"removed,omitempty"`
	Changed []Change `json:"changed,omitempty"`
}

// Empty reports whether the two lockfiles pin the same set.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

func pinOf(e Entry) string {
	if e.URL != "" {
		return e.URL
	}
	return e.Version
}

// Compare reports the entries added, removed and repinned going from
// old to new, each list ordered by canonical name.
func Compare(old, new *Lockfile) Diff {
	var d Diff

	oldByName := old.ByName()
	newByName := new.ByName()

	for name, e := range newByName {
		prev, ok := oldByName[name]
		if !ok {
			d.Added = append(d.Added, e)
			continue
		}
		if pinOf(prev) != pinOf(e) {
			d.Changed = append(d.Changed, Change{Name: e.Name, Old: pinOf(prev), New: pinOf(e)})
		}
	}
	for name, e := range oldByName {
		if _, ok := newByName[name]; !ok {
			d.Removed = append(d.Removed, e)
		}
	}

	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i].Canonical < d.Added[j].Canonical })
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i].Canonical < d.Removed[j].Canonical })
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].Name < d.Changed[j].Name })

	return d
}
