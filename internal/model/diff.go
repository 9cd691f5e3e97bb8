package model

import (
	"cmp"
	"slices"
)

// PageChange describes a page present in both runs whose content differs.
type PageChange struct {
	Key string `json:"key"`
	Old *Page  `json:"old"`
	New *Page  `json:"new"`
}

// Diff is the difference between two crawls of the same site.
type Diff struct {
	// Added are pages only present in the newer crawl.
	Added []*Page `json:"added"`

	// Removed are pages only present in the older crawl.
	Removed []*Page `json:"removed"`

	// Changed are pages whose content hash or heading differs.
	Changed []PageChange `json:"changed"`
}

// HasChanges reports whether the two crawls differ.
func (d *Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// ComparePages compares two page sets by canonical key. Results are sorted
// by key.
func ComparePages(older, newer []*Page) *Diff {
	oldByKey := make(map[string]*Page, len(older))
	for _, p := range older {
		oldByKey[p.CanonicalKey] = p
	}
	newByKey := make(map[string]*Page, len(newer))
	for _, p := range newer {
		newByKey[p.CanonicalKey] = p
	}

	diff := &Diff{}
	for key, n := range newByKey {
		o, ok := oldByKey[key]
		if !ok {
			diff.Added = append(diff.Added, n)
			continue
		}
		if o.ContentHash != n.ContentHash || o.Heading != n.Heading {
			diff.Changed = append(diff.Changed, PageChange{Key: key, Old: o, New: n})
		}
	}
	for key, o := range oldByKey {
		if _, ok := newByKey[key]; !ok {
			diff.Removed = append(diff.Removed, o)
		}
	}

	byKey := func(a, b *Page) int { return cmp.Compare(a.CanonicalKey, b.CanonicalKey) }
	slices.SortFunc(diff.Added, byKey)
	slices.SortFunc(diff.Removed, byKey)
	slices.SortFunc(diff.Changed, func(a, b PageChange) int { return cmp.Compare(a.Key, b.Key) })

	return diff
}
