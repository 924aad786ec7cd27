// Package dimension builds the dimension and bridge tables of the star
// schema. Raw values are grouped by their normalization key, each key gets a
// surrogate id from a shelfstar.Translator, and every book is bridged to the
// ids of its values.
package dimension

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/textnorm"
)

// Names of the dimensions, also used as translator namespaces.
const (
	Subject   = "subject"
	Author    = "author"
	Publisher = "publisher"
)

// Pair is a raw value found on a book.
type Pair struct {
	BibNum string
	Value  string
}

// Entity is one row of a dimension table.
type Entity struct {
	ID   int64
	Name string
	key  string
}

// Key returns the normalization key the entity was deduplicated on.
func (e Entity) Key() string { return e.key }

// Link is one row of a bridge table.
type Link struct {
	BibNum string
	ID     int64
}

// Dimension holds a dimension table and its bridge.
type Dimension struct {
	Name     string
	Entities []Entity // ordered by key
	Links    []Link   // ordered by bib number then id

	ids map[string]int64
}

// Lookup returns the id of the entity a raw value belongs to.
func (d *Dimension) Lookup(raw string) (int64, bool) {
	id, ok := d.ids[textnorm.NormalizeKey(raw)]
	return id, ok
}

// ByBibNum maps each bib number to the lowest id it is linked to.
func (d *Dimension) ByBibNum() map[string]int64 {
	m := make(map[string]int64, len(d.Links))
	for _, l := range d.Links {
		if _, ok := m[l.BibNum]; !ok {
			m[l.BibNum] = l.ID
		}
	}
	return m
}

// BuildOption configures Build.
type BuildOption func(b *builder)

type builder struct {
	display func(string) string
}

// OptBuildDisplay sets the function turning the representative raw value of
// a key into the displayed name.
func OptBuildDisplay(fn func(string) string) BuildOption {
	return func(b *builder) {
		b.display = fn
	}
}

// Build creates the dimension called name from pairs. Empty values, and values
// which normalize to nothing, are dropped. The representative of each key is
// its lexicographically smallest raw value. Ids are requested from tr one key
// at a time in key order, and Build fails rather than return a dimension in
// which two keys share an id.
func Build(name string, pairs []Pair, tr shelfstar.Translator, opts ...BuildOption) (*Dimension, error) {
	b := &builder{display: func(s string) string { return s }}
	for _, opt := range opts {
		opt(b)
	}

	type keyed struct {
		bib string
		key string
	}
	rows := make([]keyed, 0, len(pairs))
	reps := make(map[string]string)
	for _, p := range pairs {
		if p.Value == "" {
			continue
		}
		key := textnorm.NormalizeKey(p.Value)
		if key == "" {
			continue
		}
		rows = append(rows, keyed{bib: p.BibNum, key: key})
		if rep, ok := reps[key]; !ok || p.Value < rep {
			reps[key] = p.Value
		}
	}

	keys := make([]string, 0, len(reps))
	for key := range reps {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	d := &Dimension{
		Name:     name,
		Entities: make([]Entity, 0, len(keys)),
		ids:      make(map[string]int64, len(keys)),
	}
	owners := make(map[int64]string, len(keys))
	for _, key := range keys {
		uid, err := tr.GetID(name, key)
		if err != nil {
			return nil, errors.Wrapf(err, "getting id for %s '%s'", name, key)
		}
		if uid > math.MaxInt64 {
			return nil, errors.Errorf("id %d for %s '%s' out of range", uid, name, key)
		}
		id := int64(uid)
		if other, ok := owners[id]; ok {
			return nil, errors.Errorf("%s ids collide: '%s' and '%s' both got %d", name, other, key, id)
		}
		owners[id] = key
		d.ids[key] = id
		d.Entities = append(d.Entities, Entity{ID: id, Name: b.display(reps[key]), key: key})
	}

	seen := make(map[Link]struct{}, len(rows))
	for _, r := range rows {
		l := Link{BibNum: r.bib, ID: d.ids[r.key]}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		d.Links = append(d.Links, l)
	}
	sort.Slice(d.Links, func(i, j int) bool {
		if d.Links[i].BibNum != d.Links[j].BibNum {
			return d.Links[i].BibNum < d.Links[j].BibNum
		}
		return d.Links[i].ID < d.Links[j].ID
	})
	return d, nil
}
