package dimension

import (
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/textnorm"
)

// SubjectPairs explodes the subjects of every book.
func SubjectPairs(books []shelfstar.Book) []Pair {
	var pairs []Pair
	for _, b := range books {
		for _, s := range textnorm.Split(b.RawSubjects) {
			pairs = append(pairs, Pair{BibNum: b.BibNum, Value: s})
		}
	}
	return pairs
}

// Subjects builds the subject dimension.
func Subjects(books []shelfstar.Book, tr shelfstar.Translator) (*Dimension, error) {
	return Build(Subject, SubjectPairs(books), tr)
}

// AuthorPairs collects the reformatted inventory author and every catalog
// author of each book.
func AuthorPairs(books []shelfstar.Book) []Pair {
	var pairs []Pair
	for _, b := range books {
		if a := textnorm.FormatAuthor(b.RawAuthor); a != nil {
			pairs = append(pairs, Pair{BibNum: b.BibNum, Value: *a})
		}
		for _, a := range textnorm.Split(b.CatalogAuthors()) {
			pairs = append(pairs, Pair{BibNum: b.BibNum, Value: a})
		}
	}
	return pairs
}

// Authors builds the author dimension.
func Authors(books []shelfstar.Book, tr shelfstar.Translator) (*Dimension, error) {
	return Build(Author, AuthorPairs(books), tr)
}

// PublisherPairs resolves the raw publisher of every book through the
// publisher map. Publishers missing from the map keep their raw value.
func PublisherPairs(books []shelfstar.Book, pubMap []shelfstar.PublisherMapEntry) []Pair {
	official := officialNames(pubMap)
	pairs := make([]Pair, 0, len(books))
	for _, b := range books {
		if b.RawPublisher == "" {
			continue
		}
		value := b.RawPublisher
		if o, ok := official[value]; ok {
			value = o
		}
		pairs = append(pairs, Pair{BibNum: b.BibNum, Value: value})
	}
	return pairs
}

// Publishers builds the publisher dimension. Names are cleaned of stray
// whitespace and trailing commas. The dimension's ByBibNum gives the
// publisher id of each book.
func Publishers(books []shelfstar.Book, pubMap []shelfstar.PublisherMapEntry, tr shelfstar.Translator) (*Dimension, error) {
	return Build(Publisher, PublisherPairs(books, pubMap), tr, OptBuildDisplay(cleanPublisher))
}

func cleanPublisher(name string) string {
	if p := textnorm.CleanPublisher(name); p != nil {
		return *p
	}
	return ""
}

// officialNames maps raw publishers to their official name. The first entry
// for a raw name wins and entries without an official name are ignored.
func officialNames(pubMap []shelfstar.PublisherMapEntry) map[string]string {
	official := make(map[string]string, len(pubMap))
	for _, e := range pubMap {
		if _, ok := official[e.RawPublisher]; !ok && e.OfficialPublisher != "" {
			official[e.RawPublisher] = e.OfficialPublisher
		}
	}
	return official
}

// Unmapped counts the books whose publisher has no official name in the
// publisher map.
func Unmapped(books []shelfstar.Book, pubMap []shelfstar.PublisherMapEntry) int {
	mapped := officialNames(pubMap)
	n := 0
	for _, b := range books {
		if b.RawPublisher == "" {
			continue
		}
		if _, ok := mapped[b.RawPublisher]; !ok {
			n++
		}
	}
	return n
}
