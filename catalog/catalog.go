// Package catalog links inventory records to the external book catalog.
package catalog

import (
	"strings"

	"github.com/shelfstar/shelfstar"
)

// Link attaches at most one catalog record to every inventory record. A
// catalog record matches a book when its isbn or isbn13 equals one of the
// book's ISBNs. When several catalog records match, the one which comes first
// in catalog wins. The result has one Book per inventory record, in order.
func Link(inventory []shelfstar.InventoryRecord, catalog []shelfstar.CatalogRecord) []shelfstar.Book {
	// position of the first catalog row carrying each ISBN
	first := make(map[string]int, len(catalog)*2)
	for i := len(catalog) - 1; i >= 0; i-- {
		if c := catalog[i].ISBN; c != "" {
			first[c] = i
		}
		if c := catalog[i].ISBN13; c != "" {
			first[c] = i
		}
	}

	books := make([]shelfstar.Book, len(inventory))
	for i, rec := range inventory {
		books[i].InventoryRecord = rec
		best := -1
		for _, isbn := range SplitISBNs(rec.ISBNs) {
			if pos, ok := first[isbn]; ok && (best < 0 || pos < best) {
				best = pos
			}
		}
		if best >= 0 {
			match := catalog[best]
			books[i].Catalog = &match
		}
	}
	return books
}

// SplitISBNs explodes the inventory ISBN field. Entries are separated by
// commas with an optional space.
func SplitISBNs(isbns string) []string {
	if isbns == "" {
		return nil
	}
	parts := strings.Split(isbns, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Matched counts the books which were linked to a catalog record.
func Matched(books []shelfstar.Book) int {
	n := 0
	for _, b := range books {
		if b.Catalog != nil {
			n++
		}
	}
	return n
}
