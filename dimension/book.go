package dimension

import (
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/textnorm"
)

// BookRow is one row of the book dimension.
type BookRow struct {
	BibNum             string
	Title              *string
	ISBNs              string
	PublicationYear    *int32
	AverageRating      *float32
	RatingsCount       *int32
	TextReviewsCount   *int32
	RawTitle           string
	RawAuthor          string
	RawPublisher       string
	RawPublicationYear string
}

// Books returns a book dimension row for each linked book.
func Books(books []shelfstar.Book) []BookRow {
	rows := make([]BookRow, len(books))
	for i, b := range books {
		row := BookRow{
			BibNum:             b.BibNum,
			Title:              textnorm.CleanTitle(b.RawTitle, b.CatalogTitle()),
			ISBNs:              b.ISBNs,
			PublicationYear:    textnorm.CleanPublicationYear(b.RawPublicationYear, b.CatalogPublicationDate()),
			RawTitle:           b.RawTitle,
			RawAuthor:          b.RawAuthor,
			RawPublisher:       b.RawPublisher,
			RawPublicationYear: b.RawPublicationYear,
		}
		if b.Catalog != nil {
			row.AverageRating = b.Catalog.AverageRating
			row.RatingsCount = b.Catalog.RatingsCount
			row.TextReviewsCount = b.Catalog.TextReviewsCount
		}
		rows[i] = row
	}
	return rows
}
