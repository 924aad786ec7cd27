package shelfstar

import (
	"time"
)

// InventoryRecord is one print book from the library inventory, after
// deduplication on BibNum. Empty strings stand in for null values.
type InventoryRecord struct {
	BibNum             string
	ISBNs              string
	RawTitle           string
	RawAuthor          string
	RawPublicationYear string
	RawPublisher       string
	RawSubjects        string
}

// CheckoutEvent is a single checkout of a print book. CheckoutDatetime is nil
// if the source timestamp could not be parsed.
type CheckoutEvent struct {
	BibNum           string
	ItemBarcode      string
	CheckoutDatetime *time.Time
}

// CatalogRecord is a book from the external bibliographic catalog. Numeric and
// date fields are nil when the source value was missing or malformed.
type CatalogRecord struct {
	ExternalID       string
	Title            string
	Authors          string
	AverageRating    *float32
	ISBN             string
	ISBN13           string
	LanguageCode     string
	NumPages         *int32
	RatingsCount     *int32
	TextReviewsCount *int32
	PublicationDate  *time.Time
	Publisher        string
}

// WeatherReading is the temperature for one calendar day.
type WeatherReading struct {
	Month       *int32
	Day         *int32
	Year        *int32
	Temperature *float32
}

// PublisherMapEntry maps a raw inventory publisher to its official name.
type PublisherMapEntry struct {
	RawPublisher      string
	OfficialPublisher string
}

// Book is an inventory record together with the catalog record it was linked
// to, if any.
type Book struct {
	InventoryRecord
	Catalog *CatalogRecord
}

// CatalogTitle returns the linked catalog title or the empty string.
func (b Book) CatalogTitle() string {
	if b.Catalog == nil {
		return ""
	}
	return b.Catalog.Title
}

// CatalogAuthors returns the linked catalog authors or the empty string.
func (b Book) CatalogAuthors() string {
	if b.Catalog == nil {
		return ""
	}
	return b.Catalog.Authors
}

// CatalogPublicationDate returns the linked catalog publication date or nil.
func (b Book) CatalogPublicationDate() *time.Time {
	if b.Catalog == nil {
		return nil
	}
	return b.Catalog.PublicationDate
}
