package table

import (
	"time"

	"github.com/shelfstar/shelfstar/dimension"
	"github.com/shelfstar/shelfstar/fact"
)

// Table names, which are also the file names of the output.
const (
	DimSubject      = "dim_subject"
	BrBookSubject   = "br_book_subject"
	DimAuthor       = "dim_author"
	BrBookAuthor    = "br_book_author"
	DimPublisher    = "dim_publisher"
	DimBook         = "dim_book"
	DimCheckoutTime = "dim_checkout_time"
	FactCheckout    = "fact_spl_book_checkout"
)

// Subject is a row of dim_subject.
type Subject struct {
	ID      int64  `parquet:"id"`
	Subject string `parquet:"subject"`
}

// BookSubject is a row of br_book_subject.
type BookSubject struct {
	BibNum    string `parquet:"bib_num"`
	SubjectID int64  `parquet:"subject_id"`
}

// Author is a row of dim_author.
type Author struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

// BookAuthor is a row of br_book_author.
type BookAuthor struct {
	BibNum   string `parquet:"bib_num"`
	AuthorID int64  `parquet:"author_id"`
}

// Publisher is a row of dim_publisher.
type Publisher struct {
	ID   int64  `parquet:"id"`
	Name string `parquet:"name"`
}

// Book is a row of dim_book.
type Book struct {
	BibNum             string   `parquet:"bib_num"`
	Title              *string  `parquet:"title,optional"`
	ISBNs              *string  `parquet:"isbns,optional"`
	PublicationYear    *int32   `parquet:"publication_year,optional"`
	AverageRating      *float32 `parquet:"average_rating,optional"`
	RatingsCount       *int32   `parquet:"ratings_count,optional"`
	TextReviewsCount   *int32   `parquet:"text_reviews_count,optional"`
	RawTitle           *string  `parquet:"raw_title,optional"`
	RawAuthor          *string  `parquet:"raw_author,optional"`
	RawPublisher       *string  `parquet:"raw_publisher,optional"`
	RawPublicationYear *string  `parquet:"raw_publication_year,optional"`
}

// CheckoutTime is a row of dim_checkout_time.
type CheckoutTime struct {
	CheckoutDatetime time.Time `parquet:"checkout_datetime,timestamp(millisecond)"`
	Hour             int32     `parquet:"hour"`
	Day              int32     `parquet:"day"`
	Week             int32     `parquet:"week"`
	Weekday          int32     `parquet:"weekday"`
	Month            int32     `parquet:"month"`
	Year             int32     `parquet:"year"`
}

// Checkout is a row of fact_spl_book_checkout. A zero CheckoutDatetime is
// written as null.
type Checkout struct {
	ID               string    `parquet:"id"`
	BibNum           string    `parquet:"bib_num"`
	ItemBarcode      *string   `parquet:"item_barcode,optional"`
	CheckoutDatetime time.Time `parquet:"checkout_datetime,optional,timestamp(millisecond)"`
	Temperature      *float32  `parquet:"temperature,optional"`
	PublisherID      *int64    `parquet:"publisher_id,optional"`
}

// Subjects converts the subject dimension to its table and bridge rows.
func Subjects(d *dimension.Dimension) ([]Subject, []BookSubject) {
	dim := make([]Subject, len(d.Entities))
	for i, e := range d.Entities {
		dim[i] = Subject{ID: e.ID, Subject: e.Name}
	}
	br := make([]BookSubject, len(d.Links))
	for i, l := range d.Links {
		br[i] = BookSubject{BibNum: l.BibNum, SubjectID: l.ID}
	}
	return dim, br
}

// Authors converts the author dimension to its table and bridge rows.
func Authors(d *dimension.Dimension) ([]Author, []BookAuthor) {
	dim := make([]Author, len(d.Entities))
	for i, e := range d.Entities {
		dim[i] = Author{ID: e.ID, Name: e.Name}
	}
	br := make([]BookAuthor, len(d.Links))
	for i, l := range d.Links {
		br[i] = BookAuthor{BibNum: l.BibNum, AuthorID: l.ID}
	}
	return dim, br
}

// Publishers converts the publisher dimension to its table rows.
func Publishers(d *dimension.Dimension) []Publisher {
	dim := make([]Publisher, len(d.Entities))
	for i, e := range d.Entities {
		dim[i] = Publisher{ID: e.ID, Name: e.Name}
	}
	return dim
}

// Books converts book dimension rows.
func Books(books []dimension.BookRow) []Book {
	rows := make([]Book, len(books))
	for i, b := range books {
		rows[i] = Book{
			BibNum:             b.BibNum,
			Title:              b.Title,
			ISBNs:              optional(b.ISBNs),
			PublicationYear:    b.PublicationYear,
			AverageRating:      b.AverageRating,
			RatingsCount:       b.RatingsCount,
			TextReviewsCount:   b.TextReviewsCount,
			RawTitle:           optional(b.RawTitle),
			RawAuthor:          optional(b.RawAuthor),
			RawPublisher:       optional(b.RawPublisher),
			RawPublicationYear: optional(b.RawPublicationYear),
		}
	}
	return rows
}

// CheckoutTimes converts checkout time dimension rows.
func CheckoutTimes(times []dimension.CheckoutTime) []CheckoutTime {
	rows := make([]CheckoutTime, len(times))
	for i, t := range times {
		rows[i] = CheckoutTime(t)
	}
	return rows
}

// Checkouts converts fact rows.
func Checkouts(facts []fact.Checkout) []Checkout {
	rows := make([]Checkout, len(facts))
	for i, f := range facts {
		rows[i] = Checkout{
			ID:          f.ID,
			BibNum:      f.BibNum,
			ItemBarcode: optional(f.ItemBarcode),
			Temperature: f.Temperature,
			PublisherID: f.PublisherID,
		}
		if f.CheckoutDatetime != nil {
			rows[i].CheckoutDatetime = *f.CheckoutDatetime
		}
	}
	return rows
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
