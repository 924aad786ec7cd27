// Package load reads the raw sources of a run into typed records. Inventory
// and checkouts are narrowed to print books with the item type dictionary.
// Values which do not parse become nil; only unreadable sources and missing
// columns are errors.
package load

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/aws/s3"
	"github.com/shelfstar/shelfstar/csv"
	"go.uber.org/zap"
)

const (
	// CheckoutLayout is the layout of checkout timestamps, e.g.
	// "01/15/2017 02:34:00 PM". Unpadded fields are accepted too.
	CheckoutLayout = "1/2/2006 3:4:5 PM"

	// CatalogDateLayout is the layout of catalog publication dates.
	CatalogDateLayout = "1/2/2006"
)

// Loader reads sources from local files, http(s) URLs, or S3 when it has an
// S3 client.
type Loader struct {
	s3      *s3.Client
	stats   shelfstar.Statter
	log     *zap.Logger
	retries int
}

// LoaderOption configures a Loader.
type LoaderOption func(l *Loader)

// OptLoaderS3 lets the Loader read s3:// locations.
func OptLoaderS3(c *s3.Client) LoaderOption {
	return func(l *Loader) {
		l.s3 = c
	}
}

// OptLoaderStatter sets the Statter which counts dropped rows.
func OptLoaderStatter(s shelfstar.Statter) LoaderOption {
	return func(l *Loader) {
		l.stats = s
	}
}

// OptLoaderLogger sets the logger.
func OptLoaderLogger(log *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = log
	}
}

// OptLoaderRetries sets how often a failed read of a source is retried.
func OptLoaderRetries(n int) LoaderOption {
	return func(l *Loader) {
		l.retries = n
	}
}

// NewLoader returns a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		stats:   shelfstar.NopStatter{},
		log:     zap.NewNop(),
		retries: 3,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open returns an OpenStringer for loc.
func (l *Loader) Open(loc string) (csv.OpenStringer, error) {
	if s3.IsURL(loc) {
		if l.s3 == nil {
			return nil, errors.Errorf("no S3 client configured for '%s'", loc)
		}
		return l.s3.Opener(loc)
	}
	return csv.URLOpener(loc), nil
}

// source opens loc as a csv.Source. Errors come back as StageErrors for the
// given stage.
func (l *Loader) source(stage, loc string, opts ...csv.Option) (*csv.Source, error) {
	opener, err := l.Open(loc)
	if err != nil {
		return nil, shelfstar.NewStageError(stage, loc, err)
	}
	opts = append([]csv.Option{
		csv.WithOpenStringers([]csv.OpenStringer{opener}),
		csv.WithMaxRetries(l.retries),
	}, opts...)
	return csv.NewSource(opts...), nil
}

// each runs fn over every record of a source, converting failures into a
// StageError.
func (l *Loader) each(stage, loc string, fn func(rec map[string]string), opts ...csv.Option) error {
	src, err := l.source(stage, loc, opts...)
	if err != nil {
		return err
	}
	start := time.Now()
	n := 0
	err = src.Each(func(rec map[string]string) error {
		n++
		fn(rec)
		return nil
	})
	if err != nil {
		return shelfstar.NewStageError(stage, loc, err)
	}
	l.stats.Timing(stage, time.Since(start), 1)
	l.log.Debug("read source", zap.String("stage", stage), zap.String("source", loc), zap.Int("rows", n))
	return nil
}

// Dictionary holds the item type codes which denote print books.
type Dictionary map[string]struct{}

// IsPrintBook reports whether code is a print book item type.
func (d Dictionary) IsPrintBook(code string) bool {
	_, ok := d[code]
	return ok
}

// LoadCodeDictionary reads the item type code dictionary.
func (l *Loader) LoadCodeDictionary(loc string) (Dictionary, error) {
	dict := make(Dictionary)
	err := l.each("load dictionary", loc, func(rec map[string]string) {
		if rec["Code Type"] == "ItemType" && rec["Format Group"] == "Print" && rec["Format Subgroup"] == "Book" {
			dict[rec["Code"]] = struct{}{}
		}
	}, csv.WithRequiredColumns("Code", "Code Type", "Format Group", "Format Subgroup"))
	if err != nil {
		return nil, err
	}
	return dict, nil
}

// LoadInventory reads the inventory, keeping only print books and the first
// row read for each bib number. A positive limit caps the number of raw rows
// read, before any filtering.
func (l *Loader) LoadInventory(loc string, dict Dictionary, limit int) ([]shelfstar.InventoryRecord, error) {
	var recs []shelfstar.InventoryRecord
	seen := make(map[string]struct{})
	err := l.each("load inventory", loc, func(rec map[string]string) {
		if !dict.IsPrintBook(rec["ItemType"]) {
			l.stats.Count("load.inventory.filtered", 1, 1)
			return
		}
		bib := rec["BibNum"]
		if _, ok := seen[bib]; ok {
			l.stats.Count("load.inventory.duplicate", 1, 1)
			return
		}
		seen[bib] = struct{}{}
		recs = append(recs, shelfstar.InventoryRecord{
			BibNum:             bib,
			ISBNs:              rec["ISBN"],
			RawTitle:           rec["Title"],
			RawAuthor:          rec["Author"],
			RawPublicationYear: rec["PublicationYear"],
			RawPublisher:       rec["Publisher"],
			RawSubjects:        rec["Subjects"],
		})
	}, csv.WithLimit(limit), csv.WithRequiredColumns("BibNum", "ItemType"))
	return recs, err
}

// LoadInventoryPublishers reads the distinct raw publishers of every print
// book row, in the order first seen. Rows repeating a bib number count too.
// A positive limit caps the number of raw rows read.
func (l *Loader) LoadInventoryPublishers(loc string, dict Dictionary, limit int) ([]string, error) {
	var pubs []string
	seen := make(map[string]struct{})
	err := l.each("load inventory publishers", loc, func(rec map[string]string) {
		if !dict.IsPrintBook(rec["ItemType"]) {
			return
		}
		p := rec["Publisher"]
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		pubs = append(pubs, p)
	}, csv.WithLimit(limit), csv.WithRequiredColumns("ItemType", "Publisher"))
	return pubs, err
}

// LoadCheckouts reads the checkouts of print books. A positive limit caps the
// number of raw rows read, before any filtering.
func (l *Loader) LoadCheckouts(loc string, dict Dictionary, limit int) ([]shelfstar.CheckoutEvent, error) {
	var recs []shelfstar.CheckoutEvent
	err := l.each("load checkouts", loc, func(rec map[string]string) {
		if !dict.IsPrintBook(rec["ItemType"]) {
			l.stats.Count("load.checkouts.filtered", 1, 1)
			return
		}
		ts := ParseCheckoutTime(rec["CheckoutDateTime"])
		if ts == nil {
			l.stats.Count("load.checkouts.bad_datetime", 1, 1)
		}
		recs = append(recs, shelfstar.CheckoutEvent{
			BibNum:           rec["BibNumber"],
			ItemBarcode:      rec["ItemBarcode"],
			CheckoutDatetime: ts,
		})
	}, csv.WithLimit(limit), csv.WithRequiredColumns("BibNumber", "ItemBarcode", "ItemType", "CheckoutDateTime"))
	return recs, err
}

// LoadCatalog reads the external book catalog.
func (l *Loader) LoadCatalog(loc string) ([]shelfstar.CatalogRecord, error) {
	var recs []shelfstar.CatalogRecord
	err := l.each("load catalog", loc, func(rec map[string]string) {
		recs = append(recs, shelfstar.CatalogRecord{
			ExternalID:       rec["bookID"],
			Title:            rec["title"],
			Authors:          rec["authors"],
			AverageRating:    parseFloat(rec["average_rating"]),
			ISBN:             rec["isbn"],
			ISBN13:           rec["isbn13"],
			LanguageCode:     rec["language_code"],
			NumPages:         parseInt(rec["num_pages"]),
			RatingsCount:     parseInt(rec["ratings_count"]),
			TextReviewsCount: parseInt(rec["text_reviews_count"]),
			PublicationDate:  parseTime(CatalogDateLayout, rec["publication_date"]),
			Publisher:        rec["publisher"],
		})
	}, csv.WithRequiredColumns("isbn", "isbn13", "title", "authors"))
	return recs, err
}

// LoadPublisherMap reads the header-less raw to official publisher map.
func (l *Loader) LoadPublisherMap(loc string) ([]shelfstar.PublisherMapEntry, error) {
	var recs []shelfstar.PublisherMapEntry
	err := l.each("load publishers", loc, func(rec map[string]string) {
		if rec["raw"] == "" {
			return
		}
		recs = append(recs, shelfstar.PublisherMapEntry{
			RawPublisher:      rec["raw"],
			OfficialPublisher: rec["official"],
		})
	}, csv.WithHeader([]string{"raw", "official"}))
	return recs, err
}

// LoadGazetteer reads the official publisher names, one per row under a
// "publisher" header. Blank and repeated names are skipped.
func (l *Loader) LoadGazetteer(loc string) ([]string, error) {
	var names []string
	seen := make(map[string]struct{})
	err := l.each("load gazetteer", loc, func(rec map[string]string) {
		name := rec["publisher"]
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			l.stats.Count("load.gazetteer.duplicate", 1, 1)
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}, csv.WithRequiredColumns("publisher"))
	return names, err
}

// ParseCheckoutTime parses a checkout timestamp as UTC, returning nil if it is
// malformed.
func ParseCheckoutTime(s string) *time.Time {
	return parseTime(CheckoutLayout, s)
}

func parseTime(layout, s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(s string) *int32 {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return nil
	}
	i32 := int32(i)
	return &i32
}

func parseFloat(s string) *float32 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return nil
	}
	f32 := float32(f)
	return &f32
}
