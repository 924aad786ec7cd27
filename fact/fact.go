// Package fact builds the checkout fact table.
package fact

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shelfstar/shelfstar"
)

// DatetimeLayout is how checkout timestamps enter the fact id.
const DatetimeLayout = "2006-01-02 15:04:05"

// Checkout is one row of the checkout fact table.
type Checkout struct {
	ID               string
	BibNum           string
	ItemBarcode      string
	CheckoutDatetime *time.Time
	Temperature      *float32
	PublisherID      *int64
}

// Options controls Build.
type Options struct {
	// Collapse drops rows whose id was already emitted, keeping the first.
	Collapse bool
}

// Build joins every checkout to the temperature of its day and to the
// publisher of its book. Checkouts without either keep a nil value. The
// order of checkouts is preserved.
func Build(checkouts []shelfstar.CheckoutEvent, weather []shelfstar.WeatherReading, publishers map[string]int64, opts Options) []Checkout {
	temps := temperatures(weather)
	seen := make(map[string]struct{})
	facts := make([]Checkout, 0, len(checkouts))
	for _, c := range checkouts {
		f := Checkout{
			ID:               ID(c.BibNum, c.ItemBarcode, c.CheckoutDatetime),
			BibNum:           c.BibNum,
			ItemBarcode:      c.ItemBarcode,
			CheckoutDatetime: c.CheckoutDatetime,
		}
		if opts.Collapse {
			if _, ok := seen[f.ID]; ok {
				continue
			}
			seen[f.ID] = struct{}{}
		}
		if c.CheckoutDatetime != nil {
			if temp, ok := temps[dayOf(*c.CheckoutDatetime)]; ok {
				f.Temperature = temp
			}
		}
		if id, ok := publishers[c.BibNum]; ok {
			pid := id
			f.PublisherID = &pid
		}
		facts = append(facts, f)
	}
	return facts
}

// ID returns the content address of a checkout: the lower case hex MD5 of
// its natural key fields joined with "=". Missing fields are left out.
func ID(bibNum, itemBarcode string, checkoutDatetime *time.Time) string {
	parts := make([]string, 0, 3)
	if bibNum != "" {
		parts = append(parts, bibNum)
	}
	if itemBarcode != "" {
		parts = append(parts, itemBarcode)
	}
	if checkoutDatetime != nil {
		parts = append(parts, checkoutDatetime.Format(DatetimeLayout))
	}
	sum := md5.Sum([]byte(strings.Join(parts, "=")))
	return hex.EncodeToString(sum[:])
}

// Duplicates counts the rows sharing an id with an earlier row.
func Duplicates(facts []Checkout) int {
	seen := make(map[string]struct{}, len(facts))
	n := 0
	for _, f := range facts {
		if _, ok := seen[f.ID]; ok {
			n++
			continue
		}
		seen[f.ID] = struct{}{}
	}
	return n
}

type day struct {
	year  int32
	month int32
	day   int32
}

func dayOf(t time.Time) day {
	return day{year: int32(t.Year()), month: int32(t.Month()), day: int32(t.Day())}
}

// temperatures indexes readings by day. The first reading of a day wins and
// readings with a missing date part are ignored.
func temperatures(weather []shelfstar.WeatherReading) map[day]*float32 {
	m := make(map[day]*float32, len(weather))
	for _, w := range weather {
		if w.Year == nil || w.Month == nil || w.Day == nil {
			continue
		}
		d := day{year: *w.Year, month: *w.Month, day: *w.Day}
		if _, ok := m[d]; !ok {
			m[d] = w.Temperature
		}
	}
	return m
}
