package dimension

import (
	"sort"
	"time"

	"github.com/shelfstar/shelfstar"
)

// CheckoutTime is one row of the checkout time dimension.
type CheckoutTime struct {
	CheckoutDatetime time.Time
	Hour             int32
	Day              int32
	Week             int32 // ISO 8601 week
	Weekday          int32 // 1 is Sunday, 7 is Saturday
	Month            int32
	Year             int32
}

// NewCheckoutTime breaks t down into its parts.
func NewCheckoutTime(t time.Time) CheckoutTime {
	_, week := t.ISOWeek()
	return CheckoutTime{
		CheckoutDatetime: t,
		Hour:             int32(t.Hour()),
		Day:              int32(t.Day()),
		Week:             int32(week),
		Weekday:          int32(t.Weekday()) + 1,
		Month:            int32(t.Month()),
		Year:             int32(t.Year()),
	}
}

// CheckoutTimes returns a row for each distinct checkout timestamp, in time
// order. Checkouts without a timestamp are skipped.
func CheckoutTimes(events []shelfstar.CheckoutEvent) []CheckoutTime {
	seen := make(map[int64]struct{})
	var rows []CheckoutTime
	for _, e := range events {
		if e.CheckoutDatetime == nil {
			continue
		}
		ns := e.CheckoutDatetime.UnixNano()
		if _, ok := seen[ns]; ok {
			continue
		}
		seen[ns] = struct{}{}
		rows = append(rows, NewCheckoutTime(*e.CheckoutDatetime))
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CheckoutDatetime.Before(rows[j].CheckoutDatetime)
	})
	return rows
}
