package fact

import (
	"crypto/md5"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/test"
)

func i32(i int32) *int32     { return &i }
func f32(f float32) *float32 { return &f }

func TestID(t *testing.T) {
	ts := time.Date(2017, time.January, 15, 14, 34, 0, 0, time.UTC)
	sum := md5.Sum([]byte("100=0010081928945=2017-01-15 14:34:00"))
	test.MustBe(t, hex.EncodeToString(sum[:]), ID("100", "0010081928945", &ts))

	sum = md5.Sum([]byte("100=0010081928945"))
	test.MustBe(t, hex.EncodeToString(sum[:]), ID("100", "0010081928945", nil), "nil timestamp is skipped")

	sum = md5.Sum([]byte("100=2017-01-15 14:34:00"))
	test.MustBe(t, hex.EncodeToString(sum[:]), ID("100", "", &ts), "empty barcode is skipped")
}

func TestBuild(t *testing.T) {
	ts := time.Date(2017, time.January, 15, 14, 34, 0, 0, time.UTC)
	other := time.Date(2017, time.January, 16, 8, 0, 0, 0, time.UTC)
	checkouts := []shelfstar.CheckoutEvent{
		{BibNum: "100", ItemBarcode: "A", CheckoutDatetime: &ts},
		{BibNum: "200", ItemBarcode: "B", CheckoutDatetime: &other},
		{BibNum: "300", ItemBarcode: "C"},
	}
	weather := []shelfstar.WeatherReading{
		{Month: i32(1), Day: i32(15), Year: i32(2017), Temperature: f32(41.5)},
		{Month: i32(1), Day: i32(15), Year: i32(2017), Temperature: f32(99)},
		{Month: nil, Day: i32(16), Year: i32(2017), Temperature: f32(50)},
	}
	publishers := map[string]int64{"100": 4, "300": 0}

	facts := Build(checkouts, weather, publishers, Options{})
	test.MustBe(t, 3, len(facts))

	test.MustBe(t, f32(41.5), facts[0].Temperature, "first reading of the day wins")
	test.MustBe(t, int64(4), *facts[0].PublisherID)
	test.MustBe(t, ID("100", "A", &ts), facts[0].ID)

	if facts[1].Temperature != nil || facts[1].PublisherID != nil {
		t.Fatalf("expected no temperature or publisher for unmatched checkout: %+v", facts[1])
	}
	test.MustBe(t, (*float32)(nil), facts[2].Temperature)
	test.MustBe(t, int64(0), *facts[2].PublisherID)
}

func TestBuildIsDeterministic(t *testing.T) {
	var checkouts []shelfstar.CheckoutEvent
	for i := 0; i < 100; i++ {
		ts := time.Date(2017, time.March, 1+i%28, i%24, i%60, 0, 0, time.UTC)
		checkouts = append(checkouts, shelfstar.CheckoutEvent{BibNum: "b", ItemBarcode: string(rune('a' + i%26)), CheckoutDatetime: &ts})
	}
	first := Build(checkouts, nil, nil, Options{})
	second := Build(checkouts, nil, nil, Options{})
	for i := range first {
		test.MustBe(t, first[i].ID, second[i].ID)
	}
}

func TestBuildCollapse(t *testing.T) {
	ts := time.Date(2017, time.January, 15, 14, 34, 0, 0, time.UTC)
	same := ts
	checkouts := []shelfstar.CheckoutEvent{
		{BibNum: "100", ItemBarcode: "A", CheckoutDatetime: &ts},
		{BibNum: "100", ItemBarcode: "A", CheckoutDatetime: &same},
	}

	facts := Build(checkouts, nil, nil, Options{})
	test.MustBe(t, 2, len(facts))
	test.MustBe(t, facts[0].ID, facts[1].ID)
	test.MustBe(t, 1, Duplicates(facts))

	facts = Build(checkouts, nil, nil, Options{Collapse: true})
	test.MustBe(t, 1, len(facts))
	test.MustBe(t, 0, Duplicates(facts))
}
