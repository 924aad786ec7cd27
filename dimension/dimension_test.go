package dimension

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	pairs := []Pair{
		{BibNum: "2", Value: "Penguin Books (UK)"},
		{BibNum: "1", Value: "penguin books"},
		{BibNum: "1", Value: "Penguin Books"},
		{BibNum: "3", Value: ""},
		{BibNum: "3", Value: "()"},
		{BibNum: "3", Value: "Knopf"},
	}
	d, err := Build(Publisher, pairs, shelfstar.NewMapTranslator())
	require.NoError(t, err)

	require.Len(t, d.Entities, 2)
	assert.Equal(t, Entity{ID: 0, Name: "Knopf", key: "knopf"}, d.Entities[0])
	assert.Equal(t, Entity{ID: 1, Name: "Penguin Books", key: "penguin books"}, d.Entities[1])
	assert.Equal(t, []Link{{"1", 1}, {"2", 1}, {"3", 0}}, d.Links)

	id, ok := d.Lookup("PENGUIN BOOKS.")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
	_, ok = d.Lookup("Random House")
	assert.False(t, ok)
	assert.Equal(t, map[string]int64{"1": 1, "2": 1, "3": 0}, d.ByBibNum())
}

func TestBuildEmpty(t *testing.T) {
	d, err := Build(Subject, nil, shelfstar.NewMapTranslator())
	require.NoError(t, err)
	assert.Empty(t, d.Entities)
	assert.Empty(t, d.Links)
}

type collidingTranslator struct{}

func (collidingTranslator) Get(dimension string, id uint64) (string, error) { return "", nil }
func (collidingTranslator) GetID(dimension, key string) (uint64, error)   { return 7, nil }

type failingTranslator struct{}

func (failingTranslator) Get(dimension string, id uint64) (string, error) { return "", nil }
func (failingTranslator) GetID(dimension, key string) (uint64, error) {
	return 0, errors.New("store closed")
}

func TestBuildRejectsCollisions(t *testing.T) {
	pairs := []Pair{{"1", "a"}, {"2", "b"}}
	_, err := Build(Author, pairs, collidingTranslator{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collide")

	_, err = Build(Author, pairs, failingTranslator{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store closed")
}

func TestBuildUniqueIDsUnderParallelAssignment(t *testing.T) {
	tr := shelfstar.NewMapTranslator()
	const workers = 8
	dims := make([]*Dimension, workers)
	errs := make([]error, workers)
	wg := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var pairs []Pair
			// overlapping key ranges across workers
			for i := w * 50; i < w*50+200; i++ {
				pairs = append(pairs, Pair{BibNum: fmt.Sprint(i), Value: fmt.Sprintf("Subject %d", i)})
			}
			dims[w], errs[w] = Build(Subject, pairs, tr)
		}(w)
	}
	wg.Wait()

	byKey := make(map[string]int64)
	byID := make(map[int64]string)
	for w := 0; w < workers; w++ {
		require.NoError(t, errs[w])
		for _, e := range dims[w].Entities {
			if id, ok := byKey[e.Key()]; ok {
				require.Equal(t, id, e.ID, "key %s got two ids", e.Key())
			}
			if key, ok := byID[e.ID]; ok {
				require.Equal(t, key, e.Key(), "id %d given to two keys", e.ID)
			}
			byKey[e.Key()] = e.ID
			byID[e.ID] = e.Key()
		}
	}
	assert.Len(t, byKey, 550)
}

func TestSubjects(t *testing.T) {
	books := []shelfstar.Book{
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "1", RawSubjects: "Cooking, Cooking (Vegetarian), Baking"}},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "2", RawSubjects: "baking"}},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "3"}},
	}
	d, err := Subjects(books, shelfstar.NewMapTranslator())
	require.NoError(t, err)
	require.Len(t, d.Entities, 2)
	assert.Equal(t, "Baking", d.Entities[0].Name)
	assert.Equal(t, "Cooking", d.Entities[1].Name)
	assert.Equal(t, []Link{{"1", 0}, {"1", 1}, {"2", 0}}, d.Links)
}

func TestAuthors(t *testing.T) {
	books := []shelfstar.Book{
		{
			InventoryRecord: shelfstar.InventoryRecord{BibNum: "1", RawAuthor: "Brand Miller, Janette, 1952-"},
			Catalog:         &shelfstar.CatalogRecord{Authors: "Janette Brand Miller, Kaye Foster-Powell"},
		},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "2", RawAuthor: "Avi, 1937-"}},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "3"}},
	}
	d, err := Authors(books, shelfstar.NewMapTranslator())
	require.NoError(t, err)
	names := make([]string, len(d.Entities))
	for i, e := range d.Entities {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"Avi", "Janette Brand Miller", "Kaye Foster-Powell"}, names)
	assert.Len(t, d.Links, 3)
	assert.Equal(t, "1", d.Links[0].BibNum)
	assert.Equal(t, "2", d.Links[2].BibNum)
}

func TestPublishers(t *testing.T) {
	books := []shelfstar.Book{
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "1", RawPublisher: "Penguin,"}},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "2", RawPublisher: "Penguin Books,"}},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "3", RawPublisher: "Knopf : Distributed by Random House,"}},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "4"}},
	}
	pubMap := []shelfstar.PublisherMapEntry{
		{RawPublisher: "Penguin,", OfficialPublisher: "Penguin Books"},
	}
	d, err := Publishers(books, pubMap, shelfstar.NewMapTranslator())
	require.NoError(t, err)
	require.Len(t, d.Entities, 2)
	assert.Equal(t, "Knopf : Distributed by Random House", d.Entities[0].Name)
	assert.Equal(t, "Penguin Books", d.Entities[1].Name)

	lookup := d.ByBibNum()
	assert.Equal(t, lookup["1"], lookup["2"])
	assert.NotEqual(t, lookup["1"], lookup["3"])
	_, ok := lookup["4"]
	assert.False(t, ok)
	assert.Equal(t, 2, Unmapped(books, pubMap))
}

func TestUnmappedIgnoresEmptyOfficialName(t *testing.T) {
	books := []shelfstar.Book{
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "1", RawPublisher: "Orchard,"}},
		{InventoryRecord: shelfstar.InventoryRecord{BibNum: "2", RawPublisher: "Penguin,"}},
	}
	pubMap := []shelfstar.PublisherMapEntry{
		{RawPublisher: "Orchard,", OfficialPublisher: ""},
		{RawPublisher: "Penguin,", OfficialPublisher: "Penguin Books"},
	}
	assert.Equal(t, 1, Unmapped(books, pubMap))

	pairs := PublisherPairs(books, pubMap)
	require.Len(t, pairs, 2)
	assert.Equal(t, "Orchard,", pairs[0].Value)
	assert.Equal(t, "Penguin Books", pairs[1].Value)
}

func TestBooks(t *testing.T) {
	rating := float32(4.1)
	count := int32(12)
	date := time.Date(2017, time.May, 2, 0, 0, 0, 0, time.UTC)
	books := []shelfstar.Book{
		{
			InventoryRecord: shelfstar.InventoryRecord{
				BibNum:             "100",
				ISBNs:              "0-14-1,ABC13",
				RawTitle:           "The only child : a novel / Andrew Pyper.",
				RawPublicationYear: "2016.",
			},
			Catalog: &shelfstar.CatalogRecord{Title: "X", AverageRating: &rating, RatingsCount: &count, PublicationDate: &date},
		},
		{
			InventoryRecord: shelfstar.InventoryRecord{
				BibNum:             "200",
				RawTitle:           "The only child : a novel / Andrew Pyper.",
				RawPublicationYear: "1991, c1988.",
			},
		},
	}
	rows := Books(books)
	require.Len(t, rows, 2)
	assert.Equal(t, "X", *rows[0].Title)
	assert.Equal(t, int32(2017), *rows[0].PublicationYear)
	assert.Equal(t, &rating, rows[0].AverageRating)
	assert.Nil(t, rows[0].TextReviewsCount)
	assert.Equal(t, "The only child : a novel / Andrew Pyper.", rows[0].RawTitle)

	assert.Equal(t, "The only child : a novel", *rows[1].Title)
	assert.Equal(t, int32(1988), *rows[1].PublicationYear)
	assert.Nil(t, rows[1].AverageRating)
}

func TestCheckoutTimes(t *testing.T) {
	// 2017-01-15 was a Sunday in ISO week 2
	sunday := time.Date(2017, time.January, 15, 14, 34, 0, 0, time.UTC)
	saturday := time.Date(2017, time.January, 14, 9, 0, 0, 0, time.UTC)
	same := sunday
	events := []shelfstar.CheckoutEvent{
		{BibNum: "1", CheckoutDatetime: &sunday},
		{BibNum: "2", CheckoutDatetime: &same},
		{BibNum: "3"},
		{BibNum: "4", CheckoutDatetime: &saturday},
	}
	rows := CheckoutTimes(events)
	require.Len(t, rows, 2)
	assert.Equal(t, CheckoutTime{
		CheckoutDatetime: saturday, Hour: 9, Day: 14, Week: 2, Weekday: 7, Month: 1, Year: 2017,
	}, rows[0])
	assert.Equal(t, CheckoutTime{
		CheckoutDatetime: sunday, Hour: 14, Day: 15, Week: 2, Weekday: 1, Month: 1, Year: 2017,
	}, rows[1])

	// 2016-01-01 belongs to the last ISO week of 2015
	assert.Equal(t, int32(53), NewCheckoutTime(time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)).Week)
}
