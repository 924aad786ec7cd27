package load_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/load"
	"github.com/shelfstar/shelfstar/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dictionaryCSV = `Code,Description,Code Type,Format Group,Format Subgroup
acbk,Book: Adult/YA,ItemType,Print,Book
jcbk,Book: Juvenile,ItemType,Print,Book
acdvd,DVD: Adult/YA,ItemType,Media,Video
acmag,Magazine,ItemType,Print,Periodical
acbk,Books,ItemCollection,Print,Book
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func dictionary(t *testing.T, l *load.Loader) load.Dictionary {
	t.Helper()
	dict, err := l.LoadCodeDictionary(writeFile(t, "dict.csv", dictionaryCSV))
	require.NoError(t, err)
	return dict
}

func TestLoadCodeDictionary(t *testing.T) {
	dict := dictionary(t, load.NewLoader())
	assert.True(t, dict.IsPrintBook("acbk"))
	assert.True(t, dict.IsPrintBook("jcbk"))
	assert.False(t, dict.IsPrintBook("acdvd"))
	assert.False(t, dict.IsPrintBook("acmag"))
	assert.False(t, dict.IsPrintBook("unknown"))
}

func TestLoadInventory(t *testing.T) {
	stats := &mock.RecordingStatter{}
	l := load.NewLoader(load.OptLoaderStatter(stats))
	dict := dictionary(t, l)
	path := writeFile(t, "inventory.csv", `BibNum,Title,Author,ISBN,PublicationYear,Publisher,Subjects,ItemType,ItemCollection,FloatingItem,ItemLocation,ReportDate,ItemCount
100,"The only child : a novel / Andrew Pyper.","Pyper, Andrew","0-14-1, ABC13",2017.,"Simon & Schuster,","Psychological fiction, Thrillers",acbk,nafic,,cen,09/01/2017,1
100,"The only child : a novel / Andrew Pyper.","Pyper, Andrew","0-14-1, ABC13",2017.,"Simon & Schuster,","Psychological fiction, Thrillers",acbk,nafic,,bal,09/01/2017,2
200,Some movie,,,,,,acdvd,nadvd,,cen,09/01/2017,1
300,Kids book,"Avi, 1937-",,[2014],Orchard,,jcbk,ncpic,,bea,09/01/2017,1
400,Unknown code,,,,,,zzzz,,,cen,09/01/2017,1
`)

	recs, err := l.LoadInventory(path, dict, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, shelfstar.InventoryRecord{
		BibNum:             "100",
		ISBNs:              "0-14-1, ABC13",
		RawTitle:           "The only child : a novel / Andrew Pyper.",
		RawAuthor:          "Pyper, Andrew",
		RawPublicationYear: "2017.",
		RawPublisher:       "Simon & Schuster,",
		RawSubjects:        "Psychological fiction, Thrillers",
	}, recs[0])
	assert.Equal(t, "300", recs[1].BibNum)
	assert.Equal(t, "", recs[1].ISBNs)
	assert.Equal(t, int64(2), stats.Get("load.inventory.filtered"))
	assert.Equal(t, int64(1), stats.Get("load.inventory.duplicate"))

	// the limit applies to raw rows, before filtering
	recs, err = l.LoadInventory(path, dict, 3)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "100", recs[0].BibNum)
}

func TestLoadInventoryPublishers(t *testing.T) {
	l := load.NewLoader()
	dict := dictionary(t, l)
	path := writeFile(t, "inventory.csv", `BibNum,Title,Publisher,ItemType
100,The only child,"Simon & Schuster,",acbk
100,The only child,"Simon & Schuster, Inc.",acbk
200,Some movie,Warner Home Video,acdvd
300,Kids book,Orchard,jcbk
400,Another,"Simon & Schuster,",acbk
500,No publisher,,acbk
`)

	pubs, err := l.LoadInventoryPublishers(path, dict, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Simon & Schuster,", "Simon & Schuster, Inc.", "Orchard"}, pubs)

	pubs, err = l.LoadInventoryPublishers(path, dict, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Simon & Schuster,", "Simon & Schuster, Inc."}, pubs)
}

func TestLoadInventoryMissingColumn(t *testing.T) {
	l := load.NewLoader()
	path := writeFile(t, "inventory.csv", "Title,ItemType\nx,acbk\n")
	_, err := l.LoadInventory(path, load.Dictionary{"acbk": {}}, 0)
	require.Error(t, err)
	serr, ok := err.(*shelfstar.StageError)
	require.True(t, ok, "expected a StageError, got %T", err)
	assert.Equal(t, "load inventory", serr.Stage)
	assert.Equal(t, path, serr.Source)
	assert.Contains(t, err.Error(), "BibNum")
}

func TestLoadMissingSource(t *testing.T) {
	l := load.NewLoader(load.OptLoaderRetries(1))
	_, err := l.LoadCodeDictionary(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dictionary")
}

func TestLoadS3WithoutClient(t *testing.T) {
	l := load.NewLoader()
	_, err := l.LoadCatalog("s3://bucket/books.csv")
	require.Error(t, err)
	assert.IsType(t, &shelfstar.StageError{}, err)
}

func TestLoadCheckouts(t *testing.T) {
	stats := &mock.RecordingStatter{}
	l := load.NewLoader(load.OptLoaderStatter(stats))
	dict := dictionary(t, l)
	path := writeFile(t, "checkouts.csv", `BibNumber,ItemBarcode,ItemType,Collection,CallNumber,CheckoutDateTime
100,0010081928945,acbk,nafic,FIC PYPER,01/15/2017 02:34:00 PM
100,0010081928945,acbk,nafic,FIC PYPER,1/5/2017 9:3:7 AM
100,0010081928945,acbk,nafic,FIC PYPER,not a date
200,0010000000001,acdvd,nadvd,DVD,01/15/2017 02:34:00 PM
`)
	recs, err := l.LoadCheckouts(path, dict, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	exp := time.Date(2017, time.January, 15, 14, 34, 0, 0, time.UTC)
	assert.Equal(t, "100", recs[0].BibNum)
	assert.Equal(t, "0010081928945", recs[0].ItemBarcode)
	require.NotNil(t, recs[0].CheckoutDatetime)
	assert.True(t, exp.Equal(*recs[0].CheckoutDatetime))

	require.NotNil(t, recs[1].CheckoutDatetime)
	assert.True(t, time.Date(2017, time.January, 5, 9, 3, 7, 0, time.UTC).Equal(*recs[1].CheckoutDatetime))

	assert.Nil(t, recs[2].CheckoutDatetime)
	assert.Equal(t, int64(1), stats.Get("load.checkouts.filtered"))
	assert.Equal(t, int64(1), stats.Get("load.checkouts.bad_datetime"))
}

func TestLoadCatalog(t *testing.T) {
	l := load.NewLoader()
	path := writeFile(t, "books.csv", `bookID,title,authors,average_rating,isbn,isbn13,language_code,  num_pages,ratings_count,text_reviews_count,publication_date,publisher
1,X,Jane Doe/John Roe,4.57,0439785960,ABC13,eng,652,2095690,27591,9/16/2006,Scholastic Inc.
2,Y,Someone,n/a,0-14-1,9780000000002,eng,,oops,3,31/31/2000,Penguin
`)
	recs, err := l.LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "1", first.ExternalID)
	assert.Equal(t, "X", first.Title)
	assert.Equal(t, "ABC13", first.ISBN13)
	require.NotNil(t, first.AverageRating)
	assert.InDelta(t, 4.57, *first.AverageRating, 0.001)
	require.NotNil(t, first.NumPages)
	assert.Equal(t, int32(652), *first.NumPages)
	require.NotNil(t, first.PublicationDate)
	assert.Equal(t, 2006, first.PublicationDate.Year())
	assert.Equal(t, time.September, first.PublicationDate.Month())

	second := recs[1]
	assert.Nil(t, second.AverageRating)
	assert.Nil(t, second.NumPages)
	assert.Nil(t, second.RatingsCount)
	require.NotNil(t, second.TextReviewsCount)
	assert.Equal(t, int32(3), *second.TextReviewsCount)
	assert.Nil(t, second.PublicationDate)
}

func TestLoadPublisherMap(t *testing.T) {
	l := load.NewLoader()
	path := writeFile(t, "publishers.csv", "\"Penguin Books,\",Penguin Books\nKnopf,Alfred A. Knopf\n\n")
	recs, err := l.LoadPublisherMap(path)
	require.NoError(t, err)
	assert.Equal(t, []shelfstar.PublisherMapEntry{
		{RawPublisher: "Penguin Books,", OfficialPublisher: "Penguin Books"},
		{RawPublisher: "Knopf", OfficialPublisher: "Alfred A. Knopf"},
	}, recs)
}

func TestLoadGazetteer(t *testing.T) {
	stats := &mock.RecordingStatter{}
	l := load.NewLoader(load.OptLoaderStatter(stats))
	path := writeFile(t, "gazetteer.csv", "publisher\nPenguin Books\n\nAlfred A. Knopf\nPenguin Books\n")
	names, err := l.LoadGazetteer(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Penguin Books", "Alfred A. Knopf"}, names)
	assert.Equal(t, int64(1), stats.Get("load.gazetteer.duplicate"))

	_, err = l.LoadGazetteer(writeFile(t, "bad.csv", "name\nPenguin Books\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher")
}
