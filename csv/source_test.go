package csv_test

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/shelfstar/shelfstar/csv"
)

func MustGetTempFile(t *testing.T, content string) *os.File {
	f, err := os.CreateTemp(t.TempDir(), "")
	if err != nil {
		t.Fatalf("getting temp file: %v", err)
	}
	n, err := f.WriteString(content)
	if err != nil || n != len(content) {
		t.Fatalf("writing temp file: %v, n: %v", err, n)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing temp file: %v", err)
	}
	return f
}

func readAll(t *testing.T, src *csv.Source) []map[string]string {
	recs := make([]map[string]string, 0)
	err := src.Each(func(rec map[string]string) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("reading source: %v", err)
	}
	return recs
}

func TestCSVSource(t *testing.T) {
	f := MustGetTempFile(t, `blah,bleh,blue
1,asdf,3
2,"qw, er",4
`)
	src := csv.NewSource(csv.WithURLs([]string{f.Name()}))
	rec, err := src.Record()
	if err != nil {
		t.Fatalf("getting first record: %v", err)
	}

	if len(rec) != 3 {
		t.Fatalf("wrong length record: %v", rec)
	}
	if rec["blah"] != "1" {
		t.Fatalf("blah")
	}
	if rec["bleh"] != "asdf" {
		t.Fatalf("bleh")
	}
	if rec["blue"] != "3" {
		t.Fatalf("blue")
	}

	rec, err = src.Record()
	if err != nil {
		t.Fatalf("getting second record: %v", err)
	}
	if rec["bleh"] != "qw, er" {
		t.Fatalf("quoted field: %v", rec)
	}
	if _, err = src.Record(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestCSVSourceEmptyFieldsAndBOM(t *testing.T) {
	f := MustGetTempFile(t, "\xef\xbb\xbfCode,  num_pages\nabc,\n\n   \n,12\n")
	recs := readAll(t, csv.NewSource(csv.WithURLs([]string{f.Name()})))
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %v", recs)
	}
	if recs[0]["Code"] != "abc" {
		t.Fatalf("BOM not stripped from header: %v", recs[0])
	}
	if _, ok := recs[0]["num_pages"]; ok {
		t.Fatalf("empty field should be skipped: %v", recs[0])
	}
	if recs[1]["num_pages"] != "12" {
		t.Fatalf("padded header not trimmed: %v", recs[1])
	}
}

func TestCSVSourceHeaderless(t *testing.T) {
	f := MustGetTempFile(t, "Penguin,Penguin Books\nTor,Tor Books\n")
	recs := readAll(t, csv.NewSource(
		csv.WithURLs([]string{f.Name()}),
		csv.WithHeader([]string{"publisher", "official_publisher"}),
	))
	if len(recs) != 2 || recs[1]["official_publisher"] != "Tor Books" {
		t.Fatalf("unexpected records: %v", recs)
	}
}

func TestCSVSourceLimit(t *testing.T) {
	f1 := MustGetTempFile(t, "a\n1\n2\n3\n")
	f2 := MustGetTempFile(t, "a\n4\n5\n")
	recs := readAll(t, csv.NewSource(csv.WithURLs([]string{f1.Name(), f2.Name()}), csv.WithLimit(4)))
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %v", recs)
	}
	if recs[3]["a"] != "4" {
		t.Fatalf("unexpected last record: %v", recs[3])
	}
}

func TestCSVSourceRequiredColumns(t *testing.T) {
	f := MustGetTempFile(t, "BibNum,Title\n1,x\n")
	src := csv.NewSource(csv.WithURLs([]string{f.Name()}), csv.WithRequiredColumns("BibNum", "ItemType"))
	err := src.Each(func(map[string]string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "missing required column 'ItemType'") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := csv.NewSource(csv.WithURLs([]string{"/does/not/exist.csv"}), csv.WithMaxRetries(1))
	err := src.Each(func(map[string]string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "/does/not/exist.csv") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
