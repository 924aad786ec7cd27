// Package textnorm cleans the free text fields of the library inventory and
// computes the keys used to collapse near-duplicate entities. Every function
// is pure and total: malformed input gives nil or the input back, never a
// panic.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxSwapNameLen guards the "last, first" swap for authors without a year
// suffix. Institutional names with a comma tend to be longer than this.
const maxSwapNameLen = 36

var (
	yearRe         = regexp.MustCompile(`\d{4}`)
	authorYearsRe  = regexp.MustCompile(`, \d{4}-(\d{4})?$`)
	parentheticRe  = regexp.MustCompile(`(\s*\(.+\)\s*)$`)
	punctuationRe  = regexp.MustCompile(`[\[\]<>{}|\\!"#&()*+,./:;?@_-]`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
	titleSeparator = " / "
)

// CleanTitle prefers the catalog title. Otherwise it drops the statement of
// responsibility which follows the last " / " in the inventory title, e.g.
// "The only child : a novel / Andrew Pyper." becomes "The only child : a
// novel". A title without the separator is returned unchanged.
func CleanTitle(splTitle, catalogTitle string) *string {
	if catalogTitle != "" {
		return &catalogTitle
	}
	if splTitle == "" {
		return nil
	}
	idx := strings.LastIndex(splTitle, titleSeparator)
	if idx < 0 {
		return &splTitle
	}
	title := strings.TrimSpace(splTitle[:idx])
	return &title
}

// CleanPublicationYear prefers the year of the catalog publication date.
// Otherwise it returns the smallest four digit run in the inventory text, so
// "1991, c1988." gives 1988 and "[2014]" gives 2014.
func CleanPublicationYear(splYear string, catalogDate *time.Time) *int32 {
	if catalogDate != nil {
		y := int32(catalogDate.Year())
		return &y
	}
	if splYear == "" {
		return nil
	}
	var min *int32
	for _, match := range yearRe.FindAllString(splYear, -1) {
		y, err := strconv.ParseInt(match, 10, 32)
		if err != nil {
			continue
		}
		if y32 := int32(y); min == nil || y32 < *min {
			min = &y32
		}
	}
	return min
}

// CleanPublisher trims whitespace and then trailing commas, which many
// inventory publishers carry.
func CleanPublisher(name string) *string {
	if name == "" {
		return nil
	}
	cleaned := strings.TrimRight(strings.TrimSpace(name), ",")
	return &cleaned
}

// FormatAuthor rewrites inventory authors like "Brand Miller, Janette, 1952-"
// into "Janette Brand Miller". The life years suffix is always dropped. The
// two name parts are only swapped when a suffix was found, or when both are
// short enough to plausibly be a personal name.
func FormatAuthor(name string) *string {
	if name == "" {
		return nil
	}
	noYears := authorYearsRe.ReplaceAllString(name, "")
	if len(noYears) != len(name) {
		parts := strings.Split(noYears, ", ")
		if len(parts) == 2 {
			swapped := parts[1] + " " + parts[0]
			return &swapped
		}
		// single names ("Avi, 1937-") and unknown formats
		return &noYears
	}

	parts := strings.Split(name, ", ")
	if len(parts) == 2 &&
		utf8.RuneCountInString(parts[0]) < maxSwapNameLen &&
		utf8.RuneCountInString(parts[1]) < maxSwapNameLen {
		swapped := parts[1] + " " + parts[0]
		return &swapped
	}
	return &name
}

// NormalizeKey returns the key used to detect duplicate entities. It is never
// shown to users. The text is lowercased, a trailing parenthetical is
// dropped, punctuation other than apostrophes becomes a space, apostrophes
// are removed and runs of whitespace collapse to one space.
//
// NormalizeKey(NormalizeKey(s)) == NormalizeKey(s) for every s.
func NormalizeKey(text string) string {
	if text == "" {
		return ""
	}
	// a Caser is stateful, so each call gets its own
	text = cases.Lower(language.Und).String(text)
	text = parentheticRe.ReplaceAllString(text, "")
	text = punctuationRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "'", "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Split breaks a multi-valued field on ", " the way the inventory and catalog
// list ISBNs, subjects and authors. An empty field has no values.
func Split(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, ", ")
}
