// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source reads delimited data. Each data line will be returned by a call to
// Record as a map[string]string where the keys are taken from the header -
// either the first line of each file, or the names given by WithHeader.
// Empty fields are left out of the map, so a lookup of a missing column and of
// an empty one both yield "". Source is safe for concurrent use.
//
// The Source takes care of retrying failed reads/downloads and making sure not
// to return duplicate data.
type Source struct {
	files       []*file
	maxRetries  int
	concurrency int
	limit       int
	header      []string
	required    []string

	started sync.Once
	records chan record
}

// NewSource creates a Source for CSV data. The source of the raw data can be
// set by using Options defined in this package. e.g.
//
// src := NewSource(WithURLs([]string{"myfile1.csv", "http://example.com/myfile2.csv"}))
func NewSource(options ...Option) *Source {
	src := &Source{
		records:     make(chan record, 100),
		maxRetries:  3,
		concurrency: 1,
	}

	for _, opt := range options {
		opt(src)
	}
	return src
}

// Option is a functional option to pass to NewSource.
type Option func(*Source)

// WithURLs returns an Option which adds the slice of URLs to the set of data
// sources a Source will read from. The URLs may be HTTP or local files.
func WithURLs(urls []string) Option {
	return func(s *Source) {
		for _, url := range urls {
			s.files = append(s.files, &file{OpenStringer: URLOpener(url)})
		}
	}
}

// WithOpenStringers returns an Option which adds the slice of OpenStringers to
// the set of data sources a Source will read from.
func WithOpenStringers(os []OpenStringer) Option {
	return func(s *Source) {
		for _, os := range os {
			s.files = append(s.files, &file{OpenStringer: os})
		}
	}
}

// WithMaxRetries returns an Option which sets the max number of retries per file on
// a Source.
func WithMaxRetries(maxRetries int) Option {
	return func(s *Source) {
		s.maxRetries = maxRetries
	}
}

// WithConcurrency returns an Option which sets the number of goroutines fetching
// files simultaneously. Records of different files interleave in an
// unspecified order when c is more than 1.
func WithConcurrency(c int) Option {
	return func(s *Source) {
		if c > 0 {
			s.concurrency = c
		}
	}
}

// WithLimit returns an Option which stops the Source after n data lines in
// total. Zero means no limit.
func WithLimit(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithHeader returns an Option for header-less files. The given names are used
// as keys and the first line of each file is treated as data.
func WithHeader(names []string) Option {
	return func(s *Source) {
		s.header = names
	}
}

// WithRequiredColumns returns an Option which makes the Source fail with an
// error for any file whose header lacks one of cols.
func WithRequiredColumns(cols ...string) Option {
	return func(s *Source) {
		s.required = cols
	}
}

// file tracks the use of an OpenStringer.
type file struct {
	OpenStringer
	line int // tracks how many data lines of this file we've returned.
}

// Opener is an interface to a resource which can be repeatedly Opened (and the
// returned ReadCloser can be subsequently read). Each call to Open should
// return a ReadCloser which reads from the beginning of the resource. In the
// case of an error while reading, Open will be called again to retry reading
// the entire resource.
type Opener interface {
	Open() (io.ReadCloser, error)
}

// OpenStringer is an Opener which also has a String method which should return
// the name of the resource being opened (e.g. a file or URL).
type OpenStringer interface {
	fmt.Stringer
	Opener
}

// URLOpener turns a URL or file name into an OpenStringer. URLs beginning
// with http are fetched with a GET, anything else is opened as a local file.
func URLOpener(url string) OpenStringer {
	return urlOpener(url)
}

type urlOpener string

func (u urlOpener) Open() (io.ReadCloser, error) {
	url := string(u)
	if strings.HasPrefix(url, "http") {
		resp, err := http.Get(url)
		if err != nil {
			return nil, errors.Wrap(err, "getting via http")
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.Errorf("getting via http: status %s", resp.Status)
		}
		return resp.Body, nil
	}
	f, err := os.Open(url)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (u urlOpener) String() string {
	return string(u)
}

// Decode wraps r so that a leading byte order mark is dropped and UTF-16
// content with a BOM is converted to UTF-8.
func Decode(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// Record returns a map[string]string representing a single data line of a
// CSV file. Each key is taken from the header, and each value is parsed from a
// row - empty fields are skipped. io.EOF is returned once every file has been
// read.
func (c *Source) Record() (map[string]string, error) {
	c.started.Do(func() { go c.getRecords() })
	rec, ok := <-c.records
	if !ok {
		return nil, io.EOF
	}
	return rec.rec, rec.err
}

// Each calls fn with every record of the Source. It stops at the first error,
// either from the Source or from fn.
func (c *Source) Each(fn func(rec map[string]string) error) error {
	for {
		rec, err := c.Record()
		if err == io.EOF {
			return nil
		} else if err != nil {
			c.drain()
			return err
		}
		if err := fn(rec); err != nil {
			c.drain()
			return err
		}
	}
}

// drain consumes the remaining records so the reading goroutines can exit.
func (c *Source) drain() {
	go func() {
		for range c.records {
		}
	}()
}

type record struct {
	rec map[string]string
	err error
}

func (c *Source) getRecords() {
	fileChan := make(chan *file, c.concurrency)
	budget := newBudget(c.limit)
	wg := sync.WaitGroup{}
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func() {
			for file := range fileChan {
				c.getRows(file, budget)
			}
			wg.Done()
		}()
	}
	for _, file := range c.files {
		fileChan <- file
	}
	close(fileChan)
	wg.Wait()
	close(c.records)
}

func (c *Source) getRows(file *file, b *budget) {
	var err error
	for try := 0; try < c.maxRetries; try++ {
		err = c.getRowTry(file, b)
		if err == nil {
			return
		}
	}
	c.records <- record{err: errors.Wrapf(err, "couldn't fetch '%s' - tried %d times, latest", file, c.maxRetries)}
}

func (c *Source) getRowTry(file *file, b *budget) error {
	content, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "opening")
	}
	defer content.Close()

	reader := csv.NewReader(Decode(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header := c.header
	if header == nil {
		header, err = reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrapf(err, "reading header of %s", file)
		}
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
		if err := validateHeader(header); err != nil {
			c.records <- record{err: errors.Wrapf(err, "validating header of %s", file)}
			return nil // error is permanent so we don't return to getRows for retry
		}
	}
	if err := requireColumns(header, c.required); err != nil {
		c.records <- record{err: errors.Wrapf(err, "validating header of %s", file)}
		return nil
	}

	// catch up to previous location
	for line := 0; line < file.line; line++ {
		if _, err := nextRow(reader); err != nil {
			return errors.Wrapf(err, "skipping to line %d of '%s'", file.line, file)
		}
	}
	for {
		row, err := nextRow(reader)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrapf(err, "reading '%s', line %d", file, file.line)
		}
		if !b.take() {
			return nil
		}
		file.line++
		c.records <- record{rec: parseRecord(header, row)}
	}
}

// nextRow returns the next row of r which is not blank.
func nextRow(r *csv.Reader) ([]string, error) {
	for {
		row, err := r.Read()
		if err != nil {
			return nil, err
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		return row, nil
	}
}

func parseRecord(header []string, row []string) map[string]string {
	ret := make(map[string]string, len(header))
	for i := 0; i < len(header) && i < len(row); i++ {
		if row[i] == "" {
			continue
		}
		ret[header[i]] = row[i]
	}
	return ret
}

func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}

// budget hands out at most n data lines across all files. A nil budget is
// unlimited.
type budget struct {
	mu   sync.Mutex
	left int
}

func newBudget(n int) *budget {
	if n <= 0 {
		return nil
	}
	return &budget{left: n}
}

func (b *budget) take() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.left == 0 {
		return false
	}
	b.left--
	return true
}

// requireColumns returns an error naming the first of cols which is not in
// header.
func requireColumns(header []string, cols []string) error {
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[h] = struct{}{}
	}
	for _, col := range cols {
		if _, ok := have[col]; !ok {
			return errors.Errorf("missing required column '%s'", col)
		}
	}
	return nil
}
