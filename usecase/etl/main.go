package etl

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/aws/s3"
	"github.com/shelfstar/shelfstar/catalog"
	"github.com/shelfstar/shelfstar/dimension"
	"github.com/shelfstar/shelfstar/fact"
	"github.com/shelfstar/shelfstar/load"
	"github.com/shelfstar/shelfstar/table"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Main holds the configuration and execution state for one run of the
// checkout star schema pipeline.
type Main struct {
	DictionaryPath string
	InventoryPath  string
	CheckoutsPath  string
	CatalogPath    string
	WeatherPath    string
	PublishersPath string
	Output         string
	AWSRegion      string
	IDStore        string
	LimitRecords   int
	Retries        int
	CollapseFacts  bool

	Logger *zap.Logger
	Stats  *shelfstar.SummaryStatter

	s3 *s3.Client
}

// NewMain returns a Main with default values.
func NewMain() *Main {
	return &Main{
		DictionaryPath: "data/library-collection-inventory-codes.csv",
		InventoryPath:  "data/library-collection-inventory.csv",
		CheckoutsPath:  "data/checkouts-by-title.csv",
		CatalogPath:    "data/books.csv",
		WeatherPath:    "data/weather.txt",
		PublishersPath: "data/publishers.csv",
		Output:         "out",
		AWSRegion:      "us-east-1",
		Retries:        3,

		Logger: zap.NewNop(),
		Stats:  shelfstar.NewSummaryStatter(),
	}
}

// sources holds everything read in the load stage.
type sources struct {
	dict       load.Dictionary
	inventory  []shelfstar.InventoryRecord
	checkouts  []shelfstar.CheckoutEvent
	catalog    []shelfstar.CatalogRecord
	weather    []shelfstar.WeatherReading
	publishers []shelfstar.PublisherMapEntry
}

// Run loads every source, builds the dimension, bridge and fact tables and
// commits them to Output. Nothing is committed unless every stage succeeds.
func (m *Main) Run(ctx context.Context) (*table.Manifest, error) {
	start := time.Now()
	if err := m.setupS3(); err != nil {
		return nil, err
	}
	src, err := m.load()
	if err != nil {
		return nil, err
	}

	books := catalog.Link(src.inventory, src.catalog)
	matched := catalog.Matched(books)
	m.Stats.Count("catalog.matched", int64(matched), 1)
	m.Stats.Count("catalog.unmatched", int64(len(books)-matched), 1)

	tr, closeTr, err := OpenIDStore(m.IDStore)
	if err != nil {
		return nil, shelfstar.NewStageError("dimension", m.IDStore, err)
	}
	defer func() {
		if cerr := closeTr(); cerr != nil {
			m.Logger.Warn("closing id store", zap.Error(cerr))
		}
	}()

	subjects, err := dimension.Subjects(books, tr)
	if err != nil {
		return nil, shelfstar.NewStageError("dimension", dimension.Subject, err)
	}
	authors, err := dimension.Authors(books, tr)
	if err != nil {
		return nil, shelfstar.NewStageError("dimension", dimension.Author, err)
	}
	publishers, err := dimension.Publishers(books, src.publishers, tr)
	if err != nil {
		return nil, shelfstar.NewStageError("dimension", dimension.Publisher, err)
	}
	m.Stats.Count("dimension.publisher.unmapped", int64(dimension.Unmapped(books, src.publishers)), 1)

	facts := fact.Build(src.checkouts, src.weather, publishers.ByBibNum(), fact.Options{Collapse: m.CollapseFacts})
	if dups := fact.Duplicates(facts); dups > 0 {
		m.Stats.Count("fact.duplicate_id", int64(dups), 1)
		m.Logger.Warn("fact ids are not unique", zap.Int("duplicates", dups))
	}

	manifest, err := m.write(ctx, subjects, authors, publishers, books, src.checkouts, facts)
	if err != nil {
		return nil, err
	}
	m.Stats.Timing("etl.run", time.Since(start), 1)
	m.Stats.Log(m.Logger, "run stats")
	m.Logger.Info("run committed",
		zap.String("run_id", manifest.RunID),
		zap.String("output", m.Output),
		zap.Int("books", len(books)),
		zap.Int("checkouts", len(facts)),
		zap.Duration("elapsed", time.Since(start)))
	return manifest, nil
}

// setupS3 creates an S3 client if any input or the output lives in S3.
func (m *Main) setupS3() (err error) {
	if m.s3 != nil {
		return nil
	}
	for _, loc := range []string{m.DictionaryPath, m.InventoryPath, m.CheckoutsPath,
		m.CatalogPath, m.WeatherPath, m.PublishersPath, m.Output} {
		if s3.IsURL(loc) {
			m.s3, err = s3.NewClient(m.AWSRegion)
			return errors.Wrap(err, "creating s3 client")
		}
	}
	return nil
}

// load reads the code dictionary first, since inventory and checkouts are
// filtered with it, and then every other source concurrently.
func (m *Main) load() (*sources, error) {
	opts := []load.LoaderOption{
		load.OptLoaderStatter(m.Stats),
		load.OptLoaderLogger(m.Logger),
		load.OptLoaderRetries(m.Retries),
	}
	if m.s3 != nil {
		opts = append(opts, load.OptLoaderS3(m.s3))
	}
	l := load.NewLoader(opts...)

	src := &sources{}
	var err error
	if src.dict, err = l.LoadCodeDictionary(m.DictionaryPath); err != nil {
		return nil, err
	}

	var eg errgroup.Group
	eg.Go(func() (err error) {
		src.inventory, err = l.LoadInventory(m.InventoryPath, src.dict, m.LimitRecords)
		return err
	})
	eg.Go(func() (err error) {
		src.checkouts, err = l.LoadCheckouts(m.CheckoutsPath, src.dict, m.LimitRecords)
		return err
	})
	eg.Go(func() (err error) {
		src.catalog, err = l.LoadCatalog(m.CatalogPath)
		return err
	})
	eg.Go(func() (err error) {
		src.weather, err = l.LoadWeather(m.WeatherPath)
		return err
	})
	eg.Go(func() (err error) {
		src.publishers, err = l.LoadPublisherMap(m.PublishersPath)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	m.Logger.Info("loaded sources",
		zap.Int("inventory", len(src.inventory)),
		zap.Int("checkouts", len(src.checkouts)),
		zap.Int("catalog", len(src.catalog)),
		zap.Int("weather", len(src.weather)),
		zap.Int("publishers", len(src.publishers)))
	return src, nil
}

func (m *Main) write(ctx context.Context, subjects, authors, publishers *dimension.Dimension,
	books []shelfstar.Book, checkouts []shelfstar.CheckoutEvent, facts []fact.Checkout) (manifest *table.Manifest, err error) {
	opts := []table.WriterOption{table.OptWriterLogger(m.Logger)}
	if m.s3 != nil {
		opts = append(opts, table.OptWriterUploader(m.s3))
	}
	w, err := table.NewWriter(m.Output, opts...)
	if err != nil {
		return nil, shelfstar.NewStageError("write", m.Output, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if derr := w.Discard(); derr != nil {
			m.Logger.Warn("discarding staged tables", zap.Error(derr))
		}
	}()

	dimSubject, brSubject := table.Subjects(subjects)
	dimAuthor, brAuthor := table.Authors(authors)
	stages := []struct {
		name  string
		stage func() error
	}{
		{table.DimSubject, func() error { return table.Stage(w, table.DimSubject, dimSubject) }},
		{table.BrBookSubject, func() error { return table.Stage(w, table.BrBookSubject, brSubject) }},
		{table.DimAuthor, func() error { return table.Stage(w, table.DimAuthor, dimAuthor) }},
		{table.BrBookAuthor, func() error { return table.Stage(w, table.BrBookAuthor, brAuthor) }},
		{table.DimPublisher, func() error { return table.Stage(w, table.DimPublisher, table.Publishers(publishers)) }},
		{table.DimBook, func() error { return table.Stage(w, table.DimBook, table.Books(dimension.Books(books))) }},
		{table.DimCheckoutTime, func() error {
			return table.Stage(w, table.DimCheckoutTime, table.CheckoutTimes(dimension.CheckoutTimes(checkouts)))
		}},
		{table.FactCheckout, func() error { return table.Stage(w, table.FactCheckout, table.Checkouts(facts)) }},
	}
	for _, s := range stages {
		if err = s.stage(); err != nil {
			return nil, shelfstar.NewStageError("write", s.name, err)
		}
	}
	manifest, err = w.Commit(ctx)
	if err != nil {
		return nil, shelfstar.NewStageError("write", m.Output, err)
	}
	return manifest, nil
}
