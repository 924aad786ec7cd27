package publishers

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/aws/s3"
	"github.com/shelfstar/shelfstar/gazetteer"
	"github.com/shelfstar/shelfstar/load"
	"github.com/shelfstar/shelfstar/resolver"
	"go.uber.org/zap"
)

// Main holds the options for resolving inventory publishers against the
// gazetteer and writing the publisher map.
type Main struct {
	DictionaryPath string   `help:"Item type code dictionary (path, http(s) or s3 URL)."`
	InventoryPath  string   `help:"Library inventory (path, http(s) or s3 URL)."`
	Output         string   `help:"Where to write the publisher map CSV (path or s3 URL)."`
	Hosts          []string `help:"Comma separated list of Elasticsearch addresses."`
	Index          string   `help:"Gazetteer index name."`
	Workers        int      `help:"Number of concurrent resolver workers."`
	Threshold      int      `help:"Lowest similarity score (0-100) accepted as a match."`
	Candidates     int      `help:"Number of search hits scored per publisher."`
	LimitRecords   int      `help:"Only read this many inventory rows. 0 means all."`
	AWSRegion      string   `help:"AWS region for s3 inputs and output."`

	Logger *zap.Logger               `flag:"-"`
	Stats  *shelfstar.SummaryStatter `flag:"-"`
	Dial   resolver.Dialer           `flag:"-"`
}

// NewMain returns a new Main with default values.
func NewMain() *Main {
	return &Main{
		DictionaryPath: "data/library-collection-inventory-codes.csv",
		InventoryPath:  "data/library-collection-inventory.csv",
		Output:         "data/publishers.csv",
		Hosts:          []string{"http://localhost:9200"},
		Index:          gazetteer.DefaultIndex,
		Workers:        resolver.DefaultWorkers,
		Threshold:      resolver.DefaultThreshold,
		Candidates:     resolver.DefaultCandidates,
		AWSRegion:      "us-east-1",

		Logger: zap.NewNop(),
		Stats:  shelfstar.NewSummaryStatter(),
	}
}

// Run reads the publishers of every print book, resolves them and writes the
// map. The previous map is only replaced once the new one is complete.
func (m *Main) Run(ctx context.Context) ([]shelfstar.PublisherMapEntry, error) {
	start := time.Now()
	var client *s3.Client
	if s3.IsURL(m.DictionaryPath) || s3.IsURL(m.InventoryPath) || s3.IsURL(m.Output) {
		var err error
		if client, err = s3.NewClient(m.AWSRegion); err != nil {
			return nil, errors.Wrap(err, "creating s3 client")
		}
	}

	opts := []load.LoaderOption{load.OptLoaderLogger(m.Logger), load.OptLoaderStatter(m.Stats)}
	if client != nil {
		opts = append(opts, load.OptLoaderS3(client))
	}
	l := load.NewLoader(opts...)
	dict, err := l.LoadCodeDictionary(m.DictionaryPath)
	if err != nil {
		return nil, err
	}
	raw, err := l.LoadInventoryPublishers(m.InventoryPath, dict, m.LimitRecords)
	if err != nil {
		return nil, err
	}

	r := resolver.NewResolver(m.dialer())
	r.Workers = m.Workers
	r.Threshold = m.Threshold
	r.Candidates = m.Candidates
	r.Logger = m.Logger
	r.Stats = m.Stats
	entries, err := r.Resolve(ctx, raw)
	if err != nil {
		return nil, shelfstar.NewStageError("resolve publishers", m.Index, err)
	}

	if err := m.write(ctx, client, entries); err != nil {
		return nil, shelfstar.NewStageError("write publishers", m.Output, err)
	}
	m.Stats.Log(m.Logger, "resolver stats")
	m.Logger.Info("wrote publisher map",
		zap.String("output", m.Output),
		zap.Int("entries", len(entries)),
		zap.Duration("elapsed", time.Since(start)))
	return entries, nil
}

func (m *Main) dialer() resolver.Dialer {
	if m.Dial != nil {
		return m.Dial
	}
	return func(ctx context.Context) (resolver.Searcher, error) {
		c, err := gazetteer.NewClient(m.Hosts,
			gazetteer.OptClientIndex(m.Index),
			gazetteer.OptClientLogger(m.Logger))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// write stages the map in a temporary file and then renames or uploads it.
func (m *Main) write(ctx context.Context, client *s3.Client, entries []shelfstar.PublisherMapEntry) (err error) {
	dir := os.TempDir()
	if !s3.IsURL(m.Output) {
		dir = filepath.Dir(m.Output)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}
	f, err := os.CreateTemp(dir, ".publishers-*.csv")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() {
		if err != nil {
			os.Remove(f.Name())
		}
	}()
	if err = resolver.WriteMap(f, entries); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if s3.IsURL(m.Output) {
		defer os.Remove(f.Name())
		return client.Upload(ctx, f.Name(), m.Output)
	}
	return errors.Wrap(os.Rename(f.Name(), m.Output), "renaming publisher map")
}
