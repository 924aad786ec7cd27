package gazetteer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/aws/s3"
	"github.com/shelfstar/shelfstar/gazetteer"
	"github.com/shelfstar/shelfstar/load"
	"go.uber.org/zap"
)

// Main holds the configuration for seeding the publisher gazetteer index.
type Main struct {
	Source    string
	Hosts     []string
	Index     string
	AWSRegion string

	Logger *zap.Logger
}

// NewMain returns a Main with default values.
func NewMain() *Main {
	return &Main{
		Source:    "data/gazetteer.csv",
		Hosts:     []string{"http://localhost:9200"},
		Index:     gazetteer.DefaultIndex,
		AWSRegion: "us-east-1",
		Logger:    zap.NewNop(),
	}
}

// Run recreates the gazetteer index from Source and returns the number of
// names indexed.
func (m *Main) Run(ctx context.Context) (int, error) {
	start := time.Now()
	opts := []load.LoaderOption{load.OptLoaderLogger(m.Logger)}
	if s3.IsURL(m.Source) {
		client, err := s3.NewClient(m.AWSRegion)
		if err != nil {
			return 0, errors.Wrap(err, "creating s3 client")
		}
		opts = append(opts, load.OptLoaderS3(client))
	}
	names, err := load.NewLoader(opts...).LoadGazetteer(m.Source)
	if err != nil {
		return 0, err
	}

	c, err := gazetteer.NewClient(m.Hosts,
		gazetteer.OptClientIndex(m.Index),
		gazetteer.OptClientLogger(m.Logger))
	if err != nil {
		return 0, errors.Wrap(err, "connecting to search index")
	}
	defer c.Close()
	if err := c.Seed(ctx, names); err != nil {
		return 0, shelfstar.NewStageError("seed gazetteer", m.Index, err)
	}
	m.Logger.Info("seeded gazetteer",
		zap.String("index", m.Index),
		zap.Int("publishers", len(names)),
		zap.Duration("elapsed", time.Since(start)))
	return len(names), nil
}
