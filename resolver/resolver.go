// Package resolver maps raw publisher names to names from an official
// gazetteer. Each raw name is looked up in a full text index of the
// gazetteer and the most similar candidate is kept if it scores high enough.
package resolver

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Defaults used by NewResolver.
const (
	DefaultWorkers    = 6
	DefaultThreshold  = 89
	DefaultCandidates = 10
)

// Searcher queries a full text index of the gazetteer, returning at most size
// names ranked by relevance.
type Searcher interface {
	Search(ctx context.Context, text string, size int) ([]string, error)
	Close() error
}

// Dialer opens a Searcher. Every worker dials its own.
type Dialer func(ctx context.Context) (Searcher, error)

// Resolver resolves raw publishers with a fixed pool of workers.
type Resolver struct {
	Workers    int
	Threshold  int
	Candidates int
	Scorer     Scorer
	Dial       Dialer

	Logger *zap.Logger
	Stats  shelfstar.Statter
}

// NewResolver returns a Resolver with the default settings.
func NewResolver(dial Dialer) *Resolver {
	return &Resolver{
		Workers:    DefaultWorkers,
		Threshold:  DefaultThreshold,
		Candidates: DefaultCandidates,
		Scorer:     WeightedRatio,
		Dial:       dial,
		Logger:     zap.NewNop(),
		Stats:      shelfstar.NopStatter{},
	}
}

// Resolve returns a map entry for every publisher with an acceptable match,
// ordered by raw publisher. Duplicate and empty publishers are ignored.
// Publishers are dealt to the workers round robin, in sorted order. A failed
// lookup only skips its publisher; failing to dial aborts the whole run.
func (r *Resolver) Resolve(ctx context.Context, publishers []string) ([]shelfstar.PublisherMapEntry, error) {
	if r.Dial == nil {
		return nil, errors.New("resolver has no dialer")
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	distinct := distinctSorted(publishers)
	batches := make([][]string, workers)
	for i, p := range distinct {
		batches[i%workers] = append(batches[i%workers], p)
	}

	start := time.Now()
	results := make([][]shelfstar.PublisherMapEntry, workers)
	eg, ctx := errgroup.WithContext(ctx)
	for w := range batches {
		w := w
		if len(batches[w]) == 0 {
			continue
		}
		eg.Go(func() (err error) {
			results[w], err = r.work(ctx, w, batches[w])
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var entries []shelfstar.PublisherMapEntry
	for _, res := range results {
		entries = append(entries, res...)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RawPublisher < entries[j].RawPublisher
	})
	r.stats().Timing("resolver.resolve", time.Since(start), 1)
	r.logger().Info("resolved publishers",
		zap.Int("publishers", len(distinct)),
		zap.Int("matched", len(entries)),
		zap.Int("workers", workers))
	return entries, nil
}

func (r *Resolver) work(ctx context.Context, worker int, batch []string) (entries []shelfstar.PublisherMapEntry, err error) {
	log := r.logger().With(zap.Int("worker", worker))
	s, err := r.Dial(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "worker %d dialing search index", worker)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Warn("closing search index connection", zap.Error(cerr))
		}
	}()

	size := r.Candidates
	if size <= 0 {
		size = DefaultCandidates
	}
	for _, publisher := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates, err := s.Search(ctx, publisher, size)
		if err != nil {
			log.Warn("skipping publisher", zap.String("publisher", publisher), zap.Error(err))
			r.stats().Count("resolver.lookup_failed", 1, 1)
			continue
		}
		official, score, ok := r.best(publisher, candidates)
		if !ok || score < r.Threshold {
			r.stats().Count("resolver.unmatched", 1, 1)
			continue
		}
		log.Debug("matched publisher", zap.String("publisher", publisher), zap.String("official", official), zap.Int("score", score))
		entries = append(entries, shelfstar.PublisherMapEntry{RawPublisher: publisher, OfficialPublisher: official})
	}
	return entries, nil
}

// best returns the highest scoring candidate. The earliest candidate wins a
// tie.
func (r *Resolver) best(query string, candidates []string) (string, int, bool) {
	scorer := r.Scorer
	if scorer == nil {
		scorer = WeightedRatio
	}
	bestScore := -1
	var best string
	for _, c := range candidates {
		if score := scorer(query, c); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore, bestScore >= 0
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Resolver) stats() shelfstar.Statter {
	if r.Stats == nil {
		return shelfstar.NopStatter{}
	}
	return r.Stats
}

func distinctSorted(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// WriteMap writes entries as header-less two column CSV, the format read
// back by the publisher map loader.
func WriteMap(w io.Writer, entries []shelfstar.PublisherMapEntry) error {
	cw := csv.NewWriter(w)
	for _, e := range entries {
		if err := cw.Write([]string{e.RawPublisher, e.OfficialPublisher}); err != nil {
			return errors.Wrap(err, "writing publisher map")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing publisher map")
}
