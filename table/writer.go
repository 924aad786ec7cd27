// Package table writes the tables of a run as Parquet files. Tables are
// staged first and only replace the previous output once every table of the
// run has been staged, so a failed run leaves the last good output alone.
package table

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar/aws/s3"
	"go.uber.org/zap"
)

// ManifestName is the name of the file describing the last committed run.
const ManifestName = "_manifest.json"

// Uploader copies a local file to a remote location.
type Uploader interface {
	Upload(ctx context.Context, path, loc string) error
}

// Manifest describes a committed run.
type Manifest struct {
	RunID     string        `json:"run_id"`
	Started   time.Time     `json:"started"`
	Committed time.Time     `json:"committed"`
	Tables    []TableStatus `json:"tables"`
}

// TableStatus describes one committed table.
type TableStatus struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
	Path string `json:"path"`
}

// Writer stages tables and commits them to an output root, which is a local
// directory or an s3://bucket/prefix URL. A Writer is not safe for concurrent
// use.
type Writer struct {
	root     string
	staging  string
	uploader Uploader
	log      *zap.Logger

	runID   uuid.UUID
	started time.Time
	staged  map[string]int
	done    bool
}

// WriterOption configures a Writer.
type WriterOption func(w *Writer)

// OptWriterUploader sets the Uploader used for s3:// output roots.
func OptWriterUploader(u Uploader) WriterOption {
	return func(w *Writer) {
		w.uploader = u
	}
}

// OptWriterLogger sets the logger.
func OptWriterLogger(log *zap.Logger) WriterOption {
	return func(w *Writer) {
		w.log = log
	}
}

// NewWriter returns a Writer for root. Local roots are created if needed and
// staging happens next to them, so commits are renames on one file system.
func NewWriter(root string, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		root:    root,
		log:     zap.NewNop(),
		runID:   uuid.New(),
		started: time.Now().UTC(),
		staged:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}

	var err error
	if s3.IsURL(root) {
		if w.uploader == nil {
			return nil, errors.Errorf("no uploader for output root '%s'", root)
		}
		if _, _, err = s3.ParseURL(root); err != nil {
			return nil, errors.Wrap(err, "parsing output root")
		}
		w.staging, err = os.MkdirTemp("", "shelfstar-staging-")
	} else {
		if err = os.MkdirAll(root, 0755); err != nil {
			return nil, errors.Wrap(err, "creating output root")
		}
		w.staging, err = os.MkdirTemp(root, ".staging-")
	}
	if err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}
	w.log.Debug("staging run", zap.String("run_id", w.runID.String()), zap.String("staging", w.staging))
	return w, nil
}

// RunID identifies the run in the manifest.
func (w *Writer) RunID() string {
	return w.runID.String()
}

// Stage writes rows as the staged version of the named table.
func Stage[T any](w *Writer, name string, rows []T) error {
	if w.done {
		return errors.New("writer already committed or discarded")
	}
	f, err := os.Create(filepath.Join(w.staging, fileName(name)))
	if err != nil {
		return errors.Wrapf(err, "creating staged %s", name)
	}
	pw := parquet.NewGenericWriter[T](f)
	if _, err := pw.Write(rows); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	if err := pw.Close(); err != nil {
		f.Close()
		return errors.Wrapf(err, "closing parquet writer for %s", name)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing staged %s", name)
	}
	w.staged[name] = len(rows)
	w.log.Debug("staged table", zap.String("table", name), zap.Int("rows", len(rows)))
	return nil
}

// Commit moves every staged table to the output root and then writes the
// manifest. The staging directory is removed afterwards.
//
// Each table is replaced atomically, but the set of tables is not. Local
// destinations are checked before the first rename, so the usual failures
// leave the previous run untouched. If a rename or upload still fails part
// way, the tables already moved belong to the new run while the manifest
// keeps naming the previous one. Readers should trust the manifest.
func (w *Writer) Commit(ctx context.Context) (*Manifest, error) {
	if w.done {
		return nil, errors.New("writer already committed or discarded")
	}
	defer w.cleanup()

	names := make([]string, 0, len(w.staged))
	for name := range w.staged {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := w.checkDestinations(names); err != nil {
		return nil, err
	}

	m := &Manifest{RunID: w.runID.String(), Started: w.started}
	for _, name := range names {
		dest := w.location(fileName(name))
		if err := w.publish(ctx, filepath.Join(w.staging, fileName(name)), dest); err != nil {
			return nil, errors.Wrapf(err, "committing %s", name)
		}
		m.Tables = append(m.Tables, TableStatus{Name: name, Rows: w.staged[name], Path: dest})
	}
	m.Committed = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding manifest")
	}
	manifest := filepath.Join(w.staging, ManifestName)
	if err := os.WriteFile(manifest, data, 0644); err != nil {
		return nil, errors.Wrap(err, "writing manifest")
	}
	if err := w.publish(ctx, manifest, w.location(ManifestName)); err != nil {
		return nil, errors.Wrap(err, "committing manifest")
	}
	w.log.Info("committed run", zap.String("run_id", m.RunID), zap.Int("tables", len(m.Tables)), zap.String("root", w.root))
	return m, nil
}

// Discard drops everything staged so far.
func (w *Writer) Discard() error {
	if w.done {
		return nil
	}
	return w.cleanup()
}

func (w *Writer) cleanup() error {
	w.done = true
	return errors.Wrap(os.RemoveAll(w.staging), "removing staging directory")
}

func (w *Writer) location(name string) string {
	if s3.IsURL(w.root) {
		return s3.Scheme + path.Join(strings.TrimPrefix(w.root, s3.Scheme), name)
	}
	return filepath.Join(w.root, name)
}

// checkDestinations fails if a local table or manifest destination cannot be
// replaced by a rename.
func (w *Writer) checkDestinations(names []string) error {
	if s3.IsURL(w.root) {
		return nil
	}
	dests := make([]string, 0, len(names)+1)
	for _, name := range names {
		dests = append(dests, w.location(fileName(name)))
	}
	dests = append(dests, w.location(ManifestName))
	for _, dest := range dests {
		fi, err := os.Lstat(dest)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "checking %s", dest)
		}
		if fi.IsDir() {
			return errors.Errorf("cannot replace %s: is a directory", dest)
		}
	}
	return nil
}

func (w *Writer) publish(ctx context.Context, src, dest string) error {
	if s3.IsURL(w.root) {
		return w.uploader.Upload(ctx, src, dest)
	}
	return os.Rename(src, dest)
}

func fileName(table string) string {
	return table + ".parquet"
}
