package etl

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/shelfstar/shelfstar/dimension"
	"github.com/shelfstar/shelfstar/idstore/boltdb"
	"github.com/shelfstar/shelfstar/idstore/leveldb"
)

var dimensions = []string{dimension.Subject, dimension.Author, dimension.Publisher}

// OpenIDStore returns the Translator described by store, along with a
// function which releases it. An empty store means an in-memory translator,
// so ids only hold for a single run. Otherwise store is "bolt:<file>" or
// "leveldb:<dir>" and ids persist between runs.
func OpenIDStore(store string) (shelfstar.Translator, func() error, error) {
	if store == "" {
		return shelfstar.NewMapTranslator(), func() error { return nil }, nil
	}
	kind, loc, ok := strings.Cut(store, ":")
	if !ok || loc == "" {
		return nil, nil, errors.Errorf("id store '%s' should look like bolt:<file> or leveldb:<dir>", store)
	}
	switch kind {
	case "bolt":
		bt, err := boltdb.NewTranslator(loc, dimensions...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening bolt id store")
		}
		return bt, bt.Close, nil
	case "leveldb":
		lt, err := leveldb.NewTranslator(loc, dimensions...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening leveldb id store")
		}
		return lt, lt.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown id store kind '%s'", kind)
	}
}
