// Package boltdb provides a shelfstar.Translator which keeps the key/id
// mapping of every dimension in a single bolt file, so surrogate ids stay the
// same across runs.
package boltdb

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
)

var _ shelfstar.Translator = &Translator{}

var (
	idBucket  = []byte("idKey")
	keyBucket = []byte("valKey")
)

// Translator is a shelfstar.Translator which stores the two way key/id
// mapping in boltdb. Each dimension gets a nested bucket on each side.
type Translator struct {
	Db   *bolt.DB
	dmu  sync.RWMutex
	dims map[string]struct{}
}

// Close syncs and closes the underlying boltdb.
func (bt *Translator) Close() error {
	err := bt.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return bt.Db.Close()
}

// NewTranslator opens or creates the bolt file at filename.
func NewTranslator(filename string, dimensions ...string) (bt *Translator, err error) {
	bt = &Translator{
		dims: make(map[string]struct{}),
	}
	bt.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = bt.Db.Update(func(tx *bolt.Tx) error {
		ib, err := tx.CreateBucketIfNotExists(idBucket)
		if err != nil {
			return errors.Wrap(err, "creating idKey bucket")
		}
		kb, err := tx.CreateBucketIfNotExists(keyBucket)
		if err != nil {
			return errors.Wrap(err, "creating valKey bucket")
		}
		for _, dim := range dimensions {
			if err := bt.addDimension(ib, kb, dim); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bt.Db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return bt, nil
}

func (bt *Translator) addDimension(ib, kb *bolt.Bucket, dim string) error {
	if _, err := ib.CreateBucketIfNotExists([]byte(dim)); err != nil {
		return errors.Wrap(err, "adding "+dim+" to id bucket")
	}
	if _, err := kb.CreateBucketIfNotExists([]byte(dim)); err != nil {
		return errors.Wrap(err, "adding "+dim+" to key bucket")
	}
	bt.dmu.Lock()
	bt.dims[dim] = struct{}{}
	bt.dmu.Unlock()
	return nil
}

func (bt *Translator) ensureDimension(dim string) error {
	bt.dmu.RLock()
	_, ok := bt.dims[dim]
	bt.dmu.RUnlock()
	if ok {
		return nil
	}
	return bt.Db.Update(func(tx *bolt.Tx) error {
		return bt.addDimension(tx.Bucket(idBucket), tx.Bucket(keyBucket), dim)
	})
}

// Get returns the key previously mapped to id by GetID.
func (bt *Translator) Get(dimension string, id uint64) (key string, err error) {
	err = bt.Db.View(func(tx *bolt.Tx) error {
		dib := tx.Bucket(idBucket).Bucket([]byte(dimension))
		if dib == nil {
			return errors.Errorf("unknown dimension '%v'", dimension)
		}
		val := dib.Get(idBytes(id))
		if val == nil {
			return errors.Errorf("unknown id %d in dimension '%v'", id, dimension)
		}
		key = string(val)
		return nil
	})
	return key, err
}

// GetID maps key to an id, allocating the next one from the dimension's
// sequence if key has not been seen before.
func (bt *Translator) GetID(dimension string, key string) (id uint64, err error) {
	if err := bt.ensureDimension(dimension); err != nil {
		return 0, errors.Wrap(err, "adding dimension in GetID")
	}
	if id, ok, err := bt.lookup(dimension, key); err != nil || ok {
		return id, err
	}

	// two callers can both miss the lookup above, so check again inside
	// the serialized write transaction.
	err = bt.Db.Update(func(tx *bolt.Tx) error {
		dib := tx.Bucket(idBucket).Bucket([]byte(dimension))
		dkb := tx.Bucket(keyBucket).Bucket([]byte(dimension))
		if existing := dkb.Get([]byte(key)); len(existing) == 8 {
			id = binary.BigEndian.Uint64(existing)
			return nil
		}
		seq, err := dib.NextSequence()
		if err != nil {
			return errors.Wrap(err, "getting next sequence")
		}
		// sequences start at 1, ids at 0
		id = seq - 1
		if err := dib.Put(idBytes(id), []byte(key)); err != nil {
			return errors.Wrap(err, "inserting into idKey bucket")
		}
		if err := dkb.Put([]byte(key), idBytes(id)); err != nil {
			return errors.Wrap(err, "inserting into valKey bucket")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (bt *Translator) lookup(dimension, key string) (id uint64, ok bool, err error) {
	err = bt.Db.View(func(tx *bolt.Tx) error {
		ret := tx.Bucket(keyBucket).Bucket([]byte(dimension)).Get([]byte(key))
		if len(ret) == 8 {
			id, ok = binary.BigEndian.Uint64(ret), true
		}
		return nil
	})
	return id, ok, err
}

func idBytes(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}
