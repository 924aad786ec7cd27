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

// Package leveldb provides a shelfstar.Translator which keeps the key/id
// mapping of each dimension in a pair of leveldb databases.
package leveldb

import (
	"encoding/binary"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shelfstar/shelfstar"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var _ shelfstar.Translator = &Translator{}

// Translator is a shelfstar.Translator which stores the two way key/id mapping
// in leveldb.
type Translator struct {
	lock    sync.RWMutex
	dirname string
	dims    map[string]*DimensionTranslator
}

// DimensionTranslator is a shelfstar.DimensionTranslator which uses leveldb.
type DimensionTranslator struct {
	lock   valueLocker
	idMap  *leveldb.DB
	keyMap *leveldb.DB
	nexter *shelfstar.Nexter
}

type errorList []error

func (errs errorList) Error() string {
	errstrings := make([]string, len(errs))
	for i, err := range errs {
		errstrings[i] = err.Error()
	}
	return strings.Join(errstrings, "; ")
}

// Close closes all of the underlying leveldb instances.
func (lt *Translator) Close() error {
	lt.lock.Lock()
	defer lt.lock.Unlock()
	errs := make(errorList, 0)
	for d, ldt := range lt.dims {
		err := ldt.Close()
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "dimension : %v", d))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Close closes the two leveldbs used by the DimensionTranslator.
func (ldt *DimensionTranslator) Close() error {
	errs := make(errorList, 0)
	err := ldt.idMap.Close()
	if err != nil {
		errs = append(errs, errors.Wrap(err, "closing idMap"))
	}
	err = ldt.keyMap.Close()
	if err != nil {
		errs = append(errs, errors.Wrap(err, "closing keyMap"))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// getDimensionTranslator retrieves or creates a DimensionTranslator for the
// given dimension.
func (lt *Translator) getDimensionTranslator(dimension string) (*DimensionTranslator, error) {
	lt.lock.RLock()
	if tr, ok := lt.dims[dimension]; ok {
		lt.lock.RUnlock()
		return tr, nil
	}
	lt.lock.RUnlock()
	lt.lock.Lock()
	defer lt.lock.Unlock()
	if tr, ok := lt.dims[dimension]; ok {
		return tr, nil
	}
	ldt, err := NewDimensionTranslator(lt.dirname, dimension)
	if err != nil {
		return nil, errors.Wrap(err, "creating new DimensionTranslator")
	}
	lt.dims[dimension] = ldt
	return ldt, nil
}

// NewDimensionTranslator opens or creates the leveldbs of a dimension under
// dirname. New ids continue after the highest id already stored.
func NewDimensionTranslator(dirname string, dimension string) (*DimensionTranslator, error) {
	err := os.MkdirAll(dirname, 0700)
	if err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	ldt := &DimensionTranslator{
		lock: newBucketVLock(),
	}
	idPath := filepath.Join(dirname, dimension+"-id")
	ldt.idMap, err = leveldb.OpenFile(idPath, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", idPath)
	}
	keyPath := filepath.Join(dirname, dimension+"-val")
	ldt.keyMap, err = leveldb.OpenFile(keyPath, &opt.Options{})
	if err != nil {
		ldt.idMap.Close()
		return nil, errors.Wrapf(err, "opening leveldb at %v", keyPath)
	}

	// ids are stored big endian, so the last key is the highest id
	var next uint64
	iter := ldt.idMap.NewIterator(nil, nil)
	if iter.Last() {
		next = binary.BigEndian.Uint64(iter.Key()) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		ldt.Close()
		return nil, errors.Wrap(err, "finding highest id")
	}
	ldt.nexter = shelfstar.NewNexter(shelfstar.NexterStartFrom(next))
	return ldt, nil
}

// NewTranslator gets a new Translator.
func NewTranslator(dirname string, dimensions ...string) (lt *Translator, err error) {
	lt = &Translator{
		dirname: dirname,
		dims:    make(map[string]*DimensionTranslator),
	}
	for _, dim := range dimensions {
		ldt, err := NewDimensionTranslator(dirname, dim)
		if err != nil {
			lt.Close()
			return nil, errors.Wrap(err, "making DimensionTranslator")
		}
		lt.dims[dim] = ldt
	}
	return lt, nil
}

// Get returns the key mapped to the given id in the given dimension.
func (lt *Translator) Get(dimension string, id uint64) (string, error) {
	ldt, err := lt.getDimensionTranslator(dimension)
	if err != nil {
		return "", errors.Wrap(err, "getting dimension translator")
	}
	return ldt.Get(id)
}

// Get returns the key mapped to the given id.
func (ldt *DimensionTranslator) Get(id uint64) (string, error) {
	data, err := ldt.idMap.Get(idBytes(id), nil)
	if err != nil {
		return "", errors.Wrapf(err, "fetching id %d from idMap", id)
	}
	return string(data), nil
}

// GetID returns the id associated with the given key in the given dimension.
// It allocates a new ID if the key is not found.
func (lt *Translator) GetID(dimension string, key string) (uint64, error) {
	ldt, err := lt.getDimensionTranslator(dimension)
	if err != nil {
		return 0, errors.Wrap(err, "getting dimension translator")
	}
	return ldt.GetID(key)
}

// GetID returns the id associated with the given key. It allocates a new ID
// if the key is not found.
func (ldt *DimensionTranslator) GetID(key string) (id uint64, err error) {
	keyBytes := []byte(key)

	// most keys are already mapped on a rerun
	data, err := ldt.keyMap.Get(keyBytes, &opt.ReadOptions{})
	if err != nil && err != leveldb.ErrNotFound {
		return 0, errors.Wrap(err, "trying to read key map")
	} else if err == nil {
		return binary.BigEndian.Uint64(data), nil
	}

	ldt.lock.Lock(keyBytes)
	defer ldt.lock.Unlock(keyBytes)
	// re-read after locking
	data, err = ldt.keyMap.Get(keyBytes, &opt.ReadOptions{})
	if err != nil && err != leveldb.ErrNotFound {
		return 0, errors.Wrap(err, "trying to read key map")
	} else if err == nil {
		return binary.BigEndian.Uint64(data), nil
	}

	id = ldt.nexter.Next()
	err = ldt.idMap.Put(idBytes(id), keyBytes, &opt.WriteOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "putting new id into idmap")
	}
	err = ldt.keyMap.Put(keyBytes, idBytes(id), &opt.WriteOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "putting new id into keymap")
	}
	return id, nil
}

func idBytes(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

type valueLocker interface {
	Lock(val []byte)
	Unlock(val []byte)
}

type bucketVLock struct {
	ms []sync.Mutex
}

func newBucketVLock() bucketVLock {
	return bucketVLock{
		ms: make([]sync.Mutex, 1000),
	}
}

func (b bucketVLock) Lock(val []byte) {
	hsh := fnv.New32a()
	hsh.Write(val) // never returns error for hash
	b.ms[hsh.Sum32()%1000].Lock()
}

func (b bucketVLock) Unlock(val []byte) {
	hsh := fnv.New32a()
	hsh.Write(val) // never returns error for hash
	b.ms[hsh.Sum32()%1000].Unlock()
}
