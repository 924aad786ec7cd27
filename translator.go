package shelfstar

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Translator describes the functionality for mapping the normalization keys of
// a given dimension to surrogate ids and back. Implementations should be
// threadsafe and generate ids monotonically, so that two distinct keys never
// share an id within a dimension.
type Translator interface {
	Get(dimension string, id uint64) (string, error)
	GetID(dimension string, key string) (uint64, error)
}

// DimensionTranslator works like a Translator, but the methods don't take
// dimensions as arguments. Typically a Translator will include a
// DimensionTranslator for each dimension.
type DimensionTranslator interface {
	Get(id uint64) (string, error)
	GetID(key string) (uint64, error)
}

// MapTranslator is an in-memory implementation of Translator using maps.
type MapTranslator struct {
	lock       sync.RWMutex
	dimensions map[string]*MapDimensionTranslator
}

// NewMapTranslator creates a new MapTranslator.
func NewMapTranslator() *MapTranslator {
	return &MapTranslator{
		dimensions: make(map[string]*MapDimensionTranslator),
	}
}

func (m *MapTranslator) getDimensionTranslator(dimension string) *MapDimensionTranslator {
	m.lock.RLock()
	if mt, ok := m.dimensions[dimension]; ok {
		m.lock.RUnlock()
		return mt
	}
	m.lock.RUnlock()
	m.lock.Lock()
	defer m.lock.Unlock()
	if mt, ok := m.dimensions[dimension]; ok {
		return mt
	}
	m.dimensions[dimension] = NewMapDimensionTranslator()
	return m.dimensions[dimension]
}

// Get returns the key mapped to the given id in the given dimension.
func (m *MapTranslator) Get(dimension string, id uint64) (string, error) {
	key, err := m.getDimensionTranslator(dimension).Get(id)
	if err != nil {
		return "", errors.Wrapf(err, "dimension '%v', id %v", dimension, id)
	}
	return key, nil
}

// GetID returns the surrogate id associated with the given key in the given
// dimension. It allocates a new ID if the key is not found.
func (m *MapTranslator) GetID(dimension string, key string) (id uint64, err error) {
	return m.getDimensionTranslator(dimension).GetID(key)
}

// MapDimensionTranslator is an in-memory implementation of DimensionTranslator
// using sync.Map and a slice.
type MapDimensionTranslator struct {
	m sync.Map

	n *Nexter

	l sync.RWMutex
	s []string
}

// NewMapDimensionTranslator creates a new MapDimensionTranslator.
func NewMapDimensionTranslator() *MapDimensionTranslator {
	return &MapDimensionTranslator{
		n: NewNexter(),
		s: make([]string, 0),
	}
}

// Get returns the key mapped to the given id.
func (m *MapDimensionTranslator) Get(id uint64) (string, error) {
	m.l.RLock()
	defer m.l.RUnlock()
	if uint64(len(m.s)) <= id {
		return "", errors.Errorf("requested unknown id %d in MapTranslator", id)
	}
	return m.s[id], nil
}

// GetID returns the surrogate id associated with the given key. It allocates a
// new ID if the key is not found.
func (m *MapDimensionTranslator) GetID(key string) (id uint64, err error) {
	if idv, ok := m.m.Load(key); ok {
		if id, ok = idv.(uint64); !ok {
			return 0, errors.Errorf("Got non uint64 value back from MapTranslator: %v", idv)
		}
		return id, nil
	}
	m.l.Lock()
	defer m.l.Unlock()
	if idv, ok := m.m.Load(key); ok {
		if id, ok = idv.(uint64); !ok {
			return 0, errors.Errorf("Got non uint64 value back from MapTranslator: %v", idv)
		}
		return id, nil
	}
	nextid := m.n.Next()
	m.s = append(m.s, key)
	if uint64(len(m.s)) != nextid+1 {
		panic(fmt.Sprintf("unexpected length of slice, nextid: %d, len: %d", nextid, len(m.s)))
	}
	m.m.Store(key, nextid)
	return nextid, nil
}
