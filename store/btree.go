package store

import (
	"bytes"

	"github.com/google/btree"
	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
)

// degree is the branching factor of all btrees created by this package.
const degree = 16

// item is a single key/value pair held by a btree. In a cache wrap an
// item with deleted set shadows the backing store entry.
type item struct {
	key     []byte
	value   []byte
	deleted bool
}

func lessItem(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// MemStore is a btree-backed KVStore implementation that holds all data
// in memory. There is no persistence. It is the canonical store for
// tests and for hosts that commit state elsewhere.
type MemStore struct {
	bt *btree.BTreeG[item]
}

var _ multident.CacheableKVStore = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		bt: btree.NewG(degree, lessItem),
	}
}

// Get returns nil if the key was not found.
func (m *MemStore) Get(key []byte) ([]byte, error) {
	assertValidKey(key)
	it, ok := m.bt.Get(item{key: key})
	if !ok {
		return nil, nil
	}
	return it.value, nil
}

// Has checks for existence of the key.
func (m *MemStore) Has(key []byte) (bool, error) {
	assertValidKey(key)
	_, ok := m.bt.Get(item{key: key})
	return ok, nil
}

// Set stores the value under the key.
func (m *MemStore) Set(key, value []byte) error {
	assertValidKey(key)
	assertValidValue(value)
	m.bt.ReplaceOrInsert(item{key: key, value: value})
	return nil
}

// Delete removes the key. Removing a missing key is a noop.
func (m *MemStore) Delete(key []byte) error {
	assertValidKey(key)
	m.bt.Delete(item{key: key})
	return nil
}

// Iterator over a domain of keys in ascending order.
func (m *MemStore) Iterator(start, end []byte) (multident.Iterator, error) {
	return newSliceIterator(snapshotRange(m.bt, start, end, false)), nil
}

// ReverseIterator over a domain of keys in descending order.
func (m *MemStore) ReverseIterator(start, end []byte) (multident.Iterator, error) {
	return newSliceIterator(snapshotRange(m.bt, start, end, true)), nil
}

// NewBatch returns a batch that writes to this store on Write.
func (m *MemStore) NewBatch() multident.Batch {
	return &opsBatch{out: m}
}

// CacheWrap returns a scratch-pad store backed by this one.
func (m *MemStore) CacheWrap() multident.KVCacheWrap {
	return NewBTreeCacheWrap(m, m.NewBatch())
}

// snapshotRange copies the requested key range out of the btree. The
// iterator contract forbids writes while iterating, so working on a
// snapshot only relaxes the contract for the caller.
func snapshotRange(bt *btree.BTreeG[item], start, end []byte, reverse bool) []item {
	var out []item
	collect := func(it item) bool {
		out = append(out, it)
		return true
	}
	switch {
	case start == nil && end == nil:
		bt.Ascend(collect)
	case start == nil:
		bt.AscendLessThan(item{key: end}, collect)
	case end == nil:
		bt.AscendGreaterOrEqual(item{key: start}, collect)
	default:
		bt.AscendRange(item{key: start}, item{key: end}, collect)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func assertValidKey(key []byte) {
	if len(key) == 0 {
		panic("key is nil or empty")
	}
}

func assertValidValue(value []byte) {
	if value == nil {
		panic("value is nil")
	}
}

//////////////////////////////////////////////////////////
// Cache wrap

// BTreeCacheWrap places a btree overlay over a backing store. All
// modifications are collected in the overlay and in the batch. Write
// flushes the batch into the backing store, Discard drops everything.
type BTreeCacheWrap struct {
	bt    *btree.BTreeG[item]
	back  multident.ReadOnlyKVStore
	batch multident.Batch
}

var _ multident.KVCacheWrap = (*BTreeCacheWrap)(nil)

// NewBTreeCacheWrap initializes a btree overlay around the given store.
// multident.ReadOnlyKVStore is used to emphasize that all writes must go
// through the batch.
func NewBTreeCacheWrap(back multident.ReadOnlyKVStore, batch multident.Batch) *BTreeCacheWrap {
	return &BTreeCacheWrap{
		bt:    btree.NewG(degree, lessItem),
		back:  back,
		batch: batch,
	}
}

// CacheWrap layers another overlay on top of this one.
func (b *BTreeCacheWrap) CacheWrap() multident.KVCacheWrap {
	return NewBTreeCacheWrap(b, b.NewBatch())
}

// NewBatch returns a batch that eventually may write to this cachewrap.
func (b *BTreeCacheWrap) NewBatch() multident.Batch {
	return &opsBatch{out: b}
}

// Write syncs with the underlying store and then cleans up.
func (b *BTreeCacheWrap) Write() error {
	err := b.batch.Write()
	b.Discard()
	return err
}

// Discard invalidates this CacheWrap and releases all data.
func (b *BTreeCacheWrap) Discard() {
	b.bt.Clear(false)
}

// Set writes to the overlay and to the batch.
func (b *BTreeCacheWrap) Set(key, value []byte) error {
	assertValidKey(key)
	assertValidValue(value)
	b.bt.ReplaceOrInsert(item{key: key, value: value})
	return b.batch.Set(key, value)
}

// Delete marks the key deleted in the overlay and in the batch.
func (b *BTreeCacheWrap) Delete(key []byte) error {
	assertValidKey(key)
	b.bt.ReplaceOrInsert(item{key: key, deleted: true})
	return b.batch.Delete(key)
}

// Get reads from the overlay if present, else the backing store.
func (b *BTreeCacheWrap) Get(key []byte) ([]byte, error) {
	assertValidKey(key)
	if it, ok := b.bt.Get(item{key: key}); ok {
		if it.deleted {
			return nil, nil
		}
		return it.value, nil
	}
	return b.back.Get(key)
}

// Has reads from the overlay if present, else the backing store.
func (b *BTreeCacheWrap) Has(key []byte) (bool, error) {
	assertValidKey(key)
	if it, ok := b.bt.Get(item{key: key}); ok {
		return !it.deleted, nil
	}
	return b.back.Has(key)
}

// Iterator combines the overlay with the backing store. The overlay
// wins on conflict and hides deleted entries.
func (b *BTreeCacheWrap) Iterator(start, end []byte) (multident.Iterator, error) {
	return b.mergedIterator(start, end, false)
}

// ReverseIterator combines the overlay with the backing store in
// descending order.
func (b *BTreeCacheWrap) ReverseIterator(start, end []byte) (multident.Iterator, error) {
	return b.mergedIterator(start, end, true)
}

func (b *BTreeCacheWrap) mergedIterator(start, end []byte, reverse bool) (multident.Iterator, error) {
	var parent multident.Iterator
	var err error
	if reverse {
		parent, err = b.back.ReverseIterator(start, end)
	} else {
		parent, err = b.back.Iterator(start, end)
	}
	if err != nil {
		return nil, err
	}
	defer parent.Release()

	merged := make(map[string]item)
	for {
		key, value, err := parent.Next()
		if errors.ErrIteratorDone.Is(err) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "backing iterator")
		}
		merged[string(key)] = item{key: key, value: value}
	}
	for _, it := range snapshotRange(b.bt, start, end, false) {
		merged[string(it.key)] = it
	}

	out := make([]item, 0, len(merged))
	for _, it := range merged {
		if !it.deleted {
			out = append(out, it)
		}
	}
	sortItems(out, reverse)
	return newSliceIterator(out), nil
}

func sortItems(items []item, reverse bool) {
	less := func(i, j int) bool {
		c := bytes.Compare(items[i].key, items[j].key)
		if reverse {
			return c > 0
		}
		return c < 0
	}
	// insertion sort, ranges are small and mostly ordered already
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

//////////////////////////////////////////////////////////
// Batch and iterator plumbing

type op struct {
	key    []byte
	value  []byte
	delete bool
}

// opsBatch collects modifications and applies them to the output store
// on Write. Writes are sequential, not atomic. That is fine for the
// stores of this package as they never fail mid-way.
type opsBatch struct {
	out interface {
		Set(key, value []byte) error
		Delete(key []byte) error
	}
	ops []op
}

var _ multident.Batch = (*opsBatch)(nil)

func (b *opsBatch) Set(key, value []byte) error {
	b.ops = append(b.ops, op{key: key, value: value})
	return nil
}

func (b *opsBatch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: key, delete: true})
	return nil
}

func (b *opsBatch) Write() error {
	for _, o := range b.ops {
		var err error
		if o.delete {
			err = b.out.Delete(o.key)
		} else {
			err = b.out.Set(o.key, o.value)
		}
		if err != nil {
			return errors.Wrap(err, "batch write")
		}
	}
	b.ops = nil
	return nil
}

type sliceIterator struct {
	items []item
	pos   int
}

var _ multident.Iterator = (*sliceIterator)(nil)

func newSliceIterator(items []item) *sliceIterator {
	return &sliceIterator{items: items}
}

func (s *sliceIterator) Next() ([]byte, []byte, error) {
	if s.pos >= len(s.items) {
		return nil, nil, errors.ErrIteratorDone
	}
	it := s.items[s.pos]
	s.pos++
	return it.key, it.value, nil
}

func (s *sliceIterator) Release() {
	s.pos = len(s.items)
}
