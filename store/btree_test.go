package store

import (
	"testing"

	"github.com/iov-one/multident"
	"github.com/iov-one/multident/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreGetSetDelete(t *testing.T) {
	db := NewMemStore()

	v, err := db.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.Set([]byte("a"), []byte{1}))
	require.NoError(t, db.Set([]byte("b"), []byte{2}))

	v, err = db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)

	ok, err := db.Has([]byte("b"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.Delete([]byte("a")))
	ok, err = db.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is a noop.
	require.NoError(t, db.Delete([]byte("a")))
}

func TestMemStoreRejectsNilKey(t *testing.T) {
	db := NewMemStore()
	assert.Panics(t, func() { _ = db.Set(nil, []byte{1}) })
	assert.Panics(t, func() { _ = db.Set([]byte("k"), nil) })
	assert.Panics(t, func() { _, _ = db.Get(nil) })
}

func collectKeys(t *testing.T, it multident.Iterator) []string {
	t.Helper()
	var out []string
	for {
		key, _, err := it.Next()
		if errors.ErrIteratorDone.Is(err) {
			it.Release()
			return out
		}
		require.NoError(t, err)
		out = append(out, string(key))
	}
}

func TestMemStoreIterator(t *testing.T) {
	db := NewMemStore()
	for _, k := range []string{"d", "a", "c", "b"} {
		require.NoError(t, db.Set([]byte(k), []byte(k)))
	}

	cases := map[string]struct {
		start, end []byte
		reverse    bool
		want       []string
	}{
		"full range":       {nil, nil, false, []string{"a", "b", "c", "d"}},
		"bounded":          {[]byte("b"), []byte("d"), false, []string{"b", "c"}},
		"open start":       {nil, []byte("c"), false, []string{"a", "b"}},
		"open end":         {[]byte("c"), nil, false, []string{"c", "d"}},
		"empty range":      {[]byte("x"), nil, false, nil},
		"full reverse":     {nil, nil, true, []string{"d", "c", "b", "a"}},
		"bounded reverse":  {[]byte("b"), []byte("d"), true, []string{"c", "b"}},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var (
				it  multident.Iterator
				err error
			)
			if tc.reverse {
				it, err = db.ReverseIterator(tc.start, tc.end)
			} else {
				it, err = db.Iterator(tc.start, tc.end)
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, collectKeys(t, it))
		})
	}
}

func TestIteratorWorksOnSnapshot(t *testing.T) {
	db := NewMemStore()
	require.NoError(t, db.Set([]byte("a"), []byte{1}))
	require.NoError(t, db.Set([]byte("b"), []byte{2}))

	it, err := db.Iterator(nil, nil)
	require.NoError(t, err)

	// Writes during iteration do not disturb the snapshot.
	require.NoError(t, db.Set([]byte("c"), []byte{3}))
	require.NoError(t, db.Delete([]byte("b")))

	assert.Equal(t, []string{"a", "b"}, collectKeys(t, it))
}

func TestCacheWrapWrite(t *testing.T) {
	db := NewMemStore()
	require.NoError(t, db.Set([]byte("kept"), []byte{1}))
	require.NoError(t, db.Set([]byte("dropped"), []byte{2}))

	cache := db.CacheWrap()
	require.NoError(t, cache.Set([]byte("new"), []byte{3}))
	require.NoError(t, cache.Delete([]byte("dropped")))

	// The parent is untouched until Write.
	ok, err := db.Has([]byte("new"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = db.Has([]byte("dropped"))
	require.NoError(t, err)
	assert.True(t, ok)

	// The cache observes its own writes layered over the parent.
	v, err := cache.Get([]byte("kept"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)
	v, err = cache.Get([]byte("new"))
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, v)
	v, err = cache.Get([]byte("dropped"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, cache.Write())

	v, err = db.Get([]byte("new"))
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, v)
	ok, err = db.Has([]byte("dropped"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheWrapDiscard(t *testing.T) {
	db := NewMemStore()
	require.NoError(t, db.Set([]byte("kept"), []byte{1}))

	cache := db.CacheWrap()
	require.NoError(t, cache.Set([]byte("scratch"), []byte{9}))
	cache.Discard()

	ok, err := db.Has([]byte("scratch"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = db.Has([]byte("kept"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheWrapMergedIterator(t *testing.T) {
	db := NewMemStore()
	require.NoError(t, db.Set([]byte("a"), []byte{1}))
	require.NoError(t, db.Set([]byte("c"), []byte{3}))

	cache := db.CacheWrap()
	require.NoError(t, cache.Set([]byte("b"), []byte{2}))
	require.NoError(t, cache.Delete([]byte("c")))

	it, err := cache.Iterator(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, collectKeys(t, it))

	it, err = cache.ReverseIterator(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, collectKeys(t, it))
}
