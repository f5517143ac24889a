package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Item struct {
	key, value []byte
}

func writeKVStore(t *testing.T, basename string, items []Item) {
	writer, err := newKVStoreWriter(basename)
	require.NoError(t, err)

	for _, item := range items {
		require.NoError(t, writer.Append(item.key, item.value), "append (%s, %s)", item.key, item.value)
	}

	require.NoError(t, writer.Close())
}

var kvTestData = []Item{
	{key: []byte("apple"), value: []byte("fruit")},
	{key: []byte("carrot"), value: []byte("vegetable")},
	{key: []byte("dog"), value: []byte("animal")},
	{key: []byte("foo"), value: []byte("bar")},
	{key: []byte("hello"), value: []byte("world")},
}

func TestKVStore(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "test_kvstore")
	writeKVStore(t, basename, kvTestData)

	reader, err := newKVStoreReader(basename)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, len(kvTestData), reader.Len())

	for _, item := range kvTestData {
		value, err := reader.Get(item.key)
		require.NoError(t, err)
		assert.Equal(t, item.value, value)
	}

	// Test non-existing key
	value, err := reader.Get([]byte("9661c61e"))
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestKVStoreAt(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "test_kvstore")
	writeKVStore(t, basename, kvTestData)

	reader, err := newKVStoreReader(basename)
	require.NoError(t, err)
	defer reader.Close()

	for i, item := range kvTestData {
		key, value, err := reader.At(i)
		require.NoError(t, err)
		assert.Equal(t, item.key, key)
		assert.Equal(t, item.value, value)
	}

	_, _, err = reader.At(len(kvTestData))
	assert.Error(t, err)
}

func TestKVStoreFloor(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "test_kvstore")
	writeKVStore(t, basename, kvTestData)

	reader, err := newKVStoreReader(basename)
	require.NoError(t, err)
	defer reader.Close()

	cases := []struct {
		key      string
		floorKey string
		ok       bool
	}{
		{key: "aardvark", ok: false},
		{key: "apple", floorKey: "apple", ok: true},
		{key: "banana", floorKey: "apple", ok: true},
		{key: "foo", floorKey: "foo", ok: true},
		{key: "goat", floorKey: "foo", ok: true},
		{key: "zebra", floorKey: "hello", ok: true},
	}

	for _, c := range cases {
		floorKey, _, ok, err := reader.Floor([]byte(c.key))
		require.NoError(t, err)
		assert.Equal(t, c.ok, ok, c.key)
		if c.ok {
			assert.Equal(t, c.floorKey, string(floorKey), c.key)
		}
	}
}

func TestKVStoreEmpty(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "test_kvstore")
	writeKVStore(t, basename, nil)

	reader, err := newKVStoreReader(basename)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 0, reader.Len())

	value, err := reader.Get([]byte("apple"))
	require.NoError(t, err)
	assert.Nil(t, value)

	_, _, ok, err := reader.Floor([]byte("apple"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStoreRejectsUnsortedKeys(t *testing.T) {
	writer, err := newKVStoreWriter(filepath.Join(t.TempDir(), "test_kvstore"))
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.Append([]byte("b"), []byte("1")))
	assert.Error(t, writer.Append([]byte("a"), []byte("2")))
	assert.Error(t, writer.Append([]byte("b"), []byte("3")))
}

func TestKVStoreMultipleValues(t *testing.T) {
	basename := filepath.Join(t.TempDir(), "test_kvstore")

	writer, err := newKVStoreWriter(basename)
	require.NoError(t, err)
	require.NoError(t, writer.Append([]byte("k"), []byte("ab"), []byte("cd")))
	require.NoError(t, writer.Close())

	reader, err := newKVStoreReader(basename)
	require.NoError(t, err)
	defer reader.Close()

	value, err := reader.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), value)
}
