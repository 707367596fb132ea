package trie

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrieStore_PutGetRemove(t *testing.T) {
	s := NewTrieStore()
	StorePut(s, "name", "gojodb")

	v, ok := StoreGet[string](s, "name")
	require.True(t, ok)
	require.Equal(t, "gojodb", v)

	s.Remove("name")
	_, ok = StoreGet[string](s, "name")
	require.False(t, ok)
}

func TestTrieStore_ConcurrentReadersSeeOnlyCompletedPuts(t *testing.T) {
	s := NewTrieStore()
	StorePut(s, "seed", 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			StorePut(s, "k", i)
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every read must see either nothing or a value written by some
			// completed Put; it must never observe a torn write.
			if v, ok := StoreGet[int](s, "k"); ok {
				require.GreaterOrEqual(t, v, 0)
			}
		}()
	}
	wg.Wait()

	v, ok := StoreGet[int](s, "k")
	require.True(t, ok)
	require.GreaterOrEqual(t, v, 0)
	require.Less(t, v, 50)
}

func TestTrieStore_ConcurrentDistinctKeysAllSurvive(t *testing.T) {
	s := NewTrieStore()
	const n = 32

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			StorePut(s, string(rune('a'+i)), i)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		v, ok := StoreGet[int](s, string(rune('a'+i)))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}
