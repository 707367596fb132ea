package trie

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrie_EmptyGet(t *testing.T) {
	var trie Trie
	_, ok := Get[int](trie, "missing")
	require.False(t, ok)
}

func TestTrie_PutGetRoundTrip(t *testing.T) {
	trie := Put(Trie{}, "hello", 42)
	v, ok := Get[int](trie, "hello")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestTrie_GetWrongTypeIsAbsent(t *testing.T) {
	trie := Put(Trie{}, "hello", 42)
	_, ok := Get[string](trie, "hello")
	require.False(t, ok, "a value stored as int must not be readable as string")
}

func TestTrie_OverlappingKeysShareAndDiverge(t *testing.T) {
	// "te", "tea", "teapot" share a spine; each carries its own value.
	trie := Trie{}
	trie = Put(trie, "te", 1)
	trie = Put(trie, "tea", 2)
	trie = Put(trie, "teapot", 3)

	v, ok := Get[int](trie, "te")
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = Get[int](trie, "tea")
	require.True(t, ok)
	require.Equal(t, 2, v)

	v, ok = Get[int](trie, "teapot")
	require.True(t, ok)
	require.Equal(t, 3, v)

	_, ok = Get[int](trie, "te a")
	require.False(t, ok)
}

func TestTrie_PutOverwritesValueAndType(t *testing.T) {
	trie := Put(Trie{}, "k", 1)
	trie = Put(trie, "k", "now a string")

	_, ok := Get[int](trie, "k")
	require.False(t, ok)

	s, ok := Get[string](trie, "k")
	require.True(t, ok)
	require.Equal(t, "now a string", s)
}

func TestTrie_PutIsImmutable(t *testing.T) {
	t0 := Put(Trie{}, "a", 1)
	t1 := Put(t0, "a", 2)
	t2 := Put(t1, "ab", 3)

	v0, ok := Get[int](t0, "a")
	require.True(t, ok)
	require.Equal(t, 1, v0)

	v1, ok := Get[int](t1, "a")
	require.True(t, ok)
	require.Equal(t, 2, v1)

	_, ok = Get[int](t0, "ab")
	require.False(t, ok, "t0 must not see a key inserted into a later snapshot")

	v2, ok := Get[int](t2, "ab")
	require.True(t, ok)
	require.Equal(t, 3, v2)
}

func TestTrie_RemoveLeafPrunesDeadSpine(t *testing.T) {
	trie := Put(Trie{}, "abc", 1)
	removed := Remove(trie, "abc")

	_, ok := Get[int](removed, "abc")
	require.False(t, ok)
	require.Nil(t, removed.root, "a spine left with no values and no children must be pruned away")

	// Original snapshot is untouched.
	v, ok := Get[int](trie, "abc")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestTrie_RemoveKeepsSiblingBranches(t *testing.T) {
	trie := Trie{}
	trie = Put(trie, "ab", 1)
	trie = Put(trie, "ac", 2)

	removed := Remove(trie, "ab")

	_, ok := Get[int](removed, "ab")
	require.False(t, ok)

	v, ok := Get[int](removed, "ac")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestTrie_RemoveInternalValueKeepsChildren(t *testing.T) {
	trie := Trie{}
	trie = Put(trie, "te", 1)
	trie = Put(trie, "teapot", 3)

	removed := Remove(trie, "te")

	_, ok := Get[int](removed, "te")
	require.False(t, ok)

	v, ok := Get[int](removed, "teapot")
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestTrie_RemoveAbsentKeyIsNoop(t *testing.T) {
	trie := Put(Trie{}, "a", 1)
	same := Remove(trie, "nope")

	v, ok := Get[int](same, "a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestTrie_AppleAppScenario(t *testing.T) {
	t0 := Trie{}
	t1 := Put(t0, "apple", uint32(1))
	t2 := Put(t1, "app", uint32(2))

	_, ok := Get[uint32](t0, "apple")
	require.False(t, ok)

	v, ok := Get[uint32](t1, "apple")
	require.True(t, ok)
	require.Equal(t, uint32(1), v)

	_, ok = Get[uint32](t1, "app")
	require.False(t, ok)

	v, ok = Get[uint32](t2, "app")
	require.True(t, ok)
	require.Equal(t, uint32(2), v)

	_, ok = Get[uint64](t2, "app")
	require.False(t, ok, "reading a uint32 value as uint64 must report absent")
}

func TestTrie_EmptyKeyAtRoot(t *testing.T) {
	trie := Put(Trie{}, "", 7)
	v, ok := Get[int](trie, "")
	require.True(t, ok)
	require.Equal(t, 7, v)

	trie = Put(trie, "x", 8)
	v, ok = Get[int](trie, "")
	require.True(t, ok)
	require.Equal(t, 7, v)
}
