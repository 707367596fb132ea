package btree

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sushant-115/gojodb-storage/core/storage/buffer"
	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
	"github.com/sushant-115/gojodb-storage/core/storage/diskscheduler"
)

func newTestService(t *testing.T) (IndexService, context.Context) {
	t.Helper()
	dm, err := diskmanager.Open(filepath.Join(t.TempDir(), "test.db"), diskmanager.DefaultPageSize, true)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	sched := diskscheduler.New(dm, zap.NewNop(), 0, nil)
	t.Cleanup(sched.Shutdown)

	bpm := buffer.New(buffer.Config{NumFrames: 16, KDist: 2, PageSize: diskmanager.DefaultPageSize}, sched, zap.NewNop(), nil)
	ctx := context.Background()
	headerID := bpm.NewPage(ctx)

	tree := New[[]byte, []byte](bpm, headerID, BytesComparator, IdentityBytesCodec, IdentityBytesCodec, 4, 5, zap.NewNop())
	return NewByteKeyedIndexService(tree), ctx
}

func TestByteKeyedIndexService_InsertGetRemove(t *testing.T) {
	svc, ctx := newTestService(t)

	require.True(t, svc.Insert(ctx, []byte("alpha"), []byte("1")))
	require.True(t, svc.Insert(ctx, []byte("beta"), []byte("2")))
	require.False(t, svc.Insert(ctx, []byte("alpha"), []byte("3")))

	v, ok := svc.GetValue(ctx, []byte("alpha"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	svc.Remove(ctx, []byte("alpha"))
	_, ok = svc.GetValue(ctx, []byte("alpha"))
	require.False(t, ok)
}

func TestByteKeyedIndexService_ScanIsLexicographicallyOrdered(t *testing.T) {
	svc, ctx := newTestService(t)

	keys := []string{"delta", "alpha", "charlie", "bravo"}
	for _, k := range keys {
		require.True(t, svc.Insert(ctx, []byte(k), []byte(k)))
	}

	var got []string
	for s := svc.Scan(ctx); !s.IsEnd(); s.Next() {
		got = append(got, string(s.Key()))
		require.Equal(t, s.Key(), s.Value())
	}
	require.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, got)
}

func TestByteKeyedIndexService_ScanFromPositionsAtLowerBound(t *testing.T) {
	svc, ctx := newTestService(t)

	keys := []string{"delta", "alpha", "charlie", "bravo"}
	for _, k := range keys {
		require.True(t, svc.Insert(ctx, []byte(k), []byte(k)))
	}

	// "b" is absent; LowerBound lands on "bravo", the first key >= "b".
	var got []string
	for s := svc.ScanFrom(ctx, []byte("b")); !s.IsEnd(); s.Next() {
		got = append(got, string(s.Key()))
	}
	require.Equal(t, []string{"bravo", "charlie", "delta"}, got)

	// An exact key match also positions at (not past) that key.
	got = nil
	for s := svc.ScanFrom(ctx, []byte("charlie")); !s.IsEnd(); s.Next() {
		got = append(got, string(s.Key()))
	}
	require.Equal(t, []string{"charlie", "delta"}, got)

	// A key past the end yields an immediately-exhausted cursor.
	s := svc.ScanFrom(ctx, []byte("zulu"))
	require.True(t, s.IsEnd())
}

func TestBytesComparator(t *testing.T) {
	require.Equal(t, 0, BytesComparator([]byte("a"), []byte("a")))
	require.Less(t, BytesComparator([]byte("a"), []byte("b")), 0)
	require.Greater(t, BytesComparator([]byte("b"), []byte("a")), 0)
	require.Less(t, BytesComparator([]byte("a"), []byte("ab")), 0)
}
