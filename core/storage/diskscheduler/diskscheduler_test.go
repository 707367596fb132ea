package diskscheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

func newTestScheduler(t *testing.T) (*DiskScheduler, *diskmanager.DiskManager) {
	t.Helper()
	dm, err := diskmanager.Open(filepath.Join(t.TempDir(), "test.db"), diskmanager.DefaultPageSize, true)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return New(dm, zap.NewNop(), 0, nil), dm
}

func TestDiskScheduler_WriteThenReadRoundTrip(t *testing.T) {
	sched, dm := newTestScheduler(t)
	defer sched.Shutdown()

	id, err := dm.IncreaseDiskSpace(0)
	require.NoError(t, err)

	write := make([]byte, diskmanager.DefaultPageSize)
	copy(write, "hello from the scheduler")
	require.NoError(t, sched.Schedule(context.Background(), &Request{Dir: DirWrite, PageID: id, Data: write}))

	read := make([]byte, diskmanager.DefaultPageSize)
	require.NoError(t, sched.Schedule(context.Background(), &Request{Dir: DirRead, PageID: id, Data: read}))
	require.Equal(t, write, read)
}

// TestDiskScheduler_ShutdownDrainsAlreadyQueuedRequests puts several
// requests directly on the scheduler's queue and calls Shutdown immediately
// after, without waiting for any of them to complete individually first.
// The sentinel travels through the same FIFO, so every request queued ahead
// of it must still be serviced before the worker stops — none may be
// silently dropped.
func TestDiskScheduler_ShutdownDrainsAlreadyQueuedRequests(t *testing.T) {
	sched, dm := newTestScheduler(t)

	const n = 20
	ids := make([]diskmanager.PageID, n)
	for i := range ids {
		id, err := dm.IncreaseDiskSpace(0)
		require.NoError(t, err)
		ids[i] = id
	}

	reqs := make([]*Request, n)
	for i, id := range ids {
		buf := make([]byte, diskmanager.DefaultPageSize)
		buf[0] = byte(i)
		reqs[i] = &Request{Dir: DirWrite, PageID: id, Data: buf, done: make(chan error, 1)}
		sched.queue <- reqs[i]
	}

	sched.Shutdown()

	for _, req := range reqs {
		require.NoError(t, <-req.done)
	}

	for i, id := range ids {
		got := make([]byte, diskmanager.DefaultPageSize)
		require.NoError(t, dm.ReadPage(id, got))
		require.Equal(t, byte(i), got[0])
	}
}

// TestDiskScheduler_ScheduleAfterShutdownReturnsErrShutdown asserts that a
// Schedule call issued after Shutdown has returned is rejected with
// ErrShutdown instead of being queued behind the sentinel.
func TestDiskScheduler_ScheduleAfterShutdownReturnsErrShutdown(t *testing.T) {
	sched, _ := newTestScheduler(t)

	sched.Shutdown()

	err := sched.Schedule(context.Background(), &Request{Dir: DirRead, Data: make([]byte, diskmanager.DefaultPageSize)})
	require.ErrorIs(t, err, ErrShutdown)
}

func TestDiskScheduler_ShutdownIsIdempotent(t *testing.T) {
	sched, _ := newTestScheduler(t)
	sched.Shutdown()
	sched.Shutdown()
}
