// Package diskscheduler serializes page I/O behind a single background
// worker, per SPEC_FULL.md §4.1.
package diskscheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
)

// LatencyObserver receives the wall-clock duration of each serviced request,
// tagged by direction ("read" or "write"). A nil LatencyObserver is valid.
type LatencyObserver interface {
	ObserveIOLatency(d time.Duration, direction string)
}

// ErrShutdown is returned to callers that try to Schedule after Shutdown.
var ErrShutdown = errors.New("diskscheduler: scheduler is shut down")

// shutdownSentinel is pushed through the request queue itself by Shutdown,
// so it is only ever observed by the worker after every request enqueued
// ahead of it has drained.
var shutdownSentinel = &Request{}

// Direction selects whether a Request reads or writes a page.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
)

// Request bundles everything the worker needs to service one page I/O.
type Request struct {
	Dir           Direction
	PageID        diskmanager.PageID
	Data          []byte // read target or write source, len == page size
	CorrelationID string

	done chan error
}

// DiskScheduler owns one background goroutine draining a FIFO queue of
// Requests against a DiskManager. Requests submitted by a single goroutine
// are serviced in submission order; no ordering is promised across
// goroutines. An optional rate.Limiter throttles write dispatch without
// affecting enqueue or ordering.
type DiskScheduler struct {
	dm      *diskmanager.DiskManager
	log     *zap.Logger
	queue   chan *Request
	limiter *rate.Limiter
	metrics LatencyObserver

	shuttingDown atomic.Bool
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New starts the background worker. writeLimit is pages/second; zero or
// negative disables throttling. metrics may be nil.
func New(dm *diskmanager.DiskManager, log *zap.Logger, writeLimit float64, metrics LatencyObserver) *DiskScheduler {
	var limiter *rate.Limiter
	if writeLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(writeLimit), 1)
	}
	s := &DiskScheduler{
		dm:      dm,
		log:     log,
		queue:   make(chan *Request, 256),
		limiter: limiter,
		metrics: metrics,
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Schedule enqueues a request and blocks until it completes or ctx is
// cancelled while waiting to be admitted into the queue. Once admitted, the
// request always runs to completion — ctx does not abort in-flight I/O
// (SPEC_FULL.md §5).
func (s *DiskScheduler) Schedule(ctx context.Context, req *Request) error {
	if s.shuttingDown.Load() {
		return ErrShutdown
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	req.done = make(chan error, 1)

	select {
	case s.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-req.done
}

// Shutdown enqueues the sentinel that tells the worker to stop once it has
// drained every request already queued ahead of it, then blocks until the
// worker goroutine has actually exited. Safe to call more than once.
func (s *DiskScheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.shuttingDown.Store(true)
		s.queue <- shutdownSentinel
	})
	s.wg.Wait()
}

// IncreaseDiskSpace delegates directly to the underlying DiskManager. It is
// not queued: extending the file is metadata-only and does not contend with
// the read/write worker for page-sized I/O.
func (s *DiskScheduler) IncreaseDiskSpace(highWaterMark uint64) (diskmanager.PageID, error) {
	return s.dm.IncreaseDiskSpace(highWaterMark)
}

func (s *DiskScheduler) worker() {
	defer s.wg.Done()
	for {
		req := <-s.queue
		if req == shutdownSentinel {
			return
		}
		s.service(req)
	}
}

func (s *DiskScheduler) service(req *Request) {
	if req.Dir == DirWrite && s.limiter != nil {
		_ = s.limiter.Wait(context.Background())
	}

	start := time.Now()
	var err error
	var direction string
	switch req.Dir {
	case DirRead:
		direction = "read"
		err = s.dm.ReadPage(req.PageID, req.Data)
	case DirWrite:
		direction = "write"
		err = s.dm.WritePage(req.PageID, req.Data)
	default:
		err = fmt.Errorf("diskscheduler: unknown direction %d", req.Dir)
	}
	if s.metrics != nil && direction != "" {
		s.metrics.ObserveIOLatency(time.Since(start), direction)
	}

	if err != nil && s.log != nil {
		s.log.Error("page i/o failed",
			zap.String("correlation_id", req.CorrelationID),
			zap.Uint64("page_id", uint64(req.PageID)),
			zap.Int("direction", int(req.Dir)),
			zap.Error(err))
	}
	req.done <- err
}
