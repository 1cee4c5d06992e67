package compute

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gputypes"

	"github.com/00mjk/oneDNN/internal/status"
)

// task is one unit of work handed to the stream worker: a recorded command
// buffer, the events it must wait for, and the event it resolves.
type task struct {
	cmd  *wgpu.CommandBuffer
	deps []*Event
	ev   *Event
}

// Stream binds an engine to one native command queue and gives the work
// submitted through it a total order. A worker goroutine drains the task
// channel, so Submit never blocks the caller even when a task waits on
// dependencies from other streams.
//
// Work on the same stream executes in submission order. Work on different
// streams is unordered unless an event from one is passed as a dependency
// to the other.
type Stream struct {
	engine *Engine
	queue  *Queue

	tasks chan *task
	wg    sync.WaitGroup

	mu       sync.Mutex
	posts    []func() error // deferred completion actions, submission order
	firstErr error
	closed   bool
}

func newStream(e *Engine, q *Queue) *Stream {
	s := &Stream{
		engine: e,
		queue:  q,
		tasks:  make(chan *task, 64),
	}
	go s.worker()
	return s
}

// Engine returns the stream's owning engine.
func (s *Stream) Engine() *Engine { return s.engine }

// worker submits tasks to the device queue in channel order, delaying each
// until its dependencies have reached the queue. On a single in-order
// device queue, submission order is execution order, which realizes the
// fan-in dependency contract.
func (s *Stream) worker() {
	for t := range s.tasks {
		for _, dep := range t.deps {
			<-dep.submitted
		}
		s.queue.queue.Submit(t.cmd)
		close(t.ev.submitted)
		s.wg.Done()
	}
}

// enqueue hands a task to the worker; never blocks the device.
func (s *Stream) enqueue(t *task) {
	s.wg.Add(1)
	s.tasks <- t
}

// deferCompletion registers an action to run once the stream is known to
// have completed (unified-address writebacks, transient releases). Actions
// run in submission order during Wait.
func (s *Stream) deferCompletion(fn func() error) {
	s.mu.Lock()
	s.posts = append(s.posts, fn)
	s.mu.Unlock()
}

// Wait blocks until all work submitted on the stream (and its acknowledged
// dependencies) has completed, then runs the deferred completion actions
// and reports the first error encountered among that work. The stream
// remains usable afterwards.
func (s *Stream) Wait() error {
	s.wg.Wait() // all tasks reached the device queue

	if s.queue != nil && s.queue.device != nil {
		if err := s.fence(); err != nil {
			s.recordErr(err)
		}
	}

	s.mu.Lock()
	posts := s.posts
	s.posts = nil
	s.mu.Unlock()
	for _, fn := range posts {
		if err := fn(); err != nil {
			s.recordErr(err)
		}
	}

	s.mu.Lock()
	err := s.firstErr
	s.firstErr = nil
	s.mu.Unlock()
	return err
}

// fence blocks until the device queue has drained. Mapping a staging
// buffer for reading cannot complete before previously submitted work, so
// a 4-byte readback doubles as a queue barrier.
func (s *Stream) fence() error {
	e := s.engine
	usage := gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	staging := e.pool.Acquire(4, usage)
	defer e.pool.Recycle(staging, 4, usage)

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(e.nullBuffer(), 0, staging, 0, 4)
	cmd := encoder.Finish(nil)
	s.queue.queue.Submit(cmd)

	if err := staging.MapAsync(e.device, wgpu.MapModeRead, 0, 4); err != nil {
		return status.Wrap(status.RuntimeError, "stream.Wait", "queue fence failed", err)
	}
	staging.Unmap()
	return nil
}

func (s *Stream) recordErr(err error) {
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.mu.Unlock()
}

// Release shuts down the stream worker. Pending work is drained first.
func (s *Stream) Release() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	close(s.tasks)
}
