// Package queue provides the bounded priority work queue that feeds the
// harvest worker pool.
package queue

import (
	"container/heap"
	"context"
	"sync"
)

// SentinelPriority is the reserved priority value for shutdown sentinels.
// It sorts before every real job priority, so a sentinel is always the next
// job delivered once enqueued.
const SentinelPriority = 0

// Job is a unit of work: a segment key with a dispatch priority.
// Lower priority values are delivered first. Real jobs carry priority
// position+1; the zero value is the shutdown sentinel.
type Job struct {
	Priority int
	Segment  string
}

// Sentinel returns the shutdown sentinel job.
func Sentinel() Job {
	return Job{Priority: SentinelPriority}
}

// IsSentinel reports whether the job is a shutdown instruction.
func (j Job) IsSentinel() bool {
	return j.Priority == SentinelPriority
}

// Queue is a bounded, priority-ordered work queue with task accounting.
//
// Put blocks while the queue is at capacity. Get blocks until a job is
// available and always returns the lowest-priority-value job currently
// enqueued. Every Get (and TryGet hit) must be balanced by exactly one
// MarkDone; Join blocks until the outstanding count reaches zero.
//
// Jobs of equal priority are delivered in unspecified order.
type Queue struct {
	mu    sync.Mutex
	items jobHeap

	// slots bounds queued jobs; avail carries one token per queued job.
	slots chan struct{}
	avail chan struct{}

	outstanding int
	drained     chan struct{}
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		slots: make(chan struct{}, capacity),
		avail: make(chan struct{}, capacity),
	}
}

// Put enqueues a job, blocking while the queue is at capacity.
// It returns ctx.Err() if the context is cancelled before space frees up.
func (q *Queue) Put(ctx context.Context, job Job) error {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.mu.Lock()
	heap.Push(&q.items, job)
	if q.outstanding == 0 {
		q.drained = make(chan struct{})
	}
	q.outstanding++
	q.mu.Unlock()

	// Never blocks: tokens match queued jobs, bounded by capacity.
	q.avail <- struct{}{}
	return nil
}

// Get blocks until a job is available and returns the highest-priority one.
// Callers are woken by sentinels during shutdown, so Get takes no context.
func (q *Queue) Get() Job {
	<-q.avail
	return q.pop()
}

// TryGet returns immediately; ok is false when the queue is empty.
// Used only by the drain-and-discard path during shutdown.
func (q *Queue) TryGet() (job Job, ok bool) {
	select {
	case <-q.avail:
		return q.pop(), true
	default:
		return Job{}, false
	}
}

func (q *Queue) pop() Job {
	q.mu.Lock()
	job := heap.Pop(&q.items).(Job)
	q.mu.Unlock()
	<-q.slots
	return job
}

// MarkDone records the completion of one previously dequeued job.
// It panics if called more times than jobs were dequeued.
func (q *Queue) MarkDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.outstanding <= 0 {
		panic("queue: MarkDone called with no outstanding jobs")
	}
	q.outstanding--
	if q.outstanding == 0 {
		close(q.drained)
	}
}

// Join blocks until every job ever enqueued has been marked done, or the
// context is cancelled.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	if q.outstanding == 0 {
		q.mu.Unlock()
		return nil
	}
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsEmpty is an advisory, racy snapshot of queue emptiness. It bounds the
// drain loop during shutdown and must not be used for correctness.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Outstanding returns the number of accepted-but-not-completed jobs.
func (q *Queue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

// jobHeap is a min-heap on Job.Priority.
type jobHeap []Job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].Priority < h[j].Priority }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(Job)) }

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	*h = old[:n-1]
	return job
}
