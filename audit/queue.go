package audit

import (
	"context"
	"sync"
)

// Admission is the outcome of Enqueue.
type Admission uint8

const (
	// Admitted: the queue owns the item.
	Admitted Admission = iota
	// Discarded: the queue is over its bounds; the drop was counted.
	Discarded
	// RejectedDead: the authority is gone; the drop was not counted.
	RejectedDead
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Discarded:
		return "discarded"
	case RejectedDead:
		return "rejected_dead"
	default:
		return "unknown"
	}
}

// DiscardReport builds the record announcing that count records were
// dropped. It runs with the queue lock held and must not touch the queue.
type DiscardReport func(count uint64) (*WorkItem, error)

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Upper is the high watermark: non-forced admissions at or above it
	// start discarding.
	Upper int
	// Lower is the low watermark: discarding ends on the first admission
	// attempt below it.
	Lower int
	// Report builds the audits-discarded record. Nil disables the report
	// but still resets the count on recovery.
	Report DiscardReport
	// ReportFailed is called, outside the lock, when Report fails.
	ReportFailed func(err error)
}

// QueueStats is a consistent snapshot of the queue.
type QueueStats struct {
	Length         int
	Upper          int
	Lower          int
	Discarding     bool
	Dead           bool
	Discarded      uint64
	TotalDiscarded uint64
	Admitted       uint64
	Reports        uint64
}

// Queue is the bounded audit queue. List, length, discarding flag, discard
// count and dead flag change together under one mutex.
type Queue struct {
	mu         sync.Mutex
	head       *WorkItem
	tail       *WorkItem
	length     int
	upper      int
	lower      int
	discarding bool
	discarded  uint64
	dead       bool
	drainedSet bool

	totalDiscarded uint64
	admitted       uint64
	reports        uint64

	report       DiscardReport
	reportFailed func(error)

	wake    chan struct{}
	drained chan struct{}
}

// NewQueue returns an empty queue in the normal state. Bounds are taken as
// given when 0 <= Lower < Upper; otherwise the defaults apply. Configured
// bounds are validated by the Loader before they get here.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Lower < 0 || cfg.Upper <= cfg.Lower {
		cfg.Upper, cfg.Lower = DefaultUpperBound, DefaultLowerBound
	}
	return &Queue{
		upper:        cfg.Upper,
		lower:        cfg.Lower,
		report:       cfg.Report,
		reportFailed: cfg.ReportFailed,
		wake:         make(chan struct{}, 1),
		drained:      make(chan struct{}),
	}
}

// SetReport installs the audits-discarded record builder.
func (q *Queue) SetReport(report DiscardReport, failed func(error)) {
	q.mu.Lock()
	q.report = report
	q.reportFailed = failed
	q.mu.Unlock()
}

// Wake receives a value each time the queue goes from empty to non-empty.
func (q *Queue) Wake() <-chan struct{} { return q.wake }

// Enqueue offers item to the queue. Forced items bypass the high watermark
// and the discarding state but not a dead queue. Items that are not
// admitted still belong to the caller.
func (q *Queue) Enqueue(item *WorkItem, forced bool) Admission {
	q.mu.Lock()
	adm, wake, reportErr := q.admitLocked(item, forced)
	failed := q.reportFailed
	q.mu.Unlock()

	if wake {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	if reportErr != nil && failed != nil {
		failed(reportErr)
	}
	return adm
}

func (q *Queue) admitLocked(item *WorkItem, forced bool) (Admission, bool, error) {
	if q.dead {
		return RejectedDead, false, nil
	}

	var reportErr error
	wake := false
	if q.discarding && !forced {
		if q.length >= q.lower {
			q.discarded++
			q.totalDiscarded++
			return Discarded, false, nil
		}
		// Leave discarding before building the report so the report itself
		// is admitted, then queue it ahead of the item that ended recovery.
		q.discarding = false
		if q.report != nil {
			meta, err := q.report(q.discarded)
			if err != nil {
				reportErr = err
			} else {
				wake = q.enqueueLocked(meta)
				q.reports++
				q.discarded = 0
			}
		} else {
			q.discarded = 0
		}
	}

	if q.length < q.upper || forced {
		if q.enqueueLocked(item) {
			wake = true
		}
		return Admitted, wake, reportErr
	}

	q.discarding = true
	q.discarded++
	q.totalDiscarded++
	return Discarded, wake, reportErr
}

// enqueueLocked appends item and reports whether the queue was empty.
func (q *Queue) enqueueLocked(item *WorkItem) bool {
	item.next = nil
	if q.tail == nil {
		q.head = item
	} else {
		q.tail.next = item
	}
	q.tail = item
	q.length++
	q.admitted++
	return q.length == 1
}

// Head returns the first item without removing it.
func (q *Queue) Head() *WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head
}

// Dequeue removes and frees the head item and returns the new head, or nil
// when the queue is empty.
func (q *Queue) Dequeue() *WorkItem {
	q.mu.Lock()
	removed := q.head
	if removed == nil {
		q.mu.Unlock()
		return nil
	}
	q.head = removed.next
	if q.head == nil {
		q.tail = nil
	}
	q.length--
	if q.length == 0 && q.dead {
		q.signalDrainedLocked()
	}
	next := q.head
	q.mu.Unlock()

	removed.free()
	return next
}

func (q *Queue) signalDrainedLocked() {
	if !q.drainedSet {
		q.drainedSet = true
		close(q.drained)
	}
}

// MarkDead records that the logging authority is gone. Later admissions are
// rejected. The drained signal fires once the queue is empty.
func (q *Queue) MarkDead() {
	q.mu.Lock()
	q.dead = true
	if q.length == 0 {
		q.signalDrainedLocked()
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dead reports whether MarkDead was called.
func (q *Queue) Dead() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dead
}

// Drained is closed when a dead queue becomes empty.
func (q *Queue) Drained() <-chan struct{} { return q.drained }

// WaitDrained blocks until a dead queue is empty or ctx is done.
func (q *Queue) WaitDrained(ctx context.Context) error {
	select {
	case <-q.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot taken under the queue lock.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Length:         q.length,
		Upper:          q.upper,
		Lower:          q.lower,
		Discarding:     q.discarding,
		Dead:           q.dead,
		Discarded:      q.discarded,
		TotalDiscarded: q.totalDiscarded,
		Admitted:       q.admitted,
		Reports:        q.reports,
	}
}
