// Package cdc provides a bounded fifo queue that safely carries items from a
// producer clock domain to a consumer clock domain.
package cdc

import (
	"log"
	"sync"

	"github.com/sarchlab/membridge/sim"
)

// A Queue is a bounded, ordered, lossless single-producer single-consumer
// channel between two clock domains.
//
// An item pushed in the producer domain becomes visible to the consumer only
// after the synchronizer depth worth of consumer cycles has elapsed. CanPush
// asserts full conservatively, a few slots before the queue is physically
// full, so that items that are still crossing the boundary can never
// overrun the queue.
type Queue interface {
	sim.Named

	// Producer side
	CanPush() bool
	Push(item interface{})

	// Consumer side. Items still crossing the domain boundary are
	// invisible, so Peek and Pop may return nil while Size is not zero.
	Peek() interface{}
	Pop() interface{}

	Capacity() int
	Size() int
}

// A Waker is notified when an item finishes crossing the domain boundary.
// TickScheduler and TickingComponent satisfy this interface.
type Waker interface {
	TickNow()
}

type element struct {
	item      interface{}
	visibleAt sim.VTimeInSec
}

type queueImpl struct {
	sync.Mutex

	name         string
	engine       sim.Engine
	consumerFreq sim.Freq
	syncDepth    int
	capacity     int
	fullMargin   int
	consumer     Waker
	producer     Waker

	elements []element
}

// Name returns the name of the queue.
func (q *queueImpl) Name() string {
	return q.name
}

// CanPush checks if the producer can push without overrunning the queue. It
// reports full while fullMargin slots are still free, covering items that
// are in flight across the domain boundary.
func (q *queueImpl) CanPush() bool {
	q.Lock()
	defer q.Unlock()

	return len(q.elements) < q.capacity-q.fullMargin
}

// Push inserts an item on the producer side. Pushing to a physically full
// queue is a design defect and panics.
func (q *queueImpl) Push(item interface{}) {
	q.Lock()

	if len(q.elements) >= q.capacity {
		log.Panicf("cross-domain queue %s overflow", q.name)
	}

	now := q.engine.CurrentTime()
	visibleAt := q.consumerFreq.NCyclesLater(q.syncDepth, now)
	q.elements = append(q.elements, element{item: item, visibleAt: visibleAt})

	q.Unlock()

	q.scheduleWake(visibleAt)
}

// Peek returns the oldest item if it has finished crossing the boundary.
func (q *queueImpl) Peek() interface{} {
	q.Lock()
	defer q.Unlock()

	head, ok := q.visibleHead()
	if !ok {
		return nil
	}

	return head.item
}

// Pop removes and returns the oldest item if it has finished crossing the
// boundary. Popping frees a slot, so the producer is woken to retry a
// stalled push.
func (q *queueImpl) Pop() interface{} {
	q.Lock()

	head, ok := q.visibleHead()
	if !ok {
		q.Unlock()
		return nil
	}

	q.elements = q.elements[1:]
	q.Unlock()

	if q.producer != nil {
		q.producer.TickNow()
	}

	return head.item
}

// Capacity returns the total number of slots of the queue.
func (q *queueImpl) Capacity() int {
	return q.capacity
}

// Size returns the number of items in the queue, including the items that
// are still crossing the boundary.
func (q *queueImpl) Size() int {
	q.Lock()
	defer q.Unlock()

	return len(q.elements)
}

func (q *queueImpl) visibleHead() (element, bool) {
	if len(q.elements) == 0 {
		return element{}, false
	}

	head := q.elements[0]
	if head.visibleAt > q.engine.CurrentTime() {
		return element{}, false
	}

	return head, true
}

// Handle wakes the consumer when an item finishes crossing the boundary.
func (q *queueImpl) Handle(_ sim.Event) error {
	if q.consumer != nil {
		q.consumer.TickNow()
	}

	return nil
}

func (q *queueImpl) scheduleWake(t sim.VTimeInSec) {
	if q.consumer == nil {
		return
	}

	evt := sim.MakeTickEvent(q, t)
	q.engine.Schedule(evt)
}
