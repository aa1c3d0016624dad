package cdc

import (
	"log"

	"github.com/sarchlab/membridge/sim"
)

// QueueBuilder can build cross-domain queues.
type QueueBuilder struct {
	engine       sim.Engine
	consumerFreq sim.Freq
	consumer     Waker
	producer     Waker
	syncDepth    int
	capacity     int
	fullMargin   int
}

// MakeQueueBuilder returns a builder with default parameters.
func MakeQueueBuilder() QueueBuilder {
	return QueueBuilder{
		syncDepth:  2,
		capacity:   8,
		fullMargin: 2,
	}
}

// WithEngine sets the engine that tracks the simulation time.
func (b QueueBuilder) WithEngine(engine sim.Engine) QueueBuilder {
	b.engine = engine
	return b
}

// WithConsumerFreq sets the clock frequency of the consuming domain. The
// crossing latency is measured in cycles of this clock.
func (b QueueBuilder) WithConsumerFreq(freq sim.Freq) QueueBuilder {
	b.consumerFreq = freq
	return b
}

// WithConsumer sets the object to wake when an item finishes crossing the
// domain boundary.
func (b QueueBuilder) WithConsumer(consumer Waker) QueueBuilder {
	b.consumer = consumer
	return b
}

// WithProducer sets the object to wake when popping frees a slot of the
// queue.
func (b QueueBuilder) WithProducer(producer Waker) QueueBuilder {
	b.producer = producer
	return b
}

// WithSyncDepth sets the depth of the synchronizer, in consumer cycles.
func (b QueueBuilder) WithSyncDepth(depth int) QueueBuilder {
	b.syncDepth = depth
	return b
}

// WithCapacity sets the total number of slots of the queue.
func (b QueueBuilder) WithCapacity(capacity int) QueueBuilder {
	b.capacity = capacity
	return b
}

// WithFullMargin sets how many slots before physically full the queue
// reports full.
func (b QueueBuilder) WithFullMargin(margin int) QueueBuilder {
	b.fullMargin = margin
	return b
}

// Build creates the queue.
func (b QueueBuilder) Build(name string) Queue {
	b.mustBeValid()

	return &queueImpl{
		name:         name,
		engine:       b.engine,
		consumerFreq: b.consumerFreq,
		consumer:     b.consumer,
		producer:     b.producer,
		syncDepth:    b.syncDepth,
		capacity:     b.capacity,
		fullMargin:   b.fullMargin,
	}
}

func (b QueueBuilder) mustBeValid() {
	if b.engine == nil {
		log.Panic("cdc queue requires an engine")
	}

	if b.consumerFreq == 0 {
		log.Panic("cdc queue requires a consumer frequency")
	}

	if b.capacity < 8 {
		log.Panic("cdc queue capacity must be at least 8")
	}

	if b.syncDepth < 1 {
		log.Panic("cdc queue synchronizer depth must be at least 1")
	}

	if b.fullMargin < 0 || b.fullMargin >= b.capacity {
		log.Panic("cdc queue full margin must be within the capacity")
	}
}
