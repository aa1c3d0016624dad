package cdc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/sim"
)

type wakeCounter struct {
	count int
}

func (w *wakeCounter) TickNow() {
	w.count++
}

var _ = Describe("Queue", func() {
	var (
		engine   *sim.MockEngine
		consumer *wakeCounter
		queue    Queue
	)

	BeforeEach(func() {
		engine = sim.NewMockEngine()
		consumer = &wakeCounter{}

		queue = MakeQueueBuilder().
			WithEngine(engine).
			WithConsumerFreq(1 * sim.GHz).
			WithConsumer(consumer).
			WithSyncDepth(2).
			WithCapacity(8).
			WithFullMargin(2).
			Build("Queue")
	})

	It("should hide items until they cross the boundary", func() {
		queue.Push("item")

		Expect(queue.Size()).To(Equal(1))
		Expect(queue.Peek()).To(BeNil())
		Expect(queue.Pop()).To(BeNil())

		engine.NowTime = 2e-9
		Expect(queue.Peek()).To(Equal("item"))
		Expect(queue.Pop()).To(Equal("item"))
		Expect(queue.Size()).To(Equal(0))
	})

	It("should preserve fifo order", func() {
		queue.Push(1)
		engine.NowTime = 1e-9
		queue.Push(2)
		engine.NowTime = 2e-9
		queue.Push(3)

		engine.NowTime = 1e-8
		Expect(queue.Pop()).To(Equal(1))
		Expect(queue.Pop()).To(Equal(2))
		Expect(queue.Pop()).To(Equal(3))
	})

	It("should schedule a wake for the consumer at crossing time", func() {
		queue.Push("item")

		Expect(engine.ScheduledEvents).To(HaveLen(1))
		Expect(engine.ScheduledEvents[0].Time()).To(
			BeNumerically("~", 2e-9, 1e-15))

		handler := engine.ScheduledEvents[0].Handler()
		handler.Handle(engine.ScheduledEvents[0])
		Expect(consumer.count).To(Equal(1))
	})

	It("should wake the producer when popping frees a slot", func() {
		producer := &wakeCounter{}
		queue = MakeQueueBuilder().
			WithEngine(engine).
			WithConsumerFreq(1 * sim.GHz).
			WithProducer(producer).
			Build("Queue")

		queue.Push("item")
		engine.NowTime = 1e-8

		Expect(queue.Pop()).To(Equal("item"))
		Expect(producer.count).To(Equal(1))
	})

	It("should report full before physically full", func() {
		for i := 0; i < 6; i++ {
			Expect(queue.CanPush()).To(BeTrue())
			queue.Push(i)
		}

		Expect(queue.CanPush()).To(BeFalse())

		// The margin still physically accepts in-flight pushes.
		queue.Push(6)
		queue.Push(7)
		Expect(queue.Size()).To(Equal(8))
	})

	It("should panic on physical overflow", func() {
		for i := 0; i < 8; i++ {
			queue.Push(i)
		}

		Expect(func() { queue.Push(8) }).To(Panic())
	})

	It("should reject invalid configurations", func() {
		Expect(func() {
			MakeQueueBuilder().
				WithConsumerFreq(1 * sim.GHz).
				Build("NoEngine")
		}).To(Panic())

		Expect(func() {
			MakeQueueBuilder().
				WithEngine(engine).
				Build("NoFreq")
		}).To(Panic())

		Expect(func() {
			MakeQueueBuilder().
				WithEngine(engine).
				WithConsumerFreq(1 * sim.GHz).
				WithCapacity(4).
				Build("TooSmall")
		}).To(Panic())
	})
})
