package bridge

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/sim"
)

var _ = Describe("Back End", func() {
	var (
		engine     *sim.MockEngine
		ctrlPort   *sim.MockPort
		bottomPort *sim.MockPort
	)

	buildBridge := func(ratio int) *Comp {
		engine = sim.NewMockEngine()
		ctrlPort = sim.NewMockPort("Ctrl")

		comp := MakeBuilder().
			WithEngine(engine).
			WithAddrWidth(10).
			WithDataBytes(4).
			WithRatio(ratio).
			WithControllerPort(ctrlPort).
			Build("Bridge")

		bottomPort = sim.NewMockPort("Bottom")
		comp.back.bottomPort = bottomPort

		return comp
	}

	Context("when the ratio is 1", func() {
		var comp *Comp

		BeforeEach(func() {
			comp = buildBridge(1)
		})

		It("should map a write to one command and one beat", func() {
			comp.front.cmdQueue.Push(commandItem{write: true, address: 5})
			comp.front.wdataQueue.Push(writeDataItem{
				data: []byte{0xEF, 0xBE, 0xAD, 0xDE},
				mask: []bool{true, true, true, true},
			})
			engine.NowTime = 1e-8

			madeProgress := comp.back.Tick()

			Expect(madeProgress).To(BeTrue())
			Expect(bottomPort.SentMsgs).To(HaveLen(2))

			cmd := bottomPort.SentMsgs[0].(*ControllerCmd)
			Expect(cmd.Write).To(BeTrue())
			Expect(cmd.Address).To(Equal(uint64(5)))
			Expect(cmd.Dst).To(BeIdenticalTo(ctrlPort))

			beat := bottomPort.SentMsgs[1].(*WriteBeat)
			Expect(beat.Data).To(Equal([]byte{0xEF, 0xBE, 0xAD, 0xDE}))
			Expect(beat.Mask).To(Equal([]bool{true, true, true, true}))

			Expect(comp.back.cmdQueue.Size()).To(Equal(0))
			Expect(comp.back.wdataQueue.Size()).To(Equal(0))
		})

		It("should map a read beat to one response word", func() {
			bottomPort.ToDeliver(ReadBeatBuilder{}.
				WithSrc(ctrlPort).
				WithDst(bottomPort).
				WithData([]byte{0xEF, 0xBE, 0xAD, 0xDE}).
				Build())

			madeProgress := comp.back.Tick()

			Expect(madeProgress).To(BeTrue())
			Expect(comp.back.rspQueue.Size()).To(Equal(1))

			engine.NowTime = 1e-8
			word := comp.front.rspQueue.Pop()
			Expect(word).To(Equal([]byte{0xEF, 0xBE, 0xAD, 0xDE}))
		})
	})

	Context("when the ratio is 4", func() {
		var comp *Comp

		BeforeEach(func() {
			comp = buildBridge(4)
		})

		It("should expand a write into four beats, lowest bytes first",
			func() {
				comp.front.cmdQueue.Push(commandItem{
					write:   true,
					address: 5,
				})
				comp.front.wdataQueue.Push(writeDataItem{
					data: []byte{0x11, 0x22, 0x33, 0x44},
					mask: []bool{true, false, true, false},
				})
				engine.NowTime = 1e-8

				for i := 0; i < 4; i++ {
					comp.back.Tick()
				}

				Expect(bottomPort.SentMsgs).To(HaveLen(5))

				cmd := bottomPort.SentMsgs[0].(*ControllerCmd)
				Expect(cmd.Address).To(Equal(uint64(5 << 2)))

				wantData := []byte{0x11, 0x22, 0x33, 0x44}
				wantMask := []bool{true, false, true, false}
				for i := 0; i < 4; i++ {
					beat := bottomPort.SentMsgs[i+1].(*WriteBeat)
					Expect(beat.Data).To(Equal(wantData[i : i+1]))
					Expect(beat.Mask).To(Equal(wantMask[i : i+1]))
				}
			})

		It("should pop the write-data queue only at beat 0", func() {
			comp.front.wdataQueue.Push(writeDataItem{
				data: []byte{0x11, 0x22, 0x33, 0x44},
			})
			engine.NowTime = 1e-8

			comp.back.Tick()

			Expect(comp.back.wdataQueue.Size()).To(Equal(0))
			Expect(comp.back.expand.counter).To(Equal(1))
			Expect(comp.back.expand.data).To(Equal([]byte{0x22, 0x33, 0x44}))
		})

		It("should hold the register when a beat is not accepted", func() {
			comp.front.wdataQueue.Push(writeDataItem{
				data: []byte{0x11, 0x22, 0x33, 0x44},
			})
			engine.NowTime = 1e-8

			comp.back.Tick()
			bottomPort.SendBlocked = true
			comp.back.Tick()

			Expect(comp.back.expand.counter).To(Equal(1))
			Expect(comp.back.expand.data).To(Equal([]byte{0x22, 0x33, 0x44}))

			bottomPort.SendBlocked = false
			comp.back.Tick()
			comp.back.Tick()
			comp.back.Tick()

			Expect(comp.back.expand.counter).To(Equal(0))
			Expect(bottomPort.SentMsgs).To(HaveLen(4))
		})

		It("should send a nil mask when the word has no mask", func() {
			comp.front.wdataQueue.Push(writeDataItem{
				data: []byte{0x11, 0x22, 0x33, 0x44},
			})
			engine.NowTime = 1e-8

			comp.back.Tick()
			comp.back.Tick()

			for _, msg := range bottomPort.SentMsgs {
				Expect(msg.(*WriteBeat).Mask).To(BeNil())
			}
		})

		It("should collect four read beats into one word", func() {
			for _, b := range []byte{0x11, 0x22, 0x33, 0x44} {
				bottomPort.ToDeliver(ReadBeatBuilder{}.
					WithSrc(ctrlPort).
					WithDst(bottomPort).
					WithData([]byte{b}).
					Build())
			}

			for i := 0; i < 3; i++ {
				comp.back.Tick()
				Expect(comp.back.rspQueue.Size()).To(Equal(0))
			}

			comp.back.Tick()

			Expect(comp.back.rspQueue.Size()).To(Equal(1))
			Expect(comp.back.collect.counter).To(Equal(0))

			engine.NowTime = 1e-8
			word := comp.front.rspQueue.Pop()
			Expect(word).To(Equal([]byte{0x11, 0x22, 0x33, 0x44}))
		})

		It("should keep collecting across word boundaries", func() {
			for b := byte(0); b < 8; b++ {
				bottomPort.ToDeliver(ReadBeatBuilder{}.
					WithSrc(ctrlPort).
					WithDst(bottomPort).
					WithData([]byte{b}).
					Build())
			}

			for i := 0; i < 8; i++ {
				comp.back.Tick()
			}

			Expect(comp.back.rspQueue.Size()).To(Equal(2))

			engine.NowTime = 1e-8
			Expect(comp.front.rspQueue.Pop()).
				To(Equal([]byte{0, 1, 2, 3}))
			Expect(comp.front.rspQueue.Pop()).
				To(Equal([]byte{4, 5, 6, 7}))
		})

		It("should panic when the read-return queue overflows", func() {
			for i := 0; i < comp.back.rspQueue.Capacity(); i++ {
				comp.back.rspQueue.Push([]byte{1, 2, 3, 4})
			}

			for _, b := range []byte{1, 2, 3, 4} {
				bottomPort.ToDeliver(ReadBeatBuilder{}.
					WithSrc(ctrlPort).
					WithDst(bottomPort).
					WithData([]byte{b}).
					Build())
			}

			run := func() {
				for i := 0; i < 4; i++ {
					comp.back.Tick()
				}
			}
			Expect(run).To(Panic())
		})

		It("should reject a read beat of the wrong width", func() {
			bottomPort.ToDeliver(ReadBeatBuilder{}.
				WithSrc(ctrlPort).
				WithDst(bottomPort).
				WithData([]byte{1, 2}).
				Build())

			Expect(func() { comp.back.Tick() }).To(Panic())
		})
	})
})

type captureRecorder struct {
	tables []string
	rows   map[string][]any
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{rows: make(map[string][]any)}
}

func (r *captureRecorder) CreateTable(tableName string, _ any) {
	r.tables = append(r.tables, tableName)
}

func (r *captureRecorder) InsertData(tableName string, entry any) {
	r.rows[tableName] = append(r.rows[tableName], entry)
}

func (r *captureRecorder) ListTables() []string {
	return r.tables
}

func (r *captureRecorder) Flush() {}

func (r *captureRecorder) Close() {}

var _ = Describe("Trace recording", func() {
	It("should record commands with their controller address", func() {
		engine := sim.NewMockEngine()
		recorder := newCaptureRecorder()

		comp := MakeBuilder().
			WithEngine(engine).
			WithAddrWidth(10).
			WithDataBytes(4).
			WithRatio(4).
			WithControllerPort(sim.NewMockPort("Ctrl")).
			WithRecorder(recorder).
			Build("Bridge")

		bottomPort := sim.NewMockPort("Bottom")
		comp.back.bottomPort = bottomPort

		comp.front.cmdQueue.Push(commandItem{write: true, address: 5})
		comp.front.wdataQueue.Push(writeDataItem{
			data: []byte{0x11, 0x22, 0x33, 0x44},
		})
		engine.NowTime = 1e-8

		for i := 0; i < 4; i++ {
			comp.back.Tick()
		}
		for _, b := range []byte{1, 2, 3, 4} {
			bottomPort.ToDeliver(ReadBeatBuilder{}.
				WithSrc(sim.NewMockPort("Ctrl")).
				WithDst(bottomPort).
				WithData([]byte{b}).
				Build())
		}
		for i := 0; i < 4; i++ {
			comp.back.Tick()
		}

		Expect(recorder.rows[commandTableName]).To(HaveLen(1))
		cmd := recorder.rows[commandTableName][0].(commandTrace)
		Expect(cmd.Write).To(BeTrue())
		Expect(cmd.Address).To(Equal(uint64(5 << 2)))

		beats := recorder.rows[beatTableName]
		Expect(beats).To(HaveLen(8))
		for i := 0; i < 4; i++ {
			Expect(beats[i].(beatTrace).Kind).To(Equal("wbeat"))
		}
		for i := 4; i < 8; i++ {
			Expect(beats[i].(beatTrace).Kind).To(Equal("rbeat"))
		}
	})
})

var _ = Describe("Builder", func() {
	newBuilder := func() Builder {
		return MakeBuilder().
			WithEngine(sim.NewMockEngine()).
			WithControllerPort(sim.NewMockPort("Ctrl"))
	}

	It("should reject a ratio that is not a power of two", func() {
		Expect(func() {
			newBuilder().WithRatio(3).Build("Bridge")
		}).To(Panic())
	})

	It("should reject a word narrower than the ratio", func() {
		Expect(func() {
			newBuilder().WithDataBytes(4).WithRatio(8).Build("Bridge")
		}).To(Panic())
	})

	It("should reject an address too wide to shift", func() {
		Expect(func() {
			newBuilder().WithAddrWidth(63).WithRatio(4).Build("Bridge")
		}).To(Panic())
	})

	It("should reject undersized queues", func() {
		Expect(func() {
			newBuilder().WithForwardQueueCapacity(4).Build("Bridge")
		}).To(Panic())
	})
})
