package bridge_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/membridge/beatmemcontroller"
	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim"
)

// testAgent issues scripted requests one at a time and records the
// responses it receives.
type testAgent struct {
	*sim.TickingComponent

	port sim.Port

	toSend    []sim.Msg
	writeDone int
	readData  [][]byte
}

func newTestAgent(engine sim.Engine, freq sim.Freq) *testAgent {
	a := &testAgent{}
	a.TickingComponent = sim.NewTickingComponent(
		"Agent", engine, freq, a)
	a.port = sim.NewPort(a, 4, 4, "Agent.Port")
	a.AddPort(a.port)

	return a
}

func (a *testAgent) Tick() bool {
	madeProgress := false

	for {
		msg := a.port.RetrieveIncoming()
		if msg == nil {
			break
		}

		switch rsp := msg.(type) {
		case *mem.DataReadyRsp:
			a.readData = append(a.readData, rsp.Data)
		case *mem.WriteDoneRsp:
			a.writeDone++
		}

		madeProgress = true
	}

	if len(a.toSend) > 0 {
		if err := a.port.Send(a.toSend[0]); err == nil {
			a.toSend = a.toSend[1:]
			madeProgress = true
		}
	}

	return madeProgress
}

var _ = Describe("Bridge with a beat controller", func() {
	var (
		engine *sim.SerialEngine
		agent  *testAgent
		comp   *bridge.Comp
		ctrl   *beatmemcontroller.Comp
	)

	buildWithFreqs := func(ratio int, frontFreq, backFreq sim.Freq) {
		engine = sim.NewSerialEngine()

		ctrl = beatmemcontroller.MakeBuilder().
			WithEngine(engine).
			WithFreq(backFreq).
			WithBeatBytes(4 / ratio).
			WithBurstLength(ratio).
			WithLatency(2).
			Build("Ctrl")

		comp = bridge.MakeBuilder().
			WithEngine(engine).
			WithFrontFreq(frontFreq).
			WithBackFreq(backFreq).
			WithAddrWidth(10).
			WithDataBytes(4).
			WithRatio(ratio).
			WithControllerPort(ctrl.TopPort()).
			Build("Bridge")

		agent = newTestAgent(engine, frontFreq)

		frontConn := sim.NewDirectConnection(
			"FrontConn", engine, frontFreq)
		frontConn.PlugIn(agent.port)
		frontConn.PlugIn(comp.FrontPort())

		backConn := sim.NewDirectConnection(
			"BackConn", engine, backFreq)
		backConn.PlugIn(comp.BottomPort())
		backConn.PlugIn(ctrl.TopPort())
	}

	build := func(ratio int) {
		buildWithFreqs(ratio, 1*sim.GHz, 333*sim.MHz)
	}

	write := func(addr uint64, data []byte, mask []bool) {
		agent.toSend = append(agent.toSend, mem.WriteReqBuilder{}.
			WithSrc(agent.port).
			WithDst(comp.FrontPort()).
			WithAddress(addr).
			WithData(data).
			WithDirtyMask(mask).
			Build())
	}

	read := func(addr uint64) {
		agent.toSend = append(agent.toSend, mem.ReadReqBuilder{}.
			WithSrc(agent.port).
			WithDst(comp.FrontPort()).
			WithAddress(addr).
			WithByteSize(4).
			Build())
	}

	run := func() {
		agent.TickLater()
		Expect(engine.Run()).To(Succeed())
	}

	It("should round-trip one word with ratio 1", func() {
		build(1)

		write(5, []byte{0xEF, 0xBE, 0xAD, 0xDE}, nil)
		read(5)
		run()

		Expect(agent.writeDone).To(Equal(1))
		Expect(agent.readData).To(HaveLen(1))
		Expect(agent.readData[0]).To(Equal([]byte{0xEF, 0xBE, 0xAD, 0xDE}))

		stored, err := ctrl.Storage().Read(5*4, 4)
		Expect(err).To(BeNil())
		Expect(stored).To(Equal([]byte{0xEF, 0xBE, 0xAD, 0xDE}))
	})

	It("should round-trip one word with ratio 4", func() {
		build(4)

		write(5, []byte{0x11, 0x22, 0x33, 0x44}, nil)
		read(5)
		run()

		Expect(agent.writeDone).To(Equal(1))
		Expect(agent.readData).To(HaveLen(1))
		Expect(agent.readData[0]).To(Equal([]byte{0x11, 0x22, 0x33, 0x44}))

		stored, err := ctrl.Storage().Read(5<<2, 4)
		Expect(err).To(BeNil())
		Expect(stored).To(Equal([]byte{0x11, 0x22, 0x33, 0x44}))
	})

	It("should write only the masked bytes", func() {
		build(4)

		write(7, []byte{0x11, 0x22, 0x33, 0x44}, nil)
		write(7, []byte{0xAA, 0xBB, 0xCC, 0xDD},
			[]bool{true, false, true, false})
		read(7)
		run()

		Expect(agent.writeDone).To(Equal(2))
		Expect(agent.readData[0]).To(Equal([]byte{0xAA, 0x22, 0xCC, 0x44}))
	})

	It("should preserve order across many requests", func() {
		build(4)

		for i := 0; i < 16; i++ {
			data := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3)}
			write(uint64(i), data, nil)
		}
		for i := 0; i < 16; i++ {
			read(uint64(i))
		}
		run()

		Expect(agent.writeDone).To(Equal(16))
		Expect(agent.readData).To(HaveLen(16))
		for i := 0; i < 16; i++ {
			want := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3)}
			Expect(agent.readData[i]).To(Equal(want))
		}
	})

	It("should survive tick-boundary-hostile clock pairs", func() {
		// 333 MHz and 777 MHz tick boundaries never line up with each
		// other, so every cross-domain wake lands off-boundary in the
		// woken domain.
		buildWithFreqs(4, 333*sim.MHz, 777*sim.MHz)

		for i := 0; i < 33; i++ {
			write(uint64(i), []byte{byte(i), 0xA5, byte(i), 0x5A}, nil)
		}
		for i := 0; i < 33; i++ {
			read(uint64(i))
		}
		run()

		Expect(agent.writeDone).To(Equal(33))
		Expect(agent.readData).To(HaveLen(33))
		for i := 0; i < 33; i++ {
			Expect(agent.readData[i]).To(
				Equal([]byte{byte(i), 0xA5, byte(i), 0x5A}))
		}
	})

	It("should serve interleaved reads and writes in order", func() {
		build(2)

		write(3, []byte{1, 2, 3, 4}, nil)
		read(3)
		write(3, []byte{5, 6, 7, 8}, nil)
		read(3)
		run()

		Expect(agent.readData).To(HaveLen(2))
		Expect(agent.readData[0]).To(Equal([]byte{1, 2, 3, 4}))
		Expect(agent.readData[1]).To(Equal([]byte{5, 6, 7, 8}))
	})
})
