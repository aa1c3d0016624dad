// Package bridge provides a width-adapting bridge between a word-aligned
// memory interface and a narrower, differently clocked controller
// interface. The front and back halves tick in their own clock domains and
// share state only through three cross-domain queues.
package bridge

import (
	"fmt"

	"github.com/sarchlab/membridge/cdc"
	"github.com/sarchlab/membridge/datarecording"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim"
)

// A commandItem crosses from the front domain to the back domain once per
// accepted request.
type commandItem struct {
	write   bool
	address uint64
}

// A writeDataItem crosses from the front domain to the back domain once per
// accepted write request. Items pair with write commands by queue position.
type writeDataItem struct {
	data []byte
	mask []bool
}

// Comp is the width-adapting bridge. Word-aligned requests arrive on the
// front port, controller commands and beats leave through the bottom port.
type Comp struct {
	name  string
	front *frontEnd
	back  *backEnd
}

// Name returns the name of the bridge.
func (c *Comp) Name() string {
	return c.name
}

// FrontPort returns the port that accepts word-aligned read and write
// requests.
func (c *Comp) FrontPort() sim.Port {
	return c.front.topPort
}

// BottomPort returns the controller-facing port. Commands and write beats
// leave through it and read beats arrive on it.
func (c *Comp) BottomPort() sim.Port {
	return c.back.bottomPort
}

// frontEnd is the front-domain half. It dispatches requests into the
// forward queues and delivers completed read words to the requester.
type frontEnd struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	topPort sim.Port

	cmdQueue   cdc.Queue
	wdataQueue cdc.Queue
	rspQueue   cdc.Queue

	addrWidth uint
	dataBytes int

	inflightReads []*mem.ReadReq

	recorder datarecording.DataRecorder
}

func (f *frontEnd) Tick() bool {
	return f.MiddlewareHolder.Tick()
}

// backEnd is the back-domain half. It owns the ratio expander and collapser
// state exclusively.
type backEnd struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	bottomPort sim.Port
	ctrlPort   sim.Port

	cmdQueue   cdc.Queue
	wdataQueue cdc.Queue
	rspQueue   cdc.Queue

	ratio     int
	log2Ratio uint
	beatBytes int

	expand  expandState
	collect collectState

	recorder datarecording.DataRecorder
}

func (b *backEnd) Tick() bool {
	return b.MiddlewareHolder.Tick()
}

// expandState is the write-expansion machine. The register holds the chunks
// of the current word that are not yet sent.
type expandState struct {
	counter int
	data    []byte
	mask    []bool
}

// collectState is the read-collection machine. The register accumulates the
// beats of the current word, lowest-addressed first.
type collectState struct {
	counter int
	data    []byte
}

type requestTrace struct {
	ID      string
	Kind    string
	Address uint64
	Time    float64
}

type commandTrace struct {
	Write   bool
	Address uint64
	Time    float64
}

type beatTrace struct {
	Kind string
	Time float64
}

type frontMiddleware struct {
	*frontEnd
}

func (m *frontMiddleware) Tick() bool {
	madeProgress := false

	madeProgress = m.respond() || madeProgress
	madeProgress = m.acceptRequest() || madeProgress

	return madeProgress
}

// respond delivers one completed read word per cycle, pairing it with the
// oldest read still in flight.
func (m *frontMiddleware) respond() bool {
	item := m.rspQueue.Peek()
	if item == nil {
		return false
	}

	if len(m.inflightReads) == 0 {
		panic(fmt.Sprintf(
			"%s: read word arrived with no read in flight", m.Name()))
	}

	req := m.inflightReads[0]
	rsp := mem.DataReadyRspBuilder{}.
		WithSrc(m.topPort).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithData(item.([]byte)).
		Build()

	if err := m.topPort.Send(rsp); err != nil {
		return false
	}

	m.rspQueue.Pop()
	m.inflightReads = m.inflightReads[1:]

	return true
}

func (m *frontMiddleware) acceptRequest() bool {
	item := m.topPort.PeekIncoming()
	if item == nil {
		return false
	}

	switch req := item.(type) {
	case *mem.ReadReq:
		return m.acceptRead(req)
	case *mem.WriteReq:
		return m.acceptWrite(req)
	default:
		panic(fmt.Sprintf("%s cannot handle message %T", m.Name(), item))
	}
}

// ready is the NOR of the two forward queues' full signals. A read is
// stalled even when only the write-data queue is full.
func (m *frontMiddleware) ready() bool {
	return m.cmdQueue.CanPush() && m.wdataQueue.CanPush()
}

func (m *frontMiddleware) acceptRead(req *mem.ReadReq) bool {
	if !m.ready() {
		return false
	}

	m.mustBeInAddrRange(req.Address)

	m.cmdQueue.Push(commandItem{address: req.Address})
	m.inflightReads = append(m.inflightReads, req)
	m.topPort.RetrieveIncoming()

	m.traceRequest(req.ID, "read", req.Address)

	return true
}

// acceptWrite pushes the command item and the write-data item in the same
// cycle and completes the write toward the requester immediately.
func (m *frontMiddleware) acceptWrite(req *mem.WriteReq) bool {
	if !m.ready() {
		return false
	}

	m.mustBeInAddrRange(req.Address)

	if len(req.Data) != m.dataBytes {
		panic(fmt.Sprintf("%s: write data must be %d bytes, got %d",
			m.Name(), m.dataBytes, len(req.Data)))
	}

	if req.DirtyMask != nil && len(req.DirtyMask) != m.dataBytes {
		panic(fmt.Sprintf("%s: write mask must be nil or %d bytes, got %d",
			m.Name(), m.dataBytes, len(req.DirtyMask)))
	}

	done := mem.WriteDoneRspBuilder{}.
		WithSrc(m.topPort).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	if err := m.topPort.Send(done); err != nil {
		return false
	}

	m.cmdQueue.Push(commandItem{write: true, address: req.Address})
	m.wdataQueue.Push(writeDataItem{data: req.Data, mask: req.DirtyMask})
	m.topPort.RetrieveIncoming()

	m.traceRequest(req.ID, "write", req.Address)

	return true
}

func (m *frontMiddleware) mustBeInAddrRange(address uint64) {
	if address>>m.addrWidth != 0 {
		panic(fmt.Sprintf("%s: address 0x%x out of range", m.Name(), address))
	}
}

func (m *frontMiddleware) traceRequest(id, kind string, address uint64) {
	if m.recorder == nil {
		return
	}

	m.recorder.InsertData(requestTableName, requestTrace{
		ID:      id,
		Kind:    kind,
		Address: address,
		Time:    float64(m.CurrentTime()),
	})
}

type backMiddleware struct {
	*backEnd
}

func (m *backMiddleware) Tick() bool {
	madeProgress := false

	madeProgress = m.collectReadBeat() || madeProgress
	madeProgress = m.issueCommand() || madeProgress
	madeProgress = m.issueWriteBeat() || madeProgress

	return madeProgress
}

// issueCommand forwards one dequeued command per cycle, widening the
// address by log2(ratio) zero bits.
func (m *backMiddleware) issueCommand() bool {
	item := m.cmdQueue.Peek()
	if item == nil {
		return false
	}

	cmd := item.(commandItem)
	msg := ControllerCmdBuilder{}.
		WithSrc(m.bottomPort).
		WithDst(m.ctrlPort).
		WithWrite(cmd.write).
		WithAddress(cmd.address << m.log2Ratio).
		Build()

	if err := m.bottomPort.Send(msg); err != nil {
		return false
	}

	m.cmdQueue.Pop()

	m.traceCommand(msg)

	return true
}

// issueWriteBeat sends one controller-width chunk per cycle. The write-data
// queue is popped only when the beat at counter 0 is accepted, so each
// dequeue covers ratio beats.
func (m *backMiddleware) issueWriteBeat() bool {
	var data []byte
	var mask []bool

	if m.expand.counter == 0 {
		item := m.wdataQueue.Peek()
		if item == nil {
			return false
		}

		wd := item.(writeDataItem)
		data = wd.data[:m.beatBytes]
		if wd.mask != nil {
			mask = wd.mask[:m.beatBytes]
		}
	} else {
		data = m.expand.data[:m.beatBytes]
		if m.expand.mask != nil {
			mask = m.expand.mask[:m.beatBytes]
		}
	}

	beat := WriteBeatBuilder{}.
		WithSrc(m.bottomPort).
		WithDst(m.ctrlPort).
		WithData(data).
		WithMask(mask).
		Build()

	if err := m.bottomPort.Send(beat); err != nil {
		return false
	}

	if m.expand.counter == 0 {
		wd := m.wdataQueue.Pop().(writeDataItem)
		m.expand.data = wd.data[m.beatBytes:]
		if wd.mask != nil {
			m.expand.mask = wd.mask[m.beatBytes:]
		} else {
			m.expand.mask = nil
		}
	} else {
		m.expand.data = m.expand.data[m.beatBytes:]
		if m.expand.mask != nil {
			m.expand.mask = m.expand.mask[m.beatBytes:]
		}
	}

	m.expand.counter = (m.expand.counter + 1) % m.ratio

	m.traceBeat("wbeat")

	return true
}

// collectReadBeat accepts one read beat per cycle. When the counter is at
// its maximum the regathered word enters the read-return queue in the same
// cycle. The push is unguarded; overflow panics in the queue.
func (m *backMiddleware) collectReadBeat() bool {
	item := m.bottomPort.PeekIncoming()
	if item == nil {
		return false
	}

	beat, ok := item.(*ReadBeat)
	if !ok {
		panic(fmt.Sprintf("%s cannot handle message %T", m.Name(), item))
	}

	if len(beat.Data) != m.beatBytes {
		panic(fmt.Sprintf("%s: read beat must be %d bytes, got %d",
			m.Name(), m.beatBytes, len(beat.Data)))
	}

	m.collect.data = append(m.collect.data, beat.Data...)

	if m.collect.counter == m.ratio-1 {
		m.rspQueue.Push(m.collect.data)
		m.collect.data = nil
	}

	m.collect.counter = (m.collect.counter + 1) % m.ratio
	m.bottomPort.RetrieveIncoming()

	m.traceBeat("rbeat")

	return true
}

func (m *backMiddleware) traceCommand(cmd *ControllerCmd) {
	if m.recorder == nil {
		return
	}

	m.recorder.InsertData(commandTableName, commandTrace{
		Write:   cmd.Write,
		Address: cmd.Address,
		Time:    float64(m.CurrentTime()),
	})
}

func (m *backMiddleware) traceBeat(kind string) {
	if m.recorder == nil {
		return
	}

	m.recorder.InsertData(beatTableName, beatTrace{
		Kind: kind,
		Time: float64(m.CurrentTime()),
	})
}

const (
	requestTableName = "bridge_requests"
	commandTableName = "bridge_commands"
	beatTableName    = "bridge_beats"
)
