// Package beatmemcontroller provides a beat-level memory controller model.
// It accepts controller commands and exchanges data one controller-width
// beat at a time, pairing write beats with write commands by arrival order.
package beatmemcontroller

import (
	"fmt"

	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim"
)

// Comp models a memory controller that serves one command at a time. Each
// command covers burstLen consecutive controller addresses, transferred one
// beat per cycle, lowest-addressed beat first.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	topPort sim.Port
	storage *mem.Storage

	beatBytes int
	burstLen  int
	latency   int

	pendingCmds  sim.Buffer
	pendingBeats sim.Buffer

	current   *bridge.ControllerCmd
	beatIndex int
	countdown int
}

// Tick updates the controller state.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

// TopPort returns the port that receives commands and write beats and
// sends read beats.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// Storage returns the backing storage of the controller.
func (c *Comp) Storage() *mem.Storage {
	return c.storage
}

type middleware struct {
	*Comp
}

func (m *middleware) Tick() bool {
	madeProgress := false

	madeProgress = m.parseIncoming() || madeProgress
	madeProgress = m.serveCurrent() || madeProgress
	madeProgress = m.startNext() || madeProgress

	return madeProgress
}

// parseIncoming routes one arrived message per cycle. Commands and write
// beats travel the same link, so a command can arrive while an earlier
// burst is still transferring.
func (m *middleware) parseIncoming() bool {
	item := m.topPort.PeekIncoming()
	if item == nil {
		return false
	}

	switch msg := item.(type) {
	case *bridge.ControllerCmd:
		if !m.pendingCmds.CanPush() {
			return false
		}
		m.pendingCmds.Push(msg)
	case *bridge.WriteBeat:
		if !m.pendingBeats.CanPush() {
			return false
		}
		m.pendingBeats.Push(msg)
	default:
		panic(fmt.Sprintf("%s cannot handle message %T", m.Name(), item))
	}

	m.topPort.RetrieveIncoming()

	return true
}

func (m *middleware) startNext() bool {
	if m.current != nil {
		return false
	}

	item := m.pendingCmds.Pop()
	if item == nil {
		return false
	}

	m.current = item.(*bridge.ControllerCmd)
	m.beatIndex = 0
	m.countdown = m.latency

	return true
}

func (m *middleware) serveCurrent() bool {
	if m.current == nil {
		return false
	}

	if m.countdown > 0 {
		m.countdown--
		return true
	}

	if m.current.Write {
		return m.consumeWriteBeat()
	}

	return m.produceReadBeat()
}

// consumeWriteBeat applies one pending write beat to storage. A true mask
// bit means the byte is written. A nil mask writes the whole beat.
func (m *middleware) consumeWriteBeat() bool {
	item := m.pendingBeats.Pop()
	if item == nil {
		return false
	}

	beat := item.(*bridge.WriteBeat)
	if len(beat.Data) != m.beatBytes {
		panic(fmt.Sprintf("%s: write beat must be %d bytes, got %d",
			m.Name(), m.beatBytes, len(beat.Data)))
	}

	addr := (m.current.Address + uint64(m.beatIndex)) * uint64(m.beatBytes)
	err := m.storage.WriteMasked(addr, beat.Data, beat.Mask)
	if err != nil {
		panic(err)
	}

	m.finishBeat()

	return true
}

func (m *middleware) produceReadBeat() bool {
	addr := (m.current.Address + uint64(m.beatIndex)) * uint64(m.beatBytes)
	data, err := m.storage.Read(addr, uint64(m.beatBytes))
	if err != nil {
		panic(err)
	}

	beat := bridge.ReadBeatBuilder{}.
		WithSrc(m.topPort).
		WithDst(m.current.Src).
		WithData(data).
		Build()

	if sendErr := m.topPort.Send(beat); sendErr != nil {
		return false
	}

	m.finishBeat()

	return true
}

func (m *middleware) finishBeat() {
	m.beatIndex++
	if m.beatIndex == m.burstLen {
		m.current = nil
	}
}
