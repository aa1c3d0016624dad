package beatmemcontroller

import (
	"fmt"

	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim"
)

// A Builder can build beat-level memory controllers.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	beatBytes int
	burstLen  int
	latency   int
	capacity  uint64
	storage   *mem.Storage
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:      1 * sim.GHz,
		beatBytes: 4,
		burstLen:  1,
		latency:   10,
		capacity:  4 * mem.MB,
	}
}

// WithEngine sets the engine that the controller uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency that the controller works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithBeatBytes sets the width of one data beat in bytes.
func (b Builder) WithBeatBytes(bytes int) Builder {
	b.beatBytes = bytes
	return b
}

// WithBurstLength sets the number of beats that one command covers.
func (b Builder) WithBurstLength(length int) Builder {
	b.burstLen = length
	return b
}

// WithLatency sets the number of cycles between accepting a command and
// transferring its first beat.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithNewStorage asks the controller to create a storage with the given
// capacity.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	b.storage = nil
	return b
}

// WithStorage sets the storage that the controller works on.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// Build creates a controller with the given name.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid(name)

	c := &Comp{
		beatBytes: b.beatBytes,
		burstLen:  b.burstLen,
		latency:   b.latency,
		storage:   b.storage,
	}
	if c.storage == nil {
		c.storage = mem.NewStorage(b.capacity)
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.AddMiddleware(&middleware{Comp: c})

	c.topPort = sim.NewPort(c, 2*b.burstLen, 2*b.burstLen, name+".TopPort")
	c.AddPort(c.topPort)

	c.pendingCmds = sim.NewBuffer(name+".PendingCmdBuf", 16)
	c.pendingBeats = sim.NewBuffer(name+".PendingBeatBuf", 2*b.burstLen)

	return c
}

func (b Builder) mustBeValid(name string) {
	if b.engine == nil {
		panic(fmt.Sprintf("controller %s: engine is not given", name))
	}

	if b.freq == 0 {
		panic(fmt.Sprintf("controller %s: frequency must be positive", name))
	}

	if b.beatBytes <= 0 || b.burstLen <= 0 {
		panic(fmt.Sprintf(
			"controller %s: beat bytes and burst length must be positive",
			name))
	}

	if b.latency < 0 {
		panic(fmt.Sprintf("controller %s: latency must not be negative",
			name))
	}
}
