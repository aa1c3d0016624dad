package bridge

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/membridge/cdc"
	"github.com/sarchlab/membridge/datarecording"
	"github.com/sarchlab/membridge/sim"
)

// A Builder can build width-adapting bridges.
type Builder struct {
	engine     sim.Engine
	frontFreq  sim.Freq
	backFreq   sim.Freq
	addrWidth  int
	dataBytes  int
	ratio      int
	forwardCap int
	returnCap  int
	syncDepth  int
	ctrlPort   sim.Port
	recorder   datarecording.DataRecorder
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		frontFreq:  1 * sim.GHz,
		backFreq:   1 * sim.GHz,
		addrWidth:  32,
		dataBytes:  4,
		ratio:      1,
		forwardCap: 8,
		returnCap:  64,
		syncDepth:  2,
	}
}

// WithEngine sets the event engine that drives both clock domains.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFrontFreq sets the frequency of the front clock domain.
func (b Builder) WithFrontFreq(freq sim.Freq) Builder {
	b.frontFreq = freq
	return b
}

// WithBackFreq sets the frequency of the back clock domain.
func (b Builder) WithBackFreq(freq sim.Freq) Builder {
	b.backFreq = freq
	return b
}

// WithAddrWidth sets the width of front-side addresses in bits.
func (b Builder) WithAddrWidth(width int) Builder {
	b.addrWidth = width
	return b
}

// WithDataBytes sets the width of front-side data words in bytes.
func (b Builder) WithDataBytes(bytes int) Builder {
	b.dataBytes = bytes
	return b
}

// WithRatio sets the ratio between the front and back data widths. It must
// be 1 or a power of two.
func (b Builder) WithRatio(ratio int) Builder {
	b.ratio = ratio
	return b
}

// WithForwardQueueCapacity sets the capacity of the command and write-data
// queues.
func (b Builder) WithForwardQueueCapacity(capacity int) Builder {
	b.forwardCap = capacity
	return b
}

// WithReturnQueueCapacity sets the capacity of the read-return queue. The
// back domain cannot be stalled once read data is in flight, so the
// capacity must cover the real round-trip latency.
func (b Builder) WithReturnQueueCapacity(capacity int) Builder {
	b.returnCap = capacity
	return b
}

// WithSyncDepth sets the synchronizer depth of the cross-domain queues.
func (b Builder) WithSyncDepth(depth int) Builder {
	b.syncDepth = depth
	return b
}

// WithControllerPort sets the remote port that commands and write beats are
// sent to.
func (b Builder) WithControllerPort(port sim.Port) Builder {
	b.ctrlPort = port
	return b
}

// WithRecorder sets the data recorder that traces accepted requests and
// issued beats.
func (b Builder) WithRecorder(recorder datarecording.DataRecorder) Builder {
	b.recorder = recorder
	return b
}

// Build creates a bridge with the given name.
func (b Builder) Build(name string) *Comp {
	b.mustBeValid(name)

	c := &Comp{name: name}

	front := &frontEnd{
		addrWidth: uint(b.addrWidth),
		dataBytes: b.dataBytes,
		recorder:  b.recorder,
	}
	front.TickingComponent = sim.NewTickingComponent(
		name+".Front", b.engine, b.frontFreq, front)
	front.AddMiddleware(&frontMiddleware{frontEnd: front})

	log2Ratio := uint(bits.TrailingZeros(uint(b.ratio)))
	back := &backEnd{
		ratio:     b.ratio,
		log2Ratio: log2Ratio,
		beatBytes: b.dataBytes / b.ratio,
		ctrlPort:  b.ctrlPort,
		recorder:  b.recorder,
	}
	back.TickingComponent = sim.NewTickingComponent(
		name+".Back", b.engine, b.backFreq, back)
	back.AddMiddleware(&backMiddleware{backEnd: back})

	b.buildQueues(name, front, back)
	b.buildPorts(name, front, back)
	b.createTraceTables()

	c.front = front
	c.back = back

	return c
}

func (b Builder) buildQueues(name string, front *frontEnd, back *backEnd) {
	forward := cdc.MakeQueueBuilder().
		WithEngine(b.engine).
		WithConsumerFreq(b.backFreq).
		WithConsumer(back.TickingComponent).
		WithProducer(front.TickingComponent).
		WithCapacity(b.forwardCap).
		WithSyncDepth(b.syncDepth)

	front.cmdQueue = forward.Build(name + ".CmdQueue")
	front.wdataQueue = forward.Build(name + ".WDataQueue")
	back.cmdQueue = front.cmdQueue
	back.wdataQueue = front.wdataQueue

	// The return queue has no producer-side backpressure. It overflows
	// loudly instead of stalling the back domain.
	front.rspQueue = cdc.MakeQueueBuilder().
		WithEngine(b.engine).
		WithConsumerFreq(b.frontFreq).
		WithConsumer(front.TickingComponent).
		WithProducer(back.TickingComponent).
		WithCapacity(b.returnCap).
		WithSyncDepth(b.syncDepth).
		WithFullMargin(0).
		Build(name + ".RspQueue")
	back.rspQueue = front.rspQueue
}

func (b Builder) buildPorts(name string, front *frontEnd, back *backEnd) {
	front.topPort = sim.NewPort(front, 4, 4, name+".FrontPort")
	front.AddPort(front.topPort)

	back.bottomPort = sim.NewPort(back, 2*b.ratio, 2*b.ratio,
		name+".BottomPort")
	back.AddPort(back.bottomPort)
}

func (b Builder) createTraceTables() {
	if b.recorder == nil {
		return
	}

	if !tableExists(b.recorder, requestTableName) {
		b.recorder.CreateTable(requestTableName, requestTrace{})
	}

	if !tableExists(b.recorder, commandTableName) {
		b.recorder.CreateTable(commandTableName, commandTrace{})
	}

	if !tableExists(b.recorder, beatTableName) {
		b.recorder.CreateTable(beatTableName, beatTrace{})
	}
}

func tableExists(recorder datarecording.DataRecorder, name string) bool {
	for _, t := range recorder.ListTables() {
		if t == name {
			return true
		}
	}

	return false
}

func (b Builder) mustBeValid(name string) {
	if b.engine == nil {
		panic(fmt.Sprintf("bridge %s: engine is not given", name))
	}

	if b.frontFreq == 0 || b.backFreq == 0 {
		panic(fmt.Sprintf("bridge %s: frequency must be positive", name))
	}

	if b.ratio < 1 || bits.OnesCount(uint(b.ratio)) != 1 {
		panic(fmt.Sprintf(
			"bridge %s: ratio must be 1 or a power of two, got %d",
			name, b.ratio))
	}

	if b.dataBytes <= 0 || b.dataBytes%b.ratio != 0 {
		panic(fmt.Sprintf(
			"bridge %s: data bytes %d not divisible by ratio %d",
			name, b.dataBytes, b.ratio))
	}

	log2Ratio := bits.TrailingZeros(uint(b.ratio))
	if b.addrWidth <= 0 || b.addrWidth > 64-log2Ratio {
		panic(fmt.Sprintf(
			"bridge %s: address width %d out of range (0, %d]",
			name, b.addrWidth, 64-log2Ratio))
	}

	if b.ctrlPort == nil {
		panic(fmt.Sprintf("bridge %s: controller port is not given", name))
	}

	if b.forwardCap < 8 || b.returnCap < 8 {
		panic(fmt.Sprintf(
			"bridge %s: queue capacities must be at least 8", name))
	}
}
