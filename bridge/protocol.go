package bridge

import "github.com/sarchlab/membridge/sim"

// A ControllerCmd asks the memory controller to start one access. The
// address is controller-width, with the low log2(ratio) bits zero.
type ControllerCmd struct {
	sim.MsgMeta

	Write   bool
	Address uint64
}

// Meta returns the message meta.
func (c *ControllerCmd) Meta() *sim.MsgMeta {
	return &c.MsgMeta
}

// ControllerCmdBuilder can build controller commands.
type ControllerCmdBuilder struct {
	src, dst sim.Port
	write    bool
	address  uint64
}

// WithSrc sets the source of the command.
func (b ControllerCmdBuilder) WithSrc(src sim.Port) ControllerCmdBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the command.
func (b ControllerCmdBuilder) WithDst(dst sim.Port) ControllerCmdBuilder {
	b.dst = dst
	return b
}

// WithWrite marks the command as a write command.
func (b ControllerCmdBuilder) WithWrite(write bool) ControllerCmdBuilder {
	b.write = write
	return b
}

// WithAddress sets the controller address to access.
func (b ControllerCmdBuilder) WithAddress(address uint64) ControllerCmdBuilder {
	b.address = address
	return b
}

// Build creates a new ControllerCmd.
func (b ControllerCmdBuilder) Build() *ControllerCmd {
	c := &ControllerCmd{}
	c.ID = sim.GetIDGenerator().Generate()
	c.Src = b.src
	c.Dst = b.dst
	c.TrafficBytes = controllerCmdByteOverhead
	c.Write = b.write
	c.Address = b.address

	return c
}

// A WriteBeat carries one controller-width chunk of write data. Beats pair
// with write commands by arrival order, not by id.
type WriteBeat struct {
	sim.MsgMeta

	Data []byte
	Mask []bool
}

// Meta returns the message meta.
func (w *WriteBeat) Meta() *sim.MsgMeta {
	return &w.MsgMeta
}

// WriteBeatBuilder can build write beats.
type WriteBeatBuilder struct {
	src, dst sim.Port
	data     []byte
	mask     []bool
}

// WithSrc sets the source of the beat.
func (b WriteBeatBuilder) WithSrc(src sim.Port) WriteBeatBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the beat.
func (b WriteBeatBuilder) WithDst(dst sim.Port) WriteBeatBuilder {
	b.dst = dst
	return b
}

// WithData sets the controller-width data chunk to carry.
func (b WriteBeatBuilder) WithData(data []byte) WriteBeatBuilder {
	b.data = data
	return b
}

// WithMask sets the byte mask of the beat. A true bit means the byte is
// written. A nil mask writes all the bytes.
func (b WriteBeatBuilder) WithMask(mask []bool) WriteBeatBuilder {
	b.mask = mask
	return b
}

// Build creates a new WriteBeat.
func (b WriteBeatBuilder) Build() *WriteBeat {
	w := &WriteBeat{}
	w.ID = sim.GetIDGenerator().Generate()
	w.Src = b.src
	w.Dst = b.dst
	w.TrafficBytes = len(b.data) + beatByteOverhead
	w.Data = b.data
	w.Mask = b.mask

	return w
}

// A ReadBeat carries one controller-width chunk of read data back from the
// controller. Beats of the same word arrive lowest-addressed first.
type ReadBeat struct {
	sim.MsgMeta

	Data []byte
}

// Meta returns the message meta.
func (r *ReadBeat) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// ReadBeatBuilder can build read beats.
type ReadBeatBuilder struct {
	src, dst sim.Port
	data     []byte
}

// WithSrc sets the source of the beat.
func (b ReadBeatBuilder) WithSrc(src sim.Port) ReadBeatBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the beat.
func (b ReadBeatBuilder) WithDst(dst sim.Port) ReadBeatBuilder {
	b.dst = dst
	return b
}

// WithData sets the controller-width data chunk to carry.
func (b ReadBeatBuilder) WithData(data []byte) ReadBeatBuilder {
	b.data = data
	return b
}

// Build creates a new ReadBeat.
func (b ReadBeatBuilder) Build() *ReadBeat {
	r := &ReadBeat{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = len(b.data) + beatByteOverhead
	r.Data = b.data

	return r
}

const (
	controllerCmdByteOverhead = 12
	beatByteOverhead          = 4
)
