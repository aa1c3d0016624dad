package sim

import "log"

// A MockPort is a very simple port implementation that is designed only to
// simplify unit tests. Incoming messages are scripted with ToDeliver, and
// every message sent through the port is recorded in SentMsgs.
type MockPort struct {
	name string
	comp Component

	incoming []Msg

	SentMsgs    []Msg
	SendBlocked bool
}

// NewMockPort returns a new MockPort that accepts sends.
func NewMockPort(name string) *MockPort {
	p := new(MockPort)
	p.name = name
	p.SendBlocked = false
	return p
}

// Name returns the name of the port.
func (p *MockPort) Name() string {
	return p.name
}

// SetConnection of a MockPort does not do anything.
func (p *MockPort) SetConnection(_ Connection) {}

// Component returns the owner component of the port.
func (p *MockPort) Component() Component {
	return p.comp
}

// ToDeliver schedules a message to appear in the incoming buffer.
func (p *MockPort) ToDeliver(msg Msg) {
	p.incoming = append(p.incoming, msg)
}

// Deliver appends the message to the incoming buffer.
func (p *MockPort) Deliver(msg Msg) *SendError {
	p.incoming = append(p.incoming, msg)
	return nil
}

// NotifyAvailable of a MockPort does not do anything.
func (p *MockPort) NotifyAvailable() {}

// RetrieveOutgoing of a MockPort is not supported.
func (p *MockPort) RetrieveOutgoing() Msg {
	log.Panic("mock port has no outgoing buffer")
	return nil
}

// PeekOutgoing of a MockPort is not supported.
func (p *MockPort) PeekOutgoing() Msg {
	log.Panic("mock port has no outgoing buffer")
	return nil
}

// CanSend returns true unless the test blocks the port.
func (p *MockPort) CanSend() bool {
	return !p.SendBlocked
}

// Send records the sent message, or rejects it if the test blocked the port.
func (p *MockPort) Send(msg Msg) *SendError {
	if p.SendBlocked {
		return NewSendError()
	}

	p.SentMsgs = append(p.SentMsgs, msg)
	return nil
}

// RetrieveIncoming pops the next scripted incoming message.
func (p *MockPort) RetrieveIncoming() Msg {
	if len(p.incoming) == 0 {
		return nil
	}

	msg := p.incoming[0]
	p.incoming = p.incoming[1:]
	return msg
}

// PeekIncoming returns the next scripted incoming message without removing
// it.
func (p *MockPort) PeekIncoming() Msg {
	if len(p.incoming) == 0 {
		return nil
	}

	return p.incoming[0]
}
